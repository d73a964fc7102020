// Package mcp exposes the dashboard to LLM agents as MCP tools over stdio.
package mcp

import "copilot-dash/src/contracts"

// PipelineSummary is one row of list_pipelines.
type PipelineSummary struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Status         string `json:"status"`
	SuccessPercent int    `json:"success_percent"`
	LastRun        string `json:"last_run"`
}

// LogsResponse is returned by get_logs. Entries holds only the entries added by
// this call; Total counts the whole session.
type LogsResponse struct {
	SessionID  string     `json:"session_id"`
	PipelineID string     `json:"pipeline_id"`
	Filter     string     `json:"filter,omitempty"`
	Offset     int        `json:"offset"`
	Exhausted  bool       `json:"exhausted"`
	Total      int        `json:"total"`
	Entries    []LogLine  `json:"entries"`
	PerDay     []DayCount `json:"per_day"`
}

// LogLine is a compacted log entry.
type LogLine struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Text      string `json:"text"`
}

// DayCount is one bucket of the per-day series.
type DayCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Digest is returned by digest_logs.
type Digest struct {
	PipelineID string    `json:"pipeline_id"`
	Entries    int       `json:"entries"`
	Lines      int       `json:"lines"`
	Errors     []Finding `json:"errors"`
	Warnings   []Finding `json:"warnings"`
	// Distinct findings dropped by the per-tier limits.
	Omitted    int `json:"omitted"`
	NoiseLines int `json:"noise_lines"`
}

// Finding is a deduplicated error or warning line with its context.
type Finding struct {
	// ID is "<entry id>:<line index>" of the first occurrence.
	ID          string   `json:"id"`
	Tier        int      `json:"tier"`
	Line        string   `json:"line"`
	Recurrence  int      `json:"recurrence"`
	FirstSeen   string   `json:"first_seen"`
	PreContext  []string `json:"pre_context"`
	PostContext []string `json:"post_context"`
}

// AnalysisResponse is returned by analyze_pipeline. Failed analyses carry the
// fallback result and the error.
type AnalysisResponse struct {
	PipelineID string                   `json:"pipeline_id"`
	Status     string                   `json:"status"`
	Result     contracts.AnalysisResult `json:"result"`
	Error      string                   `json:"error,omitempty"`
}

// TaskResponse is an agent task with its result decoded when it is JSON.
type TaskResponse struct {
	contracts.AgentTask
	Result any `json:"result,omitempty"`
}
