// Package contracts defines the data structures exchanged with the DevOps Copilot backend.
package contracts

import (
	"math"
	"strings"
)

// PipelineStatus is the aggregate status of a pipeline's latest run.
type PipelineStatus string

const (
	PipelineSuccess PipelineStatus = "success"
	PipelineFailed  PipelineStatus = "failed"
	PipelineUnknown PipelineStatus = "unknown"
)

// Known reports whether the status is one the dashboard colours explicitly.
// Anything else ("running", "", ...) is displayed as unknown.
func (s PipelineStatus) Known() bool {
	return s == PipelineSuccess || s == PipelineFailed
}

// String returns the status, or "unknown" when empty.
func (s PipelineStatus) String() string {
	if s == "" {
		return string(PipelineUnknown)
	}
	return string(s)
}

// Pipeline represents a tracked CI/CD workflow.
type Pipeline struct {
	// Unique, stable identifier (e.g. a GitHub run id or "demo-1").
	ID string `json:"id"`
	// Human-readable name. May be empty.
	Name string `json:"name"`
	// Status of the most recent run.
	Status PipelineStatus `json:"status"`
	// Time of the most recent run.
	LastRun Timestamp `json:"last_run"`
	// Fraction of successful runs in [0,1].
	SuccessRate float64 `json:"success_rate"`
}

// DisplayName returns the pipeline name, falling back to its id.
func (p Pipeline) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.ID
}

// SuccessPercent returns the success rate as a rounded percentage.
func (p Pipeline) SuccessPercent() int {
	return int(math.Round(p.SuccessRate * 100))
}

// LogEntry is a single log record stored by the backend for a pipeline.
type LogEntry struct {
	ID         int64     `json:"id"`
	PipelineID string    `json:"pipeline_id"`
	Timestamp  Timestamp `json:"timestamp"`
	Content    string    `json:"content"`
}

// LogBuffer is the client-side view of a pipeline's paginated logs for one filter.
// Offset tracks the server-side cursor, not len(Entries).
type LogBuffer struct {
	PipelineID string     `json:"pipeline_id"`
	Filter     string     `json:"filter"`
	Offset     int        `json:"offset"`
	Entries    []LogEntry `json:"entries"`
	Exhausted  bool       `json:"exhausted"`
}

// Confidence is the analyzer's self-reported confidence.
type Confidence string

const (
	ConfidenceHigh    Confidence = "High"
	ConfidenceMedium  Confidence = "Medium"
	ConfidenceLow     Confidence = "Low"
	ConfidenceUnknown Confidence = "unknown"
)

// ParseConfidence normalizes a confidence string. Matching is case-insensitive;
// unrecognized values map to ConfidenceUnknown.
func ParseConfidence(s string) Confidence {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "high":
		return ConfidenceHigh
	case "medium":
		return ConfidenceMedium
	case "low":
		return ConfidenceLow
	default:
		return ConfidenceUnknown
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Confidence) UnmarshalText(text []byte) error {
	*c = ParseConfidence(string(text))
	return nil
}

// AnalysisResult is the AI-assisted root cause analysis for a pipeline.
type AnalysisResult struct {
	RootCause    string     `json:"root_cause"`
	SuggestedFix string     `json:"suggested_fix"`
	Confidence   Confidence `json:"confidence"`
}

// TaskType is the kind of work an agent task performs.
type TaskType string

const (
	TaskRCA    TaskType = "rca"
	TaskTriage TaskType = "triage"
	// TaskFix is reserved by the backend and cannot be created from the dashboard yet.
	TaskFix TaskType = "fix"
)

// TaskTypes lists every type the backend accepts, in display order.
var TaskTypes = []TaskType{TaskRCA, TaskTriage, TaskFix}

// Valid reports whether the backend recognizes the type.
func (t TaskType) Valid() bool {
	switch t {
	case TaskRCA, TaskTriage, TaskFix:
		return true
	}
	return false
}

// Enabled reports whether the dashboard may create tasks of this type.
func (t TaskType) Enabled() bool {
	return t == TaskRCA || t == TaskTriage
}

// TaskStatus is owned by the backend; the client only displays it.
type TaskStatus string

const (
	TaskQueued           TaskStatus = "queued"
	TaskRunning          TaskStatus = "running"
	TaskAwaitingApproval TaskStatus = "awaiting_approval"
	TaskCompleted        TaskStatus = "completed"
	TaskFailed           TaskStatus = "failed"
)

// AgentTask is a backend-executed unit of automated analysis or remediation work.
type AgentTask struct {
	ID         int64      `json:"id"`
	Type       TaskType   `json:"type"`
	PipelineID string     `json:"pipeline_id"`
	Status     TaskStatus `json:"status"`
	ResultJSON *string    `json:"result_json,omitempty"`
	CreatedAt  Timestamp  `json:"created_at"`
	UpdatedAt  Timestamp  `json:"updated_at"`
}

// Result returns the raw result payload, or "" when the task has none yet.
func (t AgentTask) Result() string {
	if t.ResultJSON == nil {
		return ""
	}
	return *t.ResultJSON
}

// CreateTaskRequest is the body of POST /agent/tasks.
type CreateTaskRequest struct {
	PipelineID string   `json:"pipeline_id"`
	Type       TaskType `json:"type"`
}

// HealthStatus is the tri-state backend liveness indicator.
type HealthStatus string

const (
	HealthUnknown HealthStatus = "unknown"
	HealthUp      HealthStatus = "up"
	HealthDown    HealthStatus = "down"
)

// SeedResult is returned by POST /seed.
type SeedResult struct {
	Message   string   `json:"message"`
	Pipelines []string `json:"pipelines"`
}

// ResetResult is returned by POST /seed/reset.
type ResetResult struct {
	Message string `json:"message"`
}

// LogIngest is the body of POST /logs.
type LogIngest struct {
	PipelineID  string   `json:"pipeline_id"`
	Logs        string   `json:"logs"`
	Name        string   `json:"name,omitempty"`
	Status      string   `json:"status,omitempty"`
	SuccessRate *float64 `json:"success_rate,omitempty"`
}

// IngestResult is returned by POST /logs.
type IngestResult struct {
	Message string `json:"message"`
	LogID   int64  `json:"log_id"`
}
