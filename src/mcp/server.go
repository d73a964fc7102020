package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"copilot-dash/src/api"
	"copilot-dash/src/chart"
	"copilot-dash/src/contracts"
	"copilot-dash/src/dashboard"
	"copilot-dash/src/logpager"
	"copilot-dash/src/tasks"
)

// digestMaxPages bounds how many pages digest_logs reads.
const digestMaxPages = 20

// Server is the MCP server for the dashboard.
type Server struct {
	mcpServer *server.MCPServer
	app       *dashboard.App
	sessions  SessionStore
}

// NewServer creates an MCP server backed by app.
func NewServer(app *dashboard.App, version string) *Server {
	s := server.NewMCPServer(
		"copilot-dash",
		version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: s,
		app:       app,
		sessions:  NewInMemoryStore(),
	}
	srv.registerTools()

	return srv
}

// registerTools registers all available tools.
func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("backend_health",
		mcp.WithDescription("Check whether the DevOps Copilot backend is reachable. Returns up or down."),
	), s.handleHealth)

	s.mcpServer.AddTool(mcp.NewTool("list_pipelines",
		mcp.WithDescription("List tracked CI/CD pipelines with their latest status and success rate."),
		mcp.WithString("query",
			mcp.Description("Case-insensitive filter on pipeline name or status"),
		),
	), s.handleListPipelines)

	s.mcpServer.AddTool(mcp.NewTool("get_logs",
		mcp.WithDescription("Fetch one page of a pipeline's logs, sanitized and compacted. Pass the returned session_id back to fetch the next page of the same search."),
		mcp.WithString("pipeline_id",
			mcp.Description("Pipeline id (required unless session_id is given)"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text log filter"),
		),
		mcp.WithString("session_id",
			mcp.Description("Session id from a previous get_logs call; returns the next page"),
		),
	), s.handleGetLogs)

	s.mcpServer.AddTool(mcp.NewTool("digest_logs",
		mcp.WithDescription("Read a pipeline's logs and return deduplicated error and warning lines with context. Use this before get_logs when looking for a root cause."),
		mcp.WithString("pipeline_id",
			mcp.Required(),
			mcp.Description("Pipeline id"),
		),
		mcp.WithString("query",
			mcp.Description("Free-text log filter"),
		),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Max error findings (default: %d)", DefaultTier1Limit)),
		),
	), s.handleDigestLogs)

	s.mcpServer.AddTool(mcp.NewTool("analyze_pipeline",
		mcp.WithDescription("Run the backend's AI root cause analysis for a pipeline."),
		mcp.WithString("pipeline_id",
			mcp.Required(),
			mcp.Description("Pipeline id"),
		),
	), s.handleAnalyze)

	s.mcpServer.AddTool(mcp.NewTool("list_agent_tasks",
		mcp.WithDescription("List agent tasks, newest first."),
	), s.handleListTasks)

	s.mcpServer.AddTool(mcp.NewTool("get_agent_task",
		mcp.WithDescription("Get one agent task including its decoded result."),
		mcp.WithNumber("task_id",
			mcp.Required(),
			mcp.Description("Task id"),
		),
	), s.handleGetTask)

	s.mcpServer.AddTool(mcp.NewTool("create_agent_task",
		mcp.WithDescription("Create an agent task for a pipeline. Supported types: rca, triage."),
		mcp.WithString("pipeline_id",
			mcp.Required(),
			mcp.Description("Pipeline id"),
		),
		mcp.WithString("type",
			mcp.Description("Task type (default: rca)"),
			mcp.Enum(string(contracts.TaskRCA), string(contracts.TaskTriage)),
		),
	), s.handleCreateTask)

	s.mcpServer.AddTool(mcp.NewTool("rerun_agent_task",
		mcp.WithDescription("Run an existing agent task again."),
		mcp.WithNumber("task_id",
			mcp.Required(),
			mcp.Description("Task id"),
		),
	), s.handleRerunTask)
}

// Run starts the MCP server on stdio.
func (s *Server) Run() error {
	return server.ServeStdio(s.mcpServer)
}

// errorMessage renders err with the user-facing message and hint when the API
// layer has one.
func (s *Server) errorMessage(action string, err error) string {
	msg := err.Error()
	var ue *api.UserError
	if errors.As(api.WrapError(err, s.app.Config().APIBase), &ue) {
		msg = ue.Message
		if ue.Hint != "" {
			msg += ". " + ue.Hint
		}
	}
	return fmt.Sprintf("%s: %s", action, msg)
}

func (s *Server) errorResult(action string, err error) *mcp.CallToolResult {
	return mcp.NewToolResultError(s.errorMessage(action, err))
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal response: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleHealth(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	mon := s.app.Health()
	mon.Probe(ctx)
	out := map[string]string{"status": string(mon.Status())}
	if err := mon.Err(); err != nil {
		out["error"] = err.Error()
	}
	return jsonResult(out)
}

func (s *Server) handleListPipelines(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.app.Pipelines().Load(ctx); err != nil {
		return s.errorResult("list pipelines", err), nil
	}

	pipelines := dashboard.FilterPipelines(s.app.Pipelines().Items(), request.GetString("query", ""))
	out := make([]PipelineSummary, len(pipelines))
	for i, p := range pipelines {
		out[i] = PipelineSummary{
			ID:             p.ID,
			Name:           p.DisplayName(),
			Status:         p.Status.String(),
			SuccessPercent: p.SuccessPercent(),
			LastRun:        p.LastRun.Display(),
		}
	}
	return jsonResult(out)
}

func (s *Server) handleGetLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sessionID := request.GetString("session_id", "")

	var pager *logpager.Pager
	var seen int
	var err error
	if sessionID != "" {
		var ok bool
		if pager, ok = s.sessions.Get(sessionID); !ok {
			return mcp.NewToolResultError(fmt.Sprintf("unknown session_id %q; call get_logs with a pipeline_id to start a new one", sessionID)), nil
		}
		seen = len(pager.Buffer().Entries)
		err = pager.Extend(ctx)
	} else {
		pipelineID := request.GetString("pipeline_id", "")
		if pipelineID == "" {
			return mcp.NewToolResultError("pipeline_id or session_id is required"), nil
		}
		pager = s.app.NewPager(pipelineID)
		err = pager.Reset(ctx, request.GetString("query", ""))
		if err == nil {
			sessionID = s.sessions.Put(pager)
		}
	}
	if err != nil {
		return s.errorResult("get logs", err), nil
	}

	buf := pager.Buffer()
	fresh := buf.Entries[seen:]
	out := LogsResponse{
		SessionID:  sessionID,
		PipelineID: buf.PipelineID,
		Filter:     buf.Filter,
		Offset:     buf.Offset,
		Exhausted:  buf.Exhausted,
		Total:      len(buf.Entries),
		Entries:    make([]LogLine, len(fresh)),
		PerDay:     perDay(buf.Entries),
	}
	for i, e := range fresh {
		out.Entries[i] = LogLine{ID: e.ID, Timestamp: e.Timestamp.Display(), Text: CompactLog(e.Content)}
	}
	return jsonResult(out)
}

func perDay(entries []contracts.LogEntry) []DayCount {
	series := chart.Aggregate(entries)
	out := make([]DayCount, len(series.Labels))
	for i, label := range series.Labels {
		out[i] = DayCount{Date: label, Count: series.Counts[i]}
	}
	return out
}

func (s *Server) handleDigestLogs(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipelineID := request.GetString("pipeline_id", "")
	if pipelineID == "" {
		return mcp.NewToolResultError("pipeline_id parameter is required"), nil
	}

	pager := s.app.NewPager(pipelineID)
	if err := pager.Reset(ctx, request.GetString("query", "")); err != nil {
		return s.errorResult("digest logs", err), nil
	}
	for page := 1; page < digestMaxPages && !pager.Buffer().Exhausted; page++ {
		if err := pager.Extend(ctx); err != nil {
			return s.errorResult("digest logs", err), nil
		}
	}

	return jsonResult(TierLogs(pipelineID, pager.Buffer().Entries, request.GetInt("limit", DefaultTier1Limit)))
}

func (s *Server) handleAnalyze(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipelineID := request.GetString("pipeline_id", "")
	session, err := s.app.Analysis().Analyze(ctx, pipelineID)
	if err != nil {
		return s.errorResult("analyze", err), nil
	}

	out := AnalysisResponse{
		PipelineID: pipelineID,
		Status:     session.Phase.String(),
		Result:     session.Result,
	}
	if session.Err != nil {
		out.Error = s.errorMessage("analyze", session.Err)
	}
	return jsonResult(out)
}

func (s *Server) handleListTasks(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	list := s.app.Orchestrator().List()
	if err := list.Load(ctx); err != nil {
		return s.errorResult("list tasks", err), nil
	}
	items := list.Items()
	out := make([]TaskResponse, len(items))
	for i, t := range items {
		out[i] = toTaskResponse(t)
	}
	return jsonResult(out)
}

func (s *Server) handleGetTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(request.GetInt("task_id", 0))
	if id <= 0 {
		return mcp.NewToolResultError("task_id must be a positive integer"), nil
	}
	task, err := s.app.Orchestrator().Get(ctx, id)
	if err != nil {
		return s.errorResult("get task", err), nil
	}
	return jsonResult(toTaskResponse(*task))
}

func (s *Server) handleCreateTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pipelineID := request.GetString("pipeline_id", "")
	typ := contracts.TaskType(request.GetString("type", string(contracts.TaskRCA)))

	if err := s.app.Orchestrator().Create(ctx, pipelineID, typ); err != nil {
		if errors.Is(err, tasks.ErrTaskTypeDisabled) {
			return mcp.NewToolResultError(fmt.Sprintf("%s tasks cannot be created yet", typ)), nil
		}
		return s.errorResult("create task", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Created %s task for %s. Use list_agent_tasks to follow it.", typ, pipelineID)), nil
}

func (s *Server) handleRerunTask(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id := int64(request.GetInt("task_id", 0))
	if id <= 0 {
		return mcp.NewToolResultError("task_id must be a positive integer"), nil
	}
	if err := s.app.Orchestrator().Rerun(ctx, id); err != nil {
		return s.errorResult("rerun task", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Task #%d queued to run again.", id)), nil
}

func toTaskResponse(t contracts.AgentTask) TaskResponse {
	out := TaskResponse{AgentTask: t}
	if raw := t.Result(); raw != "" {
		var decoded any
		if err := json.Unmarshal([]byte(raw), &decoded); err == nil {
			out.Result = decoded
		} else {
			out.Result = raw
		}
	}
	return out
}
