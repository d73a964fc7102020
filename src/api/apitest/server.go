// Package apitest provides an in-process fake of the DevOps Copilot backend for tests.
//
// The fake keeps its data in memory, records every request and can be told to fail,
// return malformed bodies or hold requests on a per-route basis.
package apitest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"

	"copilot-dash/src/contracts"
)

// Route keys identify a backend endpoint as "METHOD pattern".
const (
	RouteHealth     = "GET /health"
	RoutePipelines  = "GET /pipelines"
	RouteGetLogs    = "GET /logs/{pipelineID}"
	RoutePostLogs   = "POST /logs"
	RouteAnalyze    = "POST /analyze/{pipelineID}"
	RouteListTasks  = "GET /agent/tasks"
	RouteCreateTask = "POST /agent/tasks"
	RouteGetTask    = "GET /agent/tasks/{taskID}"
	RouteRunTask    = "POST /agent/tasks/{taskID}/run"
	RouteSeed       = "POST /seed"
	RouteResetSeed  = "POST /seed/reset"
)

// Request is a recorded inbound request.
type Request struct {
	Route     string
	Method    string
	Path      string
	Query     url.Values
	Body      []byte
	RequestID string
}

// Gate blocks requests to a route until released.
type Gate struct {
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

// Entered receives once per request that reached the gate.
func (g *Gate) Entered() <-chan struct{} { return g.entered }

// Release unblocks every held and future request.
func (g *Gate) Release() { g.once.Do(func() { close(g.release) }) }

type fault struct {
	status    int
	malformed bool
}

// Server is a fake backend listening on a local port.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	pipelines  map[string]contracts.Pipeline
	logs       []contracts.LogEntry
	analyses   map[string]contracts.AnalysisResult
	tasks      []contracts.AgentTask
	nextLogID  int64
	nextTaskID int64
	faults     map[string]fault
	gates      map[string]*Gate
	requests   []Request
	now        func() time.Time
}

// NewServer starts a fake backend. Callers must Close it.
func NewServer() *Server {
	s := &Server{
		pipelines: make(map[string]contracts.Pipeline),
		analyses:  make(map[string]contracts.AnalysisResult),
		faults:    make(map[string]fault),
		gates:     make(map[string]*Gate),
		now:       func() time.Time { return time.Now().UTC() },
	}

	r := chi.NewRouter()
	r.Get("/health", s.route(RouteHealth, s.handleHealth))
	r.Get("/pipelines", s.route(RoutePipelines, s.handlePipelines))
	r.Get("/logs/{pipelineID}", s.route(RouteGetLogs, s.handleGetLogs))
	r.Post("/logs", s.route(RoutePostLogs, s.handlePostLogs))
	r.Post("/analyze/{pipelineID}", s.route(RouteAnalyze, s.handleAnalyze))
	r.Get("/agent/tasks", s.route(RouteListTasks, s.handleListTasks))
	r.Post("/agent/tasks", s.route(RouteCreateTask, s.handleCreateTask))
	r.Get("/agent/tasks/{taskID}", s.route(RouteGetTask, s.handleGetTask))
	r.Post("/agent/tasks/{taskID}/run", s.route(RouteRunTask, s.handleRunTask))
	r.Post("/seed", s.route(RouteSeed, s.handleSeed))
	r.Post("/seed/reset", s.route(RouteResetSeed, s.handleReset))

	s.Server = httptest.NewServer(r)
	return s
}

// Fail makes every request to route answer with status until Restore is called.
func (s *Server) Fail(route string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = fault{status: status}
}

// Malformed makes route answer 200 with a body that is not valid JSON.
func (s *Server) Malformed(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[route] = fault{malformed: true}
}

// Restore clears any fault on route.
func (s *Server) Restore(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.faults, route)
}

// Hold blocks requests to route until the returned gate is released.
func (s *Server) Hold(route string) *Gate {
	g := &Gate{
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	s.mu.Lock()
	s.gates[route] = g
	s.mu.Unlock()
	return g
}

// Requests returns the recorded requests in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// Count returns how many requests hit route.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Route == route {
			n++
		}
	}
	return n
}

// AddPipeline inserts or replaces a pipeline.
func (s *Server) AddPipeline(p contracts.Pipeline) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pipelines[p.ID] = p
}

// AddLog appends a log entry and returns it with its assigned id.
func (s *Server) AddLog(pipelineID, content string, ts time.Time) contracts.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLog(pipelineID, content, ts)
}

// SetAnalysis fixes the analyzer output for a pipeline.
func (s *Server) SetAnalysis(pipelineID string, res contracts.AnalysisResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analyses[pipelineID] = res
}

// Tasks returns the stored tasks, newest first.
func (s *Server) Tasks() []contracts.AgentTask {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedTasks()
}

func (s *Server) route(key string, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Route:     key,
			Method:    r.Method,
			Path:      r.URL.EscapedPath(),
			Query:     r.URL.Query(),
			Body:      body,
			RequestID: r.Header.Get("X-Request-ID"),
		})
		f, faulted := s.faults[key]
		g := s.gates[key]
		s.mu.Unlock()

		if g != nil {
			select {
			case g.entered <- struct{}{}:
			default:
			}
			select {
			case <-g.release:
			case <-r.Context().Done():
				return
			}
		}

		if faulted {
			if f.malformed {
				w.Header().Set("Content-Type", "application/json")
				_, _ = w.Write([]byte(`{"truncated":`))
				return
			}
			writeError(w, f.status, "injected failure")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		h(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePipelines(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	out := make([]contracts.Pipeline, 0, len(s.pipelines))
	for _, p := range s.pipelines {
		out = append(out, p)
	}
	s.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].LastRun.Equal(out[j].LastRun.Time) {
			return out[i].ID < out[j].ID
		}
		return out[i].LastRun.After(out[j].LastRun.Time)
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	pipelineID := pathParam(r, "pipelineID")
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)
	q := strings.ToLower(r.URL.Query().Get("q"))

	s.mu.Lock()
	matched := s.matchLogs(pipelineID, q)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, page(matched, limit, offset))
}

func (s *Server) handlePostLogs(w http.ResponseWriter, r *http.Request) {
	var in contracts.LogIngest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.PipelineID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid log payload")
		return
	}
	if in.SuccessRate != nil && (*in.SuccessRate < 0 || *in.SuccessRate > 1) {
		writeError(w, http.StatusUnprocessableEntity, "success_rate must be within [0,1]")
		return
	}

	s.mu.Lock()
	p, ok := s.pipelines[in.PipelineID]
	if !ok {
		p = contracts.Pipeline{ID: in.PipelineID, Status: contracts.PipelineUnknown}
	}
	if in.Name != "" {
		p.Name = in.Name
	}
	if in.Status != "" {
		p.Status = contracts.PipelineStatus(in.Status)
		p.LastRun = contracts.NewTimestamp(s.now())
	}
	if in.SuccessRate != nil {
		p.SuccessRate = *in.SuccessRate
	}
	s.pipelines[in.PipelineID] = p
	entry := s.insertLog(in.PipelineID, in.Logs, s.now())
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, contracts.IngestResult{Message: "logs stored", LogID: entry.ID})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	pipelineID := pathParam(r, "pipelineID")

	s.mu.Lock()
	logs := s.matchLogs(pipelineID, "")
	res, ok := s.analyses[pipelineID]
	s.mu.Unlock()

	if len(logs) == 0 {
		writeError(w, http.StatusNotFound, "No logs for pipeline")
		return
	}
	if !ok {
		res = heuristicAnalysis(logs)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	s.mu.Lock()
	tasks := s.sortedTasks()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, page(tasks, limit, offset))
}

func (s *Server) handleCreateTask(w http.ResponseWriter, r *http.Request) {
	var in contracts.CreateTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.PipelineID == "" {
		writeError(w, http.StatusUnprocessableEntity, "invalid task payload")
		return
	}
	if in.Type == "" {
		in.Type = contracts.TaskRCA
	}
	if !in.Type.Valid() {
		writeError(w, http.StatusUnprocessableEntity, "unknown task type")
		return
	}

	s.mu.Lock()
	s.nextTaskID++
	now := contracts.NewTimestamp(s.now())
	s.tasks = append(s.tasks, contracts.AgentTask{
		ID:         s.nextTaskID,
		Type:       in.Type,
		PipelineID: in.PipelineID,
		Status:     contracts.TaskQueued,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	task := s.runTask(len(s.tasks) - 1)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.taskIndex(pathParam(r, "taskID"))
	var task contracts.AgentTask
	if idx >= 0 {
		task = s.tasks[idx]
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	idx := s.taskIndex(pathParam(r, "taskID"))
	var task contracts.AgentTask
	if idx >= 0 {
		task = s.runTask(idx)
	}
	s.mu.Unlock()

	if idx < 0 {
		writeError(w, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, task)
}

func (s *Server) handleSeed(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	ids := s.seed()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, contracts.SeedResult{Message: "seeded", Pipelines: ids})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.pipelines = make(map[string]contracts.Pipeline)
	s.analyses = make(map[string]contracts.AnalysisResult)
	s.logs = nil
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, contracts.ResetResult{Message: "reset complete"})
}

// seed loads the demo pipelines. Caller holds mu.
func (s *Server) seed() []string {
	now := s.now()
	type run struct {
		at     time.Time
		status contracts.PipelineStatus
		lines  []string
	}
	samples := []struct {
		id, name string
		runs     []run
	}{
		{"demo-1", "Demo Pipeline", []run{
			{now.Add(-48 * time.Hour), contracts.PipelineSuccess, []string{"Checkout code", "Install dependencies", "Run tests: 124 passed", "Build docker image: success"}},
			{now.Add(-24 * time.Hour), contracts.PipelineFailed, []string{"Checkout code", "Install dependencies", "Run tests: 2 failed, 122 passed", "FAILED tests/unit/test_api.py::test_create_user - AssertionError: expected 201 got 400"}},
		}},
		{"demo-2", "Infra Deploy", []run{
			{now.Add(-72 * time.Hour), contracts.PipelineFailed, []string{"Terraform init", "Terraform plan", "Error: Provider registry.terraform.io timeout", "Hint: Check network or provider version pinning"}},
			{now.Add(-24 * time.Hour), contracts.PipelineSuccess, []string{"Terraform apply", "Outputs saved"}},
		}},
		{"demo-3", "Web App CI", []run{
			{now.Add(-12 * time.Hour), contracts.PipelineFailed, []string{"npm ci", "npm run build", "ERROR in src/App.tsx: Cannot find module '@/components/Button'", "Build failed with exit code 2"}},
		}},
	}

	ids := make([]string, 0, len(samples))
	for _, sample := range samples {
		p := contracts.Pipeline{ID: sample.id, Name: sample.name, Status: contracts.PipelineUnknown}
		successes := 0
		for _, rn := range sample.runs {
			for i, line := range rn.lines {
				at := rn.at.Add(time.Duration(i) * time.Minute)
				s.insertLog(sample.id, fmt.Sprintf("[%s] %s", at.Format("2006-01-02T15:04:05"), line), at)
			}
			if rn.status == contracts.PipelineSuccess {
				successes++
			}
			p.Status = rn.status
			p.LastRun = contracts.NewTimestamp(now)
		}
		p.SuccessRate = float64(successes) / float64(len(sample.runs))
		s.pipelines[sample.id] = p
		ids = append(ids, sample.id)
	}
	return ids
}

// runTask executes the task at idx in place. Caller holds mu.
func (s *Server) runTask(idx int) contracts.AgentTask {
	t := &s.tasks[idx]
	var result map[string]interface{}

	switch t.Type {
	case contracts.TaskTriage:
		severity := "low"
		for _, e := range s.matchLogs(t.PipelineID, "") {
			c := strings.ToLower(e.Content)
			if strings.Contains(c, "error") || strings.Contains(c, "failed") {
				severity = "high"
				break
			}
		}
		t.Status = contracts.TaskCompleted
		result = map[string]interface{}{"kind": "triage", "severity": severity, "hints": []string{"Check failing steps", "Open pipeline detail"}}
	case contracts.TaskRCA:
		logs := s.matchLogs(t.PipelineID, "")
		if len(logs) == 0 {
			t.Status = contracts.TaskFailed
			result = map[string]interface{}{"error": "no logs"}
			break
		}
		a := heuristicAnalysis(logs)
		t.Status = contracts.TaskCompleted
		result = map[string]interface{}{"kind": "rca", "root_cause": a.RootCause, "suggested_fix": a.SuggestedFix, "confidence": a.Confidence}
	default:
		t.Status = contracts.TaskAwaitingApproval
		result = map[string]interface{}{"info": "fix plan requires approval"}
	}

	data, _ := json.Marshal(result)
	raw := string(data)
	t.ResultJSON = &raw
	t.UpdatedAt = contracts.NewTimestamp(s.now())
	return *t
}

// insertLog appends an entry. Caller holds mu.
func (s *Server) insertLog(pipelineID, content string, ts time.Time) contracts.LogEntry {
	s.nextLogID++
	e := contracts.LogEntry{
		ID:         s.nextLogID,
		PipelineID: pipelineID,
		Timestamp:  contracts.NewTimestamp(ts),
		Content:    content,
	}
	s.logs = append(s.logs, e)
	return e
}

// matchLogs returns a pipeline's entries, newest id first. Caller holds mu.
func (s *Server) matchLogs(pipelineID, q string) []contracts.LogEntry {
	var out []contracts.LogEntry
	for i := len(s.logs) - 1; i >= 0; i-- {
		e := s.logs[i]
		if e.PipelineID != pipelineID {
			continue
		}
		if q != "" && !strings.Contains(strings.ToLower(e.Content), q) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (s *Server) sortedTasks() []contracts.AgentTask {
	out := make([]contracts.AgentTask, len(s.tasks))
	copy(out, s.tasks)
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

func (s *Server) taskIndex(raw string) int {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return -1
	}
	for i, t := range s.tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func heuristicAnalysis(logs []contracts.LogEntry) contracts.AnalysisResult {
	for _, e := range logs {
		c := strings.ToLower(e.Content)
		switch {
		case strings.Contains(c, "timeout"):
			return contracts.AnalysisResult{RootCause: "Network timeout reaching a dependency", SuggestedFix: "Retry the job and pin provider versions", Confidence: contracts.ConfidenceMedium}
		case strings.Contains(c, "cannot find module"):
			return contracts.AnalysisResult{RootCause: "Missing module import", SuggestedFix: "Check the import path alias configuration", Confidence: contracts.ConfidenceHigh}
		case strings.Contains(c, "failed"):
			return contracts.AnalysisResult{RootCause: "Test failures", SuggestedFix: "Inspect the failing test output", Confidence: contracts.ConfidenceMedium}
		}
	}
	return contracts.AnalysisResult{RootCause: "No obvious failure in recent logs", SuggestedFix: "Inspect the full log", Confidence: contracts.ConfidenceLow}
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) || limit <= 0 {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func queryInt(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// pathParam returns the decoded route parameter. chi matches on the raw path, so
// an escaped segment such as p%2F1 arrives still escaped.
func pathParam(r *http.Request, key string) string {
	raw := chi.URLParam(r, key)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}
