package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"copilot-dash/src/api"
	"copilot-dash/src/api/apitest"
	"copilot-dash/src/contracts"
)

func newBackend(t *testing.T) (*apitest.Server, *api.Client) {
	t.Helper()
	srv := apitest.NewServer()
	t.Cleanup(srv.Close)
	return srv, api.NewClient(srv.URL+"/", api.WithTimeout(2*time.Second))
}

func TestClient_Health(t *testing.T) {
	srv, client := newBackend(t)

	require.NoError(t, client.Health(context.Background()))

	srv.Fail(apitest.RouteHealth, http.StatusServiceUnavailable)
	err := client.Health(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, api.ErrOperationFailed)

	var serverErr *api.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusServiceUnavailable, serverErr.StatusCode)
}

func TestClient_ListPipelines(t *testing.T) {
	_, client := newBackend(t)
	ctx := context.Background()

	pipelines, err := client.ListPipelines(ctx)
	require.NoError(t, err)
	assert.NotNil(t, pipelines, "empty list should decode to an empty slice")
	assert.Empty(t, pipelines)

	_, err = client.Seed(ctx)
	require.NoError(t, err)

	pipelines, err = client.ListPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 3)

	byID := map[string]contracts.Pipeline{}
	for _, p := range pipelines {
		byID[p.ID] = p
	}
	assert.Equal(t, "Infra Deploy", byID["demo-2"].Name)
	assert.Equal(t, contracts.PipelineSuccess, byID["demo-2"].Status)
	assert.InDelta(t, 0.5, byID["demo-1"].SuccessRate, 1e-9)
	assert.Equal(t, contracts.PipelineFailed, byID["demo-3"].Status)
	assert.False(t, byID["demo-3"].LastRun.IsZero())
}

func TestClient_GetLogs(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		content := "step ok"
		if i%2 == 0 {
			content = "ERROR step failed"
		}
		srv.AddLog("p/1", content, base.Add(time.Duration(i)*time.Minute))
	}

	t.Run("paging newest first", func(t *testing.T) {
		entries, err := client.GetLogs(ctx, "p/1", api.LogQuery{Limit: 2, Offset: 0})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, int64(5), entries[0].ID)
		assert.Equal(t, int64(4), entries[1].ID)
		assert.Equal(t, "p/1", entries[0].PipelineID)
		assert.True(t, entries[0].Timestamp.Equal(base.Add(4*time.Minute)))
	})

	t.Run("filter is case-insensitive", func(t *testing.T) {
		entries, err := client.GetLogs(ctx, "p/1", api.LogQuery{Limit: 50, Q: "error"})
		require.NoError(t, err)
		assert.Len(t, entries, 3)
	})

	t.Run("query parameters", func(t *testing.T) {
		_, err := client.GetLogs(ctx, "p/1", api.LogQuery{Limit: 50, Offset: 100})
		require.NoError(t, err)

		reqs := srv.Requests()
		last := reqs[len(reqs)-1]
		assert.Equal(t, "/logs/p%2F1", last.Path, "pipeline id must be path-escaped")
		assert.Equal(t, "50", last.Query.Get("limit"))
		assert.Equal(t, "100", last.Query.Get("offset"))
		assert.Contains(t, last.Query, "q", "q is always sent, even when empty")
	})

	t.Run("past the end", func(t *testing.T) {
		entries, err := client.GetLogs(ctx, "p/1", api.LogQuery{Limit: 50, Offset: 50})
		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestClient_Analyze(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()

	_, err := client.Analyze(ctx, "nope")
	var serverErr *api.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusNotFound, serverErr.StatusCode)

	srv.AddLog("p1", "boom", time.Now())
	srv.SetAnalysis("p1", contracts.AnalysisResult{RootCause: "disk full", SuggestedFix: "prune", Confidence: contracts.ConfidenceHigh})

	res, err := client.Analyze(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "disk full", res.RootCause)
	assert.Equal(t, "prune", res.SuggestedFix)
	assert.Equal(t, contracts.ConfidenceHigh, res.Confidence)

	srv.AddLog("team/web", "request timeout", time.Now())
	res, err = client.Analyze(ctx, "team/web")
	require.NoError(t, err)
	assert.Equal(t, contracts.ConfidenceMedium, res.Confidence)
}

func TestClient_Tasks(t *testing.T) {
	srv, client := newBackend(t)
	ctx := context.Background()
	srv.AddLog("p1", "ERROR build failed", time.Now())

	require.NoError(t, client.CreateTask(ctx, contracts.CreateTaskRequest{PipelineID: "p1", Type: contracts.TaskTriage}))
	require.NoError(t, client.CreateTask(ctx, contracts.CreateTaskRequest{PipelineID: "p1", Type: contracts.TaskRCA}))

	reqs := srv.Requests()
	var body map[string]string
	require.NoError(t, json.Unmarshal(reqs[0].Body, &body))
	assert.Equal(t, map[string]string{"pipeline_id": "p1", "type": "triage"}, body)

	tasks, err := client.ListTasks(ctx, 100)
	require.NoError(t, err)
	require.Len(t, tasks, 2)
	assert.Equal(t, contracts.TaskRCA, tasks[0].Type, "newest first")
	assert.Equal(t, contracts.TaskCompleted, tasks[1].Status)
	assert.Contains(t, tasks[1].Result(), `"severity":"high"`)

	task, err := client.GetTask(ctx, tasks[1].ID)
	require.NoError(t, err)
	assert.Equal(t, tasks[1].ID, task.ID)

	require.NoError(t, client.RunTask(ctx, task.ID))
	assert.Equal(t, 1, srv.Count(apitest.RouteRunTask))

	err = client.RunTask(ctx, 999)
	assert.ErrorIs(t, err, api.ErrOperationFailed)
}

func TestClient_PostLogs(t *testing.T) {
	_, client := newBackend(t)
	ctx := context.Background()
	rate := 0.75

	out, err := client.PostLogs(ctx, contracts.LogIngest{
		PipelineID:  "gh-42",
		Logs:        "Run tests: ok",
		Name:        "Nightly",
		Status:      "success",
		SuccessRate: &rate,
	})
	require.NoError(t, err)
	assert.Equal(t, "logs stored", out.Message)
	assert.Positive(t, out.LogID)

	pipelines, err := client.ListPipelines(ctx)
	require.NoError(t, err)
	require.Len(t, pipelines, 1)
	assert.Equal(t, "Nightly", pipelines[0].Name)
	assert.InDelta(t, 0.75, pipelines[0].SuccessRate, 1e-9)

	bad := 1.5
	_, err = client.PostLogs(ctx, contracts.LogIngest{PipelineID: "gh-42", Logs: "x", SuccessRate: &bad})
	var serverErr *api.ServerError
	require.ErrorAs(t, err, &serverErr)
	assert.Equal(t, http.StatusUnprocessableEntity, serverErr.StatusCode)
}

func TestClient_SeedAndReset(t *testing.T) {
	_, client := newBackend(t)
	ctx := context.Background()

	seeded, err := client.Seed(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"demo-1", "demo-2", "demo-3"}, seeded.Pipelines)

	reset, err := client.ResetSeed(ctx)
	require.NoError(t, err)
	assert.Equal(t, "reset complete", reset.Message)

	pipelines, err := client.ListPipelines(ctx)
	require.NoError(t, err)
	assert.Empty(t, pipelines)
}

func TestClient_Headers(t *testing.T) {
	srv, client := newBackend(t)

	require.NoError(t, client.Health(context.Background()))
	require.NoError(t, client.Health(context.Background()))

	reqs := srv.Requests()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		_, err := uuid.Parse(r.RequestID)
		assert.NoError(t, err, "X-Request-ID should be a uuid")
	}
	assert.NotEqual(t, reqs[0].RequestID, reqs[1].RequestID)
}

func TestClient_Errors(t *testing.T) {
	tests := []struct {
		name  string
		setup func(srv *apitest.Server)
		check func(t *testing.T, err error)
	}{
		{
			name:  "server error",
			setup: func(srv *apitest.Server) { srv.Fail(apitest.RoutePipelines, http.StatusInternalServerError) },
			check: func(t *testing.T, err error) {
				var target *api.ServerError
				assert.ErrorAs(t, err, &target)
				assert.Contains(t, target.Body, "injected failure")
			},
		},
		{
			name:  "malformed body",
			setup: func(srv *apitest.Server) { srv.Malformed(apitest.RoutePipelines) },
			check: func(t *testing.T, err error) {
				var target *api.DecodeError
				assert.ErrorAs(t, err, &target)
			},
		},
		{
			name:  "unreachable",
			setup: func(srv *apitest.Server) { srv.Close() },
			check: func(t *testing.T, err error) {
				var target *api.TransportError
				assert.ErrorAs(t, err, &target)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, client := newBackend(t)
			tt.setup(srv)

			_, err := client.ListPipelines(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, api.ErrOperationFailed)
			tt.check(t, err)
		})
	}
}

func TestClient_Timeout(t *testing.T) {
	srv, _ := newBackend(t)
	gate := srv.Hold(apitest.RouteHealth)
	defer gate.Release()

	client := api.NewClient(srv.URL, api.WithTimeout(50*time.Millisecond))
	err := client.Health(context.Background())

	var target *api.TransportError
	assert.ErrorAs(t, err, &target)
}

func TestClient_CircuitBreaker(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer ts.Close()

	client := api.NewClient(ts.URL, api.WithCircuitBreaker("test", 2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		var serverErr *api.ServerError
		assert.ErrorAs(t, client.Health(ctx), &serverErr)
	}

	err := client.Health(ctx)
	var transport *api.TransportError
	require.ErrorAs(t, err, &transport)
	assert.True(t, strings.Contains(err.Error(), "open"), "breaker should report open state: %v", err)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the backend")
}

func TestWrapError(t *testing.T) {
	assert.NoError(t, api.WrapError(nil, "http://x"))

	plain := errors.New("plain")
	assert.Same(t, plain, api.WrapError(plain, "http://x"))

	wrapped := api.WrapError(&api.TransportError{Op: "health", Err: errors.New("refused")}, "http://localhost:8000")
	var userErr *api.UserError
	require.ErrorAs(t, wrapped, &userErr)
	assert.Equal(t, "Backend unreachable", userErr.Message)
	assert.Contains(t, wrapped.Error(), "http://localhost:8000")
	assert.ErrorIs(t, wrapped, api.ErrOperationFailed)

	notFound := api.WrapError(&api.ServerError{Op: "get task", StatusCode: 404}, "http://x")
	require.ErrorAs(t, notFound, &userErr)
	assert.Equal(t, "Not found", userErr.Message)
}
