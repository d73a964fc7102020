// Package api provides a client for the DevOps Copilot backend HTTP API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker"

	"copilot-dash/src/contracts"
)

const (
	// DefaultTimeout bounds each request when no timeout is configured.
	DefaultTimeout = 30 * time.Second

	// maxErrorBody caps how much of a failed response is kept for the error message.
	maxErrorBody = 4096
)

// Client is a DevOps Copilot API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithCircuitBreaker trips after consecutive failures and fails fast until the
// backend recovers. An open breaker surfaces as a TransportError.
func WithCircuitBreaker(name string, consecutiveFailures uint32, cooldown time.Duration) Option {
	return func(c *Client) {
		c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    name,
			Timeout: cooldown,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= consecutiveFailures
			},
		})
	}
}

// NewClient creates a new API client for baseURL (e.g. http://localhost:8000).
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: trimSlash(baseURL),
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured backend address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health probes GET /health. Any 2xx is healthy.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, "health", http.MethodGet, "/health", nil, nil, nil)
}

// ListPipelines fetches GET /pipelines.
func (c *Client) ListPipelines(ctx context.Context) ([]contracts.Pipeline, error) {
	var pipelines []contracts.Pipeline
	if err := c.do(ctx, "list pipelines", http.MethodGet, "/pipelines", nil, nil, &pipelines); err != nil {
		return nil, err
	}
	return nonNil(pipelines), nil
}

// LogQuery selects one page of logs.
type LogQuery struct {
	Limit  int
	Offset int
	Q      string
}

// GetLogs fetches one page via GET /logs/{pipelineID}?limit=&offset=&q=.
func (c *Client) GetLogs(ctx context.Context, pipelineID string, q LogQuery) ([]contracts.LogEntry, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(q.Limit))
	params.Set("offset", strconv.Itoa(q.Offset))
	params.Set("q", q.Q)

	var entries []contracts.LogEntry
	path := "/logs/" + url.PathEscape(pipelineID)
	if err := c.do(ctx, "get logs", http.MethodGet, path, params, nil, &entries); err != nil {
		return nil, err
	}
	return nonNil(entries), nil
}

// PostLogs ingests raw log text via POST /logs.
func (c *Client) PostLogs(ctx context.Context, in contracts.LogIngest) (*contracts.IngestResult, error) {
	var out contracts.IngestResult
	if err := c.do(ctx, "post logs", http.MethodPost, "/logs", nil, in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Analyze triggers POST /analyze/{pipelineID}.
func (c *Client) Analyze(ctx context.Context, pipelineID string) (*contracts.AnalysisResult, error) {
	var out contracts.AnalysisResult
	path := "/analyze/" + url.PathEscape(pipelineID)
	if err := c.do(ctx, "analyze", http.MethodPost, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListTasks fetches GET /agent/tasks?limit=.
func (c *Client) ListTasks(ctx context.Context, limit int) ([]contracts.AgentTask, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))

	var tasks []contracts.AgentTask
	if err := c.do(ctx, "list tasks", http.MethodGet, "/agent/tasks", params, nil, &tasks); err != nil {
		return nil, err
	}
	return nonNil(tasks), nil
}

// GetTask fetches GET /agent/tasks/{id}.
func (c *Client) GetTask(ctx context.Context, id int64) (*contracts.AgentTask, error) {
	var task contracts.AgentTask
	path := "/agent/tasks/" + strconv.FormatInt(id, 10)
	if err := c.do(ctx, "get task", http.MethodGet, path, nil, nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// CreateTask posts a new agent task. The response body is drained but not decoded;
// callers re-read the task list instead.
func (c *Client) CreateTask(ctx context.Context, req contracts.CreateTaskRequest) error {
	return c.do(ctx, "create task", http.MethodPost, "/agent/tasks", nil, req, nil)
}

// RunTask re-triggers POST /agent/tasks/{id}/run. The response body is ignored.
func (c *Client) RunTask(ctx context.Context, id int64) error {
	path := "/agent/tasks/" + strconv.FormatInt(id, 10) + "/run"
	return c.do(ctx, "run task", http.MethodPost, path, nil, nil, nil)
}

// Seed populates demo data via POST /seed.
func (c *Client) Seed(ctx context.Context) (*contracts.SeedResult, error) {
	var out contracts.SeedResult
	if err := c.do(ctx, "seed", http.MethodPost, "/seed", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetSeed clears demo data via POST /seed/reset.
func (c *Client) ResetSeed(ctx context.Context) (*contracts.ResetResult, error) {
	var out contracts.ResetResult
	if err := c.do(ctx, "reset", http.MethodPost, "/seed/reset", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// do executes one request. A nil out drains the body without decoding it.
func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out interface{}) error {
	if c.breaker == nil {
		return c.roundTrip(ctx, op, method, path, params, body, out)
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.roundTrip(ctx, op, method, path, params, body, out)
	})
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return &TransportError{Op: op, Err: err}
	}
	return err
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, params url.Values, body, out interface{}) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: failed to encode request: %w", op, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: failed to create request: %w", op, err)
	}

	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &ServerError{Op: op, StatusCode: resp.StatusCode, Body: string(data)}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &DecodeError{Op: op, Err: err}
	}
	return nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[len(s)-1] == '/' {
		s = s[:len(s)-1]
	}
	return s
}

// nonNil turns a decoded JSON null into an empty slice.
func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
