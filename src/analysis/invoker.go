// Package analysis runs AI-assisted root cause analysis for pipelines.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
	"copilot-dash/src/logger"
)

var (
	// ErrEmptyPipelineID is returned when no pipeline is selected.
	ErrEmptyPipelineID = errors.New("pipeline id is required")
	// ErrPending is returned while the pipeline already has an analysis outstanding.
	ErrPending = errors.New("analysis already in progress")
)

// Fallback is shown whenever an analysis request fails.
var Fallback = contracts.AnalysisResult{
	RootCause:    "Request failed",
	SuggestedFix: "Retry later",
	Confidence:   contracts.ConfidenceLow,
}

// Analyzer triggers one analysis on the backend.
type Analyzer interface {
	Analyze(ctx context.Context, pipelineID string) (*contracts.AnalysisResult, error)
}

// Phase is the analysis lifecycle of one pipeline.
type Phase int

const (
	Idle Phase = iota
	Pending
	Ready
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Pending:
		return "pending"
	case Ready:
		return "ready"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Session is the visible analysis state of a pipeline. Result is the backend's
// answer when Ready and the Fallback when Failed.
type Session struct {
	PipelineID string
	Phase      Phase
	Result     contracts.AnalysisResult
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// HasResult reports whether Result holds something to display.
func (s Session) HasResult() bool {
	return s.Phase == Ready || s.Phase == Failed
}

// Invoker tracks one analysis session per pipeline.
type Invoker struct {
	analyzer Analyzer
	log      logger.Logger
	emit     events.Emitter
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]Session
}

// Option configures an Invoker.
type Option func(*Invoker)

// WithLogger sets the logger that receives analysis failures.
func WithLogger(l logger.Logger) Option {
	return func(i *Invoker) { i.log = l }
}

// WithEmitter publishes an analysis.completed event for every outcome.
func WithEmitter(e events.Emitter) Option {
	return func(i *Invoker) { i.emit = e }
}

// New creates an Invoker.
func New(analyzer Analyzer, opts ...Option) *Invoker {
	i := &Invoker{
		analyzer: analyzer,
		now:      time.Now,
		sessions: make(map[string]Session),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.log = logger.OrSilent(i.log)
	i.emit = events.OrDiscard(i.emit)
	return i
}

// Begin moves pipelineID to Pending, discarding any previous result.
func (i *Invoker) Begin(pipelineID string) error {
	if pipelineID == "" {
		return ErrEmptyPipelineID
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if s, ok := i.sessions[pipelineID]; ok && s.Phase == Pending {
		return ErrPending
	}
	i.sessions[pipelineID] = Session{
		PipelineID: pipelineID,
		Phase:      Pending,
		StartedAt:  i.now(),
	}
	return nil
}

// Complete records the outcome of the outstanding request for pipelineID and
// returns the resulting session. Any failure, or an empty answer, yields Fallback.
// A completion with no pending request is ignored.
func (i *Invoker) Complete(pipelineID string, res *contracts.AnalysisResult, err error) Session {
	if err == nil && res == nil {
		err = errors.New("empty analysis response")
	}

	i.mu.Lock()
	s, ok := i.sessions[pipelineID]
	if !ok || s.Phase != Pending {
		i.mu.Unlock()
		return s
	}

	s.FinishedAt = i.now()
	if err != nil {
		s.Phase = Failed
		s.Result = Fallback
		s.Err = err
	} else {
		s.Phase = Ready
		s.Result = *res
		s.Result.Confidence = contracts.ParseConfidence(string(res.Confidence))
		s.Err = nil
	}
	i.sessions[pipelineID] = s
	i.mu.Unlock()

	ev := events.Event{
		Type:       events.AnalysisCompleted,
		PipelineID: pipelineID,
		Status:     s.Phase.String(),
	}
	if err != nil {
		i.log.Error("[analysis] %s failed, showing fallback: %v", pipelineID, err)
		ev.Error = err.Error()
	} else {
		i.log.Info("[analysis] %s: %s (confidence %s)", pipelineID, s.Result.RootCause, s.Result.Confidence)
	}
	i.emit.Emit(context.Background(), ev)
	return s
}

// Analyze runs a full analysis cycle. The returned error is only ever a rejection
// by Begin; backend failures are reported through the Failed session.
func (i *Invoker) Analyze(ctx context.Context, pipelineID string) (Session, error) {
	if err := i.Begin(pipelineID); err != nil {
		return i.Session(pipelineID), err
	}
	res, err := i.analyzer.Analyze(ctx, pipelineID)
	return i.Complete(pipelineID, res, err), nil
}

// Session returns the current state for pipelineID. Unknown pipelines are Idle.
func (i *Invoker) Session(pipelineID string) Session {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s, ok := i.sessions[pipelineID]; ok {
		return s
	}
	return Session{PipelineID: pipelineID, Phase: Idle}
}

// Pending reports whether pipelineID has a request outstanding.
func (i *Invoker) Pending(pipelineID string) bool {
	return i.Session(pipelineID).Phase == Pending
}

// Forget drops a settled session so the pipeline starts Idle next time.
// A pending session is kept.
func (i *Invoker) Forget(pipelineID string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	if s, ok := i.sessions[pipelineID]; ok && s.Phase != Pending {
		delete(i.sessions, pipelineID)
	}
}
