// Package logpager loads a pipeline's logs page by page under a free-text filter.
//
// A reset starts a new session for a filter and replaces the buffer when its page
// arrives. An extend appends the next page of the current session. Every request is
// tagged with a generation; an arrival whose generation is no longer current is
// dropped, so a late response can never overwrite a newer reset.
package logpager

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"copilot-dash/src/api"
	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
	"copilot-dash/src/logger"
)

// DefaultPageSize is the number of entries requested per page.
const DefaultPageSize = 50

var (
	// ErrBusy is returned by BeginExtend while a request is outstanding.
	ErrBusy = errors.New("log request already in flight")
	// ErrNotStarted is returned by BeginExtend before the first reset.
	ErrNotStarted = errors.New("no log session to extend")
	// ErrSuperseded is returned by the synchronous wrappers when a newer reset
	// overtook the request.
	ErrSuperseded = errors.New("log request superseded")
)

// Fetcher retrieves one page of logs.
type Fetcher interface {
	GetLogs(ctx context.Context, pipelineID string, q api.LogQuery) ([]contracts.LogEntry, error)
}

// State is the pager's lifecycle state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Error
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Error:
		return "error"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Kind distinguishes the two request flavours.
type Kind int

const (
	KindReset Kind = iota
	KindExtend
)

func (k Kind) String() string {
	if k == KindExtend {
		return "extend"
	}
	return "reset"
}

// Request describes one page fetch. It is returned by BeginReset/BeginExtend and
// must be handed back, through Fetch, to Apply.
type Request struct {
	Kind       Kind
	Generation uint64
	PipelineID string
	Filter     string
	Offset     int
	Limit      int
}

// Result is a fetched page, or the error that prevented it.
type Result struct {
	Request
	Entries []contracts.LogEntry
	Err     error
}

// Pager is the log buffer of one pipeline.
type Pager struct {
	fetcher    Fetcher
	pipelineID string
	pageSize   int
	log        logger.Logger
	emit       events.Emitter

	mu      sync.Mutex
	gen     uint64
	state   State
	pending Request
	buf     contracts.LogBuffer
	started bool
	err     error
}

// Option configures a Pager.
type Option func(*Pager)

// WithPageSize overrides DefaultPageSize. Non-positive values are ignored.
func WithPageSize(n int) Option {
	return func(p *Pager) {
		if n > 0 {
			p.pageSize = n
		}
	}
}

// WithLogger sets the logger that receives fetch failures.
func WithLogger(l logger.Logger) Option {
	return func(p *Pager) { p.log = l }
}

// WithEmitter publishes a logs.loaded event for every applied page.
func WithEmitter(e events.Emitter) Option {
	return func(p *Pager) { p.emit = e }
}

// New creates an idle pager for pipelineID.
func New(fetcher Fetcher, pipelineID string, opts ...Option) *Pager {
	p := &Pager{
		fetcher:    fetcher,
		pipelineID: pipelineID,
		pageSize:   DefaultPageSize,
		buf: contracts.LogBuffer{
			PipelineID: pipelineID,
			Entries:    []contracts.LogEntry{},
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.log = logger.OrSilent(p.log)
	p.emit = events.OrDiscard(p.emit)
	return p
}

// PipelineID returns the pipeline this pager reads.
func (p *Pager) PipelineID() string { return p.pipelineID }

// PageSize returns the page size.
func (p *Pager) PageSize() int { return p.pageSize }

// BeginReset starts a new session for filter. It is always accepted and
// supersedes any outstanding request. The current buffer stays visible until the
// new page is applied.
func (p *Pager) BeginReset(filter string) Request {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gen++
	p.state = Loading
	p.started = true
	p.pending = Request{
		Kind:       KindReset,
		Generation: p.gen,
		PipelineID: p.pipelineID,
		Filter:     filter,
		Offset:     0,
		Limit:      p.pageSize,
	}
	return p.pending
}

// BeginExtend requests the next page of the current session. It fails with ErrBusy
// while any request is outstanding.
func (p *Pager) BeginExtend() (Request, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == Loading {
		return Request{}, ErrBusy
	}
	if !p.started {
		return Request{}, ErrNotStarted
	}

	p.gen++
	p.state = Loading
	p.pending = Request{
		Kind:       KindExtend,
		Generation: p.gen,
		PipelineID: p.pipelineID,
		Filter:     p.buf.Filter,
		Offset:     p.buf.Offset,
		Limit:      p.pageSize,
	}
	return p.pending, nil
}

// Fetch performs the request. It touches no pager state and may run on any goroutine.
func (p *Pager) Fetch(ctx context.Context, req Request) Result {
	entries, err := p.fetcher.GetLogs(ctx, req.PipelineID, api.LogQuery{
		Limit:  req.Limit,
		Offset: req.Offset,
		Q:      req.Filter,
	})
	return Result{Request: req, Entries: entries, Err: err}
}

// Apply merges a fetched page into the buffer. It returns false, changing nothing,
// when the result belongs to a superseded request.
func (p *Pager) Apply(res Result) bool {
	p.mu.Lock()
	if res.Generation != p.gen {
		current := p.gen
		p.mu.Unlock()
		p.log.Debug("[logs] %s: dropped stale %s page (generation %d, current %d)",
			p.pipelineID, res.Kind, res.Generation, current)
		return false
	}

	if res.Err != nil {
		p.state = Error
		p.err = fmt.Errorf("%s logs for %s: %w", res.Kind, p.pipelineID, res.Err)
		kept := len(p.buf.Entries)
		p.mu.Unlock()

		p.log.Error("[logs] %s %s failed, keeping %d entries: %v", p.pipelineID, res.Kind, kept, res.Err)
		p.emit.Emit(context.Background(), events.Event{
			Type:       events.LogsLoaded,
			PipelineID: p.pipelineID,
			Status:     "failed",
			Error:      res.Err.Error(),
		})
		return true
	}

	switch res.Kind {
	case KindReset:
		p.buf = contracts.LogBuffer{
			PipelineID: p.pipelineID,
			Filter:     res.Filter,
			Offset:     p.pageSize,
			Entries:    appendUnique(nil, res.Entries),
			Exhausted:  len(res.Entries) < p.pageSize,
		}
	case KindExtend:
		p.buf.Entries = appendUnique(p.buf.Entries, res.Entries)
		p.buf.Offset += p.pageSize
		p.buf.Exhausted = len(res.Entries) < p.pageSize
	}
	p.state = Ready
	p.err = nil
	total := len(p.buf.Entries)
	p.mu.Unlock()

	p.emit.Emit(context.Background(), events.Event{
		Type:       events.LogsLoaded,
		PipelineID: p.pipelineID,
		Status:     res.Kind.String(),
		Count:      total,
	})
	return true
}

// Reset runs a full reset cycle for filter.
func (p *Pager) Reset(ctx context.Context, filter string) error {
	return p.run(ctx, p.BeginReset(filter))
}

// Extend runs a full extend cycle.
func (p *Pager) Extend(ctx context.Context) error {
	req, err := p.BeginExtend()
	if err != nil {
		return err
	}
	return p.run(ctx, req)
}

func (p *Pager) run(ctx context.Context, req Request) error {
	res := p.Fetch(ctx, req)
	if !p.Apply(res) {
		return ErrSuperseded
	}
	if res.Err != nil {
		return fmt.Errorf("%s logs for %s: %w", req.Kind, p.pipelineID, res.Err)
	}
	return nil
}

// Buffer returns a snapshot of the current buffer.
func (p *Pager) Buffer() contracts.LogBuffer {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := p.buf
	out.Entries = make([]contracts.LogEntry, len(p.buf.Entries))
	copy(out.Entries, p.buf.Entries)
	return out
}

// State returns the lifecycle state.
func (p *Pager) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Loading reports whether a request is outstanding.
func (p *Pager) Loading() bool {
	return p.State() == Loading
}

// Pending returns the outstanding request, if any.
func (p *Pager) Pending() (Request, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pending, p.state == Loading
}

// Err returns the error of the last applied request, or nil.
func (p *Pager) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// appendUnique appends the entries of page whose id is not yet in dst.
func appendUnique(dst, page []contracts.LogEntry) []contracts.LogEntry {
	seen := make(map[int64]struct{}, len(dst)+len(page))
	for _, e := range dst {
		seen[e.ID] = struct{}{}
	}
	out := make([]contracts.LogEntry, len(dst), len(dst)+len(page))
	copy(out, dst)
	for _, e := range page {
		if _, dup := seen[e.ID]; dup {
			continue
		}
		seen[e.ID] = struct{}{}
		out = append(out, e)
	}
	return out
}
