// Package listsync keeps a client-side copy of a backend collection.
//
// A load either replaces the held items wholesale or, on failure, leaves them as they
// were. When loads overlap, the most recently started one decides the outcome; an
// older load finishing late is discarded whether it succeeded or failed.
package listsync

import (
	"context"
	"fmt"
	"sync"
	"time"

	"copilot-dash/src/events"
	"copilot-dash/src/logger"
)

// LoadFunc fetches the full collection.
type LoadFunc[T any] func(ctx context.Context) ([]T, error)

// Ticket identifies one initiated load.
type Ticket struct {
	gen uint64
}

// Synchronizer holds the last successfully loaded collection.
type Synchronizer[T any] struct {
	name string
	load LoadFunc[T]
	log  logger.Logger
	emit events.Emitter
	now  func() time.Time

	mu        sync.RWMutex
	items     []T
	gen       uint64
	pending   bool
	err       error
	loadedAt  time.Time
	succeeded bool
}

// Option configures a Synchronizer.
type Option func(*settings)

type settings struct {
	log  logger.Logger
	emit events.Emitter
}

// WithLogger sets the logger that receives load failures.
func WithLogger(l logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithEmitter publishes a list.refreshed event after every applied load.
func WithEmitter(e events.Emitter) Option {
	return func(s *settings) { s.emit = e }
}

// New creates an empty Synchronizer. name identifies the collection in logs and events.
func New[T any](name string, load LoadFunc[T], opts ...Option) *Synchronizer[T] {
	var cfg settings
	for _, opt := range opts {
		opt(&cfg)
	}
	return &Synchronizer[T]{
		name:  name,
		load:  load,
		log:   logger.OrSilent(cfg.log),
		emit:  events.OrDiscard(cfg.emit),
		now:   time.Now,
		items: []T{},
	}
}

// Name returns the collection name.
func (s *Synchronizer[T]) Name() string { return s.name }

// Begin starts a load and supersedes any load still outstanding.
func (s *Synchronizer[T]) Begin() Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gen++
	s.pending = true
	return Ticket{gen: s.gen}
}

// Fetch runs the load function for t. It touches no state.
func (s *Synchronizer[T]) Fetch(ctx context.Context, t Ticket) ([]T, error) {
	return s.load(ctx)
}

// Complete applies the outcome of the load identified by t. It returns false when a
// newer load has been started since, in which case nothing changes.
func (s *Synchronizer[T]) Complete(t Ticket, items []T, err error) bool {
	s.mu.Lock()
	if t.gen != s.gen {
		s.mu.Unlock()
		s.log.Debug("[%s] discarded superseded load %d (current %d)", s.name, t.gen, s.gen)
		return false
	}

	s.pending = false
	ev := events.Event{Type: events.ListRefreshed, Source: s.name}
	if err != nil {
		s.err = fmt.Errorf("load %s: %w", s.name, err)
		ev.Status = "failed"
		ev.Error = err.Error()
		ev.Count = len(s.items)
	} else {
		next := make([]T, len(items))
		copy(next, items)
		s.items = next
		s.err = nil
		s.loadedAt = s.now()
		s.succeeded = true
		ev.Status = "ok"
		ev.Count = len(next)
	}
	s.mu.Unlock()

	if err != nil {
		s.log.Error("[%s] load failed, keeping previous items: %v", s.name, err)
	}
	s.emit.Emit(context.Background(), ev)
	return true
}

// Load runs one full load cycle and returns the load error, if any. A load that was
// superseded while in flight returns nil.
func (s *Synchronizer[T]) Load(ctx context.Context) error {
	t := s.Begin()
	items, err := s.Fetch(ctx, t)
	if !s.Complete(t, items, err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load %s: %w", s.name, err)
	}
	return nil
}

// Items returns a copy of the held collection.
func (s *Synchronizer[T]) Items() []T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]T, len(s.items))
	copy(out, s.items)
	return out
}

// Len returns the number of held items.
func (s *Synchronizer[T]) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Loading reports whether a load is outstanding.
func (s *Synchronizer[T]) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pending
}

// Err returns the error of the most recent applied load, or nil if it succeeded.
func (s *Synchronizer[T]) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.err
}

// LoadedAt returns when the held items were loaded, or the zero time.
func (s *Synchronizer[T]) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Stale reports whether the held items come from an earlier load because the most
// recent one failed.
func (s *Synchronizer[T]) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.succeeded && s.err != nil
}
