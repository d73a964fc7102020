// Package health tracks whether the backend is reachable.
package health

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
	"copilot-dash/src/logger"
)

// Prober performs one liveness request. Any error means the backend is down.
type Prober interface {
	Health(ctx context.Context) error
}

// Monitor holds the tri-state backend status. The status stays unknown until the
// first probe resolves; after that every probe overwrites it.
type Monitor struct {
	prober   Prober
	interval time.Duration
	log      logger.Logger
	emit     events.Emitter
	now      func() time.Time

	inFlight atomic.Bool

	mu        sync.RWMutex
	status    contracts.HealthStatus
	checkedAt time.Time
	lastErr   error

	// cancel is non-nil while the polling loop runs.
	runMu  sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Monitor.
type Option func(*Monitor)

// WithInterval re-probes every d after Start. Zero means a single check.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) { m.interval = d }
}

// WithLogger sets the logger that receives probe failures.
func WithLogger(l logger.Logger) Option {
	return func(m *Monitor) { m.log = l }
}

// WithEmitter publishes a health.changed event on every transition.
func WithEmitter(e events.Emitter) Option {
	return func(m *Monitor) { m.emit = e }
}

// New creates a Monitor in the unknown state.
func New(prober Prober, opts ...Option) *Monitor {
	m := &Monitor{
		prober: prober,
		status: contracts.HealthUnknown,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.log = logger.OrSilent(m.log)
	m.emit = events.OrDiscard(m.emit)
	return m
}

// Probe issues one liveness request and records the outcome. It returns false
// without issuing a request when a probe is already outstanding.
func (m *Monitor) Probe(ctx context.Context) bool {
	if !m.inFlight.CompareAndSwap(false, true) {
		m.log.Debug("[health] probe skipped, previous probe still outstanding")
		return false
	}
	defer m.inFlight.Store(false)

	err := m.prober.Health(ctx)
	if err != nil && ctx.Err() != nil {
		// Cancelled by Stop; the backend state is unknown, keep the last value.
		return true
	}

	next := contracts.HealthUp
	if err != nil {
		next = contracts.HealthDown
		m.log.Error("[health] backend unreachable: %v", err)
	}

	m.mu.Lock()
	prev := m.status
	m.status = next
	m.checkedAt = m.now()
	m.lastErr = err
	m.mu.Unlock()

	if prev != next {
		m.log.Info("[health] backend %s", next)
		ev := events.Event{Type: events.HealthChanged, Status: string(next)}
		if err != nil {
			ev.Error = err.Error()
		}
		m.emit.Emit(ctx, ev)
	}
	return true
}

// Status returns the current indicator value.
func (m *Monitor) Status() contracts.HealthStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// CheckedAt returns when the last probe resolved, or the zero time.
func (m *Monitor) CheckedAt() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.checkedAt
}

// Err returns the error from the last probe, or nil.
func (m *Monitor) Err() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Interval returns the configured re-probe interval.
func (m *Monitor) Interval() time.Duration {
	return m.interval
}

// Start probes once immediately and then on every tick of the configured interval.
// A tick that lands while a probe is outstanding is a no-op. Start on a running
// monitor does nothing; after Stop it may be started again.
func (m *Monitor) Start(ctx context.Context) {
	m.runMu.Lock()
	defer m.runMu.Unlock()
	if m.cancel != nil {
		m.log.Debug("[health] monitor already running")
		return
	}
	ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()

		m.Probe(ctx)
		if m.interval <= 0 {
			return
		}

		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.wg.Add(1)
				go func() {
					defer m.wg.Done()
					m.Probe(ctx)
				}()
			}
		}
	}()
}

// Stop cancels the polling loop and any outstanding probe, then waits for them to
// exit or for ctx to expire.
func (m *Monitor) Stop(ctx context.Context) {
	m.runMu.Lock()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.runMu.Unlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.log.Debug("[health] monitor stopped")
	case <-ctx.Done():
		m.log.Error("[health] monitor stop timed out")
	}
}
