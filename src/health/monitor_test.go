package health

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"copilot-dash/src/api"
	"copilot-dash/src/api/apitest"
	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
	)
}

// fakeProber returns queued results and can block until released.
type fakeProber struct {
	mu      sync.Mutex
	results []error
	calls   atomic.Int32
	block   chan struct{}
	entered chan struct{}
}

func (f *fakeProber) Health(ctx context.Context) error {
	f.calls.Add(1)
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.results) == 0 {
		return nil
	}
	err := f.results[0]
	f.results = f.results[1:]
	return err
}

type recordingEmitter struct {
	mu     sync.Mutex
	events []events.Event
}

func (r *recordingEmitter) Emit(_ context.Context, ev events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recordingEmitter) all() []events.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Event(nil), r.events...)
}

func TestMonitor_InitialUnknown(t *testing.T) {
	m := New(&fakeProber{})
	assert.Equal(t, contracts.HealthUnknown, m.Status())
	assert.True(t, m.CheckedAt().IsZero())
}

func TestMonitor_Probe(t *testing.T) {
	tests := []struct {
		name    string
		results []error
		want    []contracts.HealthStatus
	}{
		{
			name:    "healthy",
			results: []error{nil},
			want:    []contracts.HealthStatus{contracts.HealthUp},
		},
		{
			name:    "unreachable",
			results: []error{errors.New("connection refused")},
			want:    []contracts.HealthStatus{contracts.HealthDown},
		},
		{
			name:    "recovers",
			results: []error{errors.New("503"), nil},
			want:    []contracts.HealthStatus{contracts.HealthDown, contracts.HealthUp},
		},
		{
			name:    "goes down",
			results: []error{nil, errors.New("timeout")},
			want:    []contracts.HealthStatus{contracts.HealthUp, contracts.HealthDown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(&fakeProber{results: tt.results})
			for _, want := range tt.want {
				require.True(t, m.Probe(context.Background()))
				assert.Equal(t, want, m.Status())
			}
			assert.False(t, m.CheckedAt().IsZero())
		})
	}
}

func TestMonitor_ProbeInFlightGuard(t *testing.T) {
	p := &fakeProber{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := New(p)

	done := make(chan bool)
	go func() { done <- m.Probe(context.Background()) }()
	<-p.entered

	assert.False(t, m.Probe(context.Background()), "overlapping probe must be a no-op")
	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, contracts.HealthUnknown, m.Status(), "status stays unknown until the first probe resolves")

	close(p.block)
	assert.True(t, <-done)
	assert.Equal(t, contracts.HealthUp, m.Status())
}

func TestMonitor_EmitsTransitions(t *testing.T) {
	rec := &recordingEmitter{}
	m := New(&fakeProber{results: []error{nil, nil, errors.New("down")}}, WithEmitter(rec))

	for i := 0; i < 3; i++ {
		m.Probe(context.Background())
	}

	evs := rec.all()
	require.Len(t, evs, 2, "repeated up must not emit")
	assert.Equal(t, events.HealthChanged, evs[0].Type)
	assert.Equal(t, "up", evs[0].Status)
	assert.Equal(t, "down", evs[1].Status)
	assert.Equal(t, "down", evs[1].Error)
}

func TestMonitor_StartSingleCheck(t *testing.T) {
	p := &fakeProber{}
	m := New(p)

	m.Start(context.Background())
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)

	assert.Equal(t, int32(1), p.calls.Load())
	assert.Equal(t, contracts.HealthUp, m.Status())
}

func TestMonitor_StartInterval(t *testing.T) {
	p := &fakeProber{}
	m := New(p, WithInterval(10*time.Millisecond))

	m.Start(context.Background())
	assert.Eventually(t, func() bool { return p.calls.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)

	calls := p.calls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, calls, p.calls.Load(), "no probes after Stop")
}

func TestMonitor_StartTwiceRunsOneLoop(t *testing.T) {
	p := &fakeProber{block: make(chan struct{}), entered: make(chan struct{}, 2)}
	m := New(p)

	m.Start(context.Background())
	<-p.entered
	m.Start(context.Background())

	select {
	case <-p.entered:
		t.Fatal("second Start began another loop")
	case <-time.After(20 * time.Millisecond):
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)
	assert.Equal(t, int32(1), p.calls.Load())

	// Stopped monitors can be started again.
	close(p.block)
	m.Start(context.Background())
	<-p.entered
	m.Stop(ctx)
	assert.Equal(t, int32(2), p.calls.Load())
}

func TestMonitor_StopCancelsOutstandingProbe(t *testing.T) {
	p := &fakeProber{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	m := New(p)

	m.Start(context.Background())
	<-p.entered

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	m.Stop(ctx)

	assert.Equal(t, contracts.HealthUnknown, m.Status(), "a cancelled probe must not flip the indicator")
}

func TestMonitor_AgainstBackend(t *testing.T) {
	srv := apitest.NewServer()
	defer srv.Close()

	m := New(api.NewClient(srv.URL))
	m.Probe(context.Background())
	assert.Equal(t, contracts.HealthUp, m.Status())

	srv.Fail(apitest.RouteHealth, 500)
	m.Probe(context.Background())
	assert.Equal(t, contracts.HealthDown, m.Status())
	assert.ErrorIs(t, m.Err(), api.ErrOperationFailed)
}
