// Package dashboard wires the client components together from a Config.
//
// An App owns one backend client, one event bus and a single instance of each
// long-lived component. Views (TUI, CLI, MCP) call into it rather than building
// components themselves.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"copilot-dash/src/analysis"
	"copilot-dash/src/api"
	"copilot-dash/src/config"
	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
	"copilot-dash/src/health"
	"copilot-dash/src/listsync"
	"copilot-dash/src/logger"
	"copilot-dash/src/logpager"
	"copilot-dash/src/tasks"
)

const (
	MsgSeedFailed  = "Seeding failed"
	MsgResetFailed = "Reset failed"
)

// ErrSettingsBusy is returned while a seed or reset is outstanding.
var ErrSettingsBusy = errors.New("a demo data action is already in progress")

// ActionError carries the message shown for a failed settings action.
type ActionError struct {
	Message string
	Err     error
}

func (e *ActionError) Error() string { return fmt.Sprintf("%s: %v", e.Message, e.Err) }
func (e *ActionError) Unwrap() error { return e.Err }

// App is the composition root.
type App struct {
	cfg    *config.Config
	log    logger.Logger
	client *api.Client
	bus    *events.Bus

	health    *health.Monitor
	pipelines *listsync.Synchronizer[contracts.Pipeline]
	tasks     *listsync.Synchronizer[contracts.AgentTask]
	orch      *tasks.Orchestrator
	analysis  *analysis.Invoker

	settingsBusy atomic.Bool
}

// Option configures an App.
type Option func(*options)

type options struct {
	log    logger.Logger
	mirror events.Broker
	client []api.Option
}

// WithLogger sets the logger shared by every component.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithMirror mirrors events to b instead of dialing the configured Redpanda brokers.
func WithMirror(b events.Broker) Option {
	return func(o *options) { o.mirror = b }
}

// WithClientOptions passes extra options to the backend client.
func WithClientOptions(opts ...api.Option) Option {
	return func(o *options) { o.client = append(o.client, opts...) }
}

// New builds an App. Components are constructed but nothing is started; call Start
// to begin health checks.
func New(cfg *config.Config, opts ...Option) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}
	log := logger.OrSilent(o.log)

	clientOpts := []api.Option{api.WithTimeout(cfg.RequestTimeout)}
	if cfg.Breaker {
		clientOpts = append(clientOpts, api.WithCircuitBreaker("copilot-backend", 5, 30*time.Second))
	}
	client := api.NewClient(cfg.APIBase, append(clientOpts, o.client...)...)

	busOpts := []events.BusOption{events.WithLogger(log)}
	mirror := o.mirror
	if mirror == nil && len(cfg.RedpandaBrokers) > 0 {
		rp, err := events.NewRedpandaBroker(cfg.RedpandaBrokers, log)
		if err != nil {
			log.Error("[dashboard] redpanda mirror disabled: %v", err)
		} else {
			mirror = rp
		}
	}
	if mirror != nil {
		busOpts = append(busOpts, events.WithMirror(mirror))
	}
	bus := events.NewBus(cfg.EventsTopic, events.NewInMemoryBroker(), busOpts...)

	a := &App{
		cfg:    cfg,
		log:    log,
		client: client,
		bus:    bus,
	}
	a.health = health.New(client,
		health.WithInterval(cfg.HealthInterval),
		health.WithLogger(log),
		health.WithEmitter(bus),
	)
	a.pipelines = listsync.New[contracts.Pipeline]("pipelines", client.ListPipelines,
		listsync.WithLogger(log),
		listsync.WithEmitter(bus),
	)
	a.tasks = listsync.New[contracts.AgentTask]("tasks", func(ctx context.Context) ([]contracts.AgentTask, error) {
		return client.ListTasks(ctx, cfg.TaskListLimit)
	},
		listsync.WithLogger(log),
		listsync.WithEmitter(bus),
	)
	a.orch = tasks.New(client, a.tasks, tasks.WithLogger(log), tasks.WithEmitter(bus))
	a.analysis = analysis.New(client, analysis.WithLogger(log), analysis.WithEmitter(bus))
	return a, nil
}

func (a *App) Config() *config.Config                                { return a.cfg }
func (a *App) Logger() logger.Logger                                 { return a.log }
func (a *App) Client() *api.Client                                   { return a.client }
func (a *App) Bus() *events.Bus                                      { return a.bus }
func (a *App) Health() *health.Monitor                               { return a.health }
func (a *App) Pipelines() *listsync.Synchronizer[contracts.Pipeline] { return a.pipelines }
func (a *App) Tasks() *listsync.Synchronizer[contracts.AgentTask]    { return a.tasks }
func (a *App) Orchestrator() *tasks.Orchestrator                     { return a.orch }
func (a *App) Analysis() *analysis.Invoker                           { return a.analysis }

// NewPager returns a fresh log pager for pipelineID. Each detail view gets its own.
func (a *App) NewPager(pipelineID string) *logpager.Pager {
	return logpager.New(a.client, pipelineID,
		logpager.WithPageSize(a.cfg.LogPageSize),
		logpager.WithLogger(a.log),
		logpager.WithEmitter(a.bus),
	)
}

// Start begins health checking.
func (a *App) Start(ctx context.Context) {
	a.health.Start(ctx)
}

// Close stops background work and flushes the event bus.
func (a *App) Close(ctx context.Context) error {
	a.health.Stop(ctx)
	return a.bus.Close()
}

// Snapshot is the result of refreshing everything at once.
type Snapshot struct {
	Health    contracts.HealthStatus
	Pipelines []contracts.Pipeline
	Tasks     []contracts.AgentTask
}

// Refresh probes health and reloads both lists concurrently. A failing load does not
// cancel the others; the first error is returned alongside whatever was loaded.
func (a *App) Refresh(ctx context.Context) (Snapshot, error) {
	var g errgroup.Group
	g.Go(func() error {
		a.health.Probe(ctx)
		return nil
	})
	g.Go(func() error { return a.pipelines.Load(ctx) })
	g.Go(func() error { return a.tasks.Load(ctx) })
	err := g.Wait()

	return Snapshot{
		Health:    a.health.Status(),
		Pipelines: a.pipelines.Items(),
		Tasks:     a.tasks.Items(),
	}, err
}

// SettingsBusy reports whether a seed or reset is outstanding.
func (a *App) SettingsBusy() bool { return a.settingsBusy.Load() }

// Seed loads demo data on the backend, then reloads the pipeline list.
func (a *App) Seed(ctx context.Context) (*contracts.SeedResult, error) {
	if !a.settingsBusy.CompareAndSwap(false, true) {
		return nil, ErrSettingsBusy
	}
	defer a.settingsBusy.Store(false)

	res, err := a.client.Seed(ctx)
	if err != nil {
		a.log.Error("[dashboard] seed: %v", err)
		a.bus.Emit(ctx, events.Event{Type: events.DemoSeeded, Error: err.Error()})
		return nil, &ActionError{Message: MsgSeedFailed, Err: err}
	}
	a.log.Info("[dashboard] seeded %s", strings.Join(res.Pipelines, ", "))
	a.bus.Emit(ctx, events.Event{Type: events.DemoSeeded, Count: len(res.Pipelines), Status: res.Message})
	a.reloadPipelines(ctx, "seed")
	return res, nil
}

// Reset clears demo data on the backend, then reloads the pipeline list.
func (a *App) Reset(ctx context.Context) (*contracts.ResetResult, error) {
	if !a.settingsBusy.CompareAndSwap(false, true) {
		return nil, ErrSettingsBusy
	}
	defer a.settingsBusy.Store(false)

	res, err := a.client.ResetSeed(ctx)
	if err != nil {
		a.log.Error("[dashboard] reset: %v", err)
		a.bus.Emit(ctx, events.Event{Type: events.DemoReset, Error: err.Error()})
		return nil, &ActionError{Message: MsgResetFailed, Err: err}
	}
	a.log.Info("[dashboard] %s", res.Message)
	a.bus.Emit(ctx, events.Event{Type: events.DemoReset, Status: res.Message})
	a.reloadPipelines(ctx, "reset")
	return res, nil
}

// reloadPipelines refreshes the list after a settings action. The action itself
// already succeeded, so a failed reload stays on Pipelines().Err().
func (a *App) reloadPipelines(ctx context.Context, action string) {
	if err := a.pipelines.Load(ctx); err != nil {
		a.log.Error("[dashboard] reload pipelines after %s: %v", action, err)
	}
}

// FilterPipelines keeps pipelines whose display name or status contains query,
// ignoring case. An empty query keeps everything. The input is not modified.
func FilterPipelines(pipelines []contracts.Pipeline, query string) []contracts.Pipeline {
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]contracts.Pipeline, 0, len(pipelines))
	for _, p := range pipelines {
		if q == "" ||
			strings.Contains(strings.ToLower(p.DisplayName()), q) ||
			strings.Contains(strings.ToLower(p.Status.String()), q) {
			out = append(out, p)
		}
	}
	return out
}
