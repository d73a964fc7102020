// Package tasks creates and reruns backend agent tasks and keeps the task list fresh.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"

	"copilot-dash/src/contracts"
	"copilot-dash/src/events"
	"copilot-dash/src/listsync"
	"copilot-dash/src/logger"
)

var (
	// ErrEmptyPipelineID is returned before any request when no pipeline is given.
	ErrEmptyPipelineID = errors.New("pipeline id is required")
	// ErrTaskTypeDisabled marks a known task type the backend cannot run yet.
	ErrTaskTypeDisabled = errors.New("task type is not available yet")
	// ErrUnknownTaskType marks a task type outside rca, triage and fix.
	ErrUnknownTaskType = errors.New("unknown task type")
	// ErrBusy is returned while a request of the same kind is outstanding.
	ErrBusy = errors.New("another task request is in progress")
)

// Client is the subset of the backend API the orchestrator calls.
type Client interface {
	CreateTask(ctx context.Context, req contracts.CreateTaskRequest) error
	RunTask(ctx context.Context, id int64) error
	GetTask(ctx context.Context, id int64) (*contracts.AgentTask, error)
}

// Orchestrator issues task mutations. Create and Rerun are guarded independently,
// so one of each may be outstanding at a time.
type Orchestrator struct {
	client Client
	list   *listsync.Synchronizer[contracts.AgentTask]
	log    logger.Logger
	emit   events.Emitter

	creating  atomic.Bool
	rerunning atomic.Bool
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger for mutations and refreshes. Defaults to silent.
func WithLogger(l logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithEmitter sets where task events go. Defaults to discarding them.
func WithEmitter(e events.Emitter) Option {
	return func(o *Orchestrator) { o.emit = e }
}

// New creates an Orchestrator that refreshes list after every mutation.
func New(client Client, list *listsync.Synchronizer[contracts.AgentTask], opts ...Option) *Orchestrator {
	o := &Orchestrator{client: client, list: list}
	for _, opt := range opts {
		opt(o)
	}
	o.log = logger.OrSilent(o.log)
	o.emit = events.OrDiscard(o.emit)
	return o
}

// Validate checks a create request without sending it.
func Validate(pipelineID string, typ contracts.TaskType) error {
	if pipelineID == "" {
		return ErrEmptyPipelineID
	}
	if !typ.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownTaskType, typ)
	}
	if !typ.Enabled() {
		return fmt.Errorf("%w: %s", ErrTaskTypeDisabled, typ)
	}
	return nil
}

// Create submits a new task and then refreshes the task list, whether or not the
// backend accepted it. A refresh failure is logged and kept on the list's own
// error state.
func (o *Orchestrator) Create(ctx context.Context, pipelineID string, typ contracts.TaskType) error {
	if err := Validate(pipelineID, typ); err != nil {
		return err
	}
	if !o.creating.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.creating.Store(false)
	defer o.refresh(ctx)

	ev := events.Event{Type: events.TaskCreated, PipelineID: pipelineID, Status: string(typ)}
	if err := o.client.CreateTask(ctx, contracts.CreateTaskRequest{PipelineID: pipelineID, Type: typ}); err != nil {
		o.log.Error("[tasks] create %s for %s: %v", typ, pipelineID, err)
		ev.Error = err.Error()
		o.emit.Emit(ctx, ev)
		return fmt.Errorf("create %s task: %w", typ, err)
	}
	o.log.Info("[tasks] created %s task for %s", typ, pipelineID)
	o.emit.Emit(ctx, ev)
	return nil
}

// Rerun asks the backend to execute an existing task again, then refreshes the list
// the same way Create does.
func (o *Orchestrator) Rerun(ctx context.Context, taskID int64) error {
	if !o.rerunning.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer o.rerunning.Store(false)
	defer o.refresh(ctx)

	ev := events.Event{Type: events.TaskRerun, TaskID: taskID}
	if err := o.client.RunTask(ctx, taskID); err != nil {
		o.log.Error("[tasks] rerun #%d: %v", taskID, err)
		ev.Error = err.Error()
		o.emit.Emit(ctx, ev)
		return fmt.Errorf("rerun task %d: %w", taskID, err)
	}
	o.log.Info("[tasks] reran task #%d", taskID)
	o.emit.Emit(ctx, ev)
	return nil
}

// Get fetches one task. The list is left untouched.
func (o *Orchestrator) Get(ctx context.Context, taskID int64) (*contracts.AgentTask, error) {
	t, err := o.client.GetTask(ctx, taskID)
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", taskID, err)
	}
	return t, nil
}

// Busy reports whether a create or a rerun is outstanding.
func (o *Orchestrator) Busy() bool {
	return o.creating.Load() || o.rerunning.Load()
}

// Creating reports whether a create is outstanding.
func (o *Orchestrator) Creating() bool { return o.creating.Load() }

// Rerunning reports whether a rerun is outstanding.
func (o *Orchestrator) Rerunning() bool { return o.rerunning.Load() }

// List returns the task synchronizer.
func (o *Orchestrator) List() *listsync.Synchronizer[contracts.AgentTask] { return o.list }

// refresh reloads the list once a request has settled. A cancelled request has
// not settled, so nothing is reloaded.
func (o *Orchestrator) refresh(ctx context.Context) {
	if o.list == nil || ctx.Err() != nil {
		return
	}
	if err := o.list.Load(ctx); err != nil {
		o.log.Error("[tasks] refresh after mutation: %v", err)
	}
}

// ParseID parses a task id as typed by a user, with or without a leading '#'.
func ParseID(s string) (int64, error) {
	if len(s) > 0 && s[0] == '#' {
		s = s[1:]
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid task id %q", s)
	}
	return id, nil
}
