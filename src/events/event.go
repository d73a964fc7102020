package events

import (
	"context"
	"time"
)

// Type names a dashboard state change.
type Type string

const (
	HealthChanged     Type = "health.changed"
	ListRefreshed     Type = "list.refreshed"
	LogsLoaded        Type = "logs.loaded"
	AnalysisCompleted Type = "analysis.completed"
	TaskCreated       Type = "task.created"
	TaskRerun         Type = "task.rerun"
	DemoSeeded        Type = "demo.seeded"
	DemoReset         Type = "demo.reset"
)

// Event is the payload published for every state change.
type Event struct {
	Type       Type      `json:"type"`
	At         time.Time `json:"at"`
	Source     string    `json:"source,omitempty"`
	PipelineID string    `json:"pipeline_id,omitempty"`
	TaskID     int64     `json:"task_id,omitempty"`
	Status     string    `json:"status,omitempty"`
	Count      int       `json:"count,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Key is the partition key: events for one pipeline stay ordered.
func (e Event) Key() string {
	if e.PipelineID != "" {
		return e.PipelineID
	}
	return string(e.Type)
}

// Emitter receives events from components. Implementations must not block the caller
// on slow consumers.
type Emitter interface {
	Emit(ctx context.Context, ev Event)
}

type discard struct{}

func (discard) Emit(context.Context, Event) {}

// Discard drops every event.
var Discard Emitter = discard{}

// OrDiscard returns e, or Discard when e is nil.
func OrDiscard(e Emitter) Emitter {
	if e == nil {
		return Discard
	}
	return e
}
