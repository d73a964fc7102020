package tui

import (
	"fmt"

	"copilot-dash/src/contracts"
)

// pipelineItem wraps a Pipeline for bubbles/list.
type pipelineItem struct {
	Pipeline contracts.Pipeline
}

func (i pipelineItem) FilterValue() string { return i.Pipeline.DisplayName() }
func (i pipelineItem) Title() string       { return i.Pipeline.DisplayName() }
func (i pipelineItem) Description() string { return i.Pipeline.ID }

// taskItem wraps an AgentTask for bubbles/list.
type taskItem struct {
	Task contracts.AgentTask
}

func (i taskItem) FilterValue() string { return i.Task.PipelineID }
func (i taskItem) Title() string       { return fmt.Sprintf("#%d %s", i.Task.ID, i.Task.Type) }
func (i taskItem) Description() string { return string(i.Task.Status) }
