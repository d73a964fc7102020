package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"copilot-dash/src/analysis"
	"copilot-dash/src/contracts"
	"copilot-dash/src/dashboard"
	"copilot-dash/src/events"
)

var bold = color.New(color.Bold)

func printPipelines(w io.Writer, pipelines []contracts.Pipeline) {
	if len(pipelines) == 0 {
		fmt.Fprintln(w, "No pipelines. Run 'copilot seed' to load demo data.")
		return
	}

	_, _ = bold.Fprintf(w, "%-16s %-28s %-10s %8s  %s\n", "ID", "NAME", "STATUS", "SUCCESS", "LAST RUN")
	for _, p := range pipelines {
		fmt.Fprintf(w, "%-16s %-28s %s %7d%%  %s\n",
			p.ID, p.DisplayName(), pipelineStatus(p.Status), p.SuccessPercent(), p.LastRun.Display())
	}
}

// pipelineStatus pads before coloring so the escape codes don't break alignment.
func pipelineStatus(s contracts.PipelineStatus) string {
	text := fmt.Sprintf("%-10s", s.String())
	switch s {
	case contracts.PipelineSuccess:
		return color.GreenString(text)
	case contracts.PipelineFailed:
		return color.RedString(text)
	}
	return color.YellowString(text)
}

func taskStatus(s contracts.TaskStatus) string {
	text := fmt.Sprintf("%-18s", string(s))
	switch s {
	case contracts.TaskCompleted:
		return color.GreenString(text)
	case contracts.TaskFailed:
		return color.RedString(text)
	case contracts.TaskAwaitingApproval:
		return color.YellowString(text)
	}
	return color.CyanString(text)
}

func printTasks(w io.Writer, tasks []contracts.AgentTask) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No agent tasks. Create one with 'copilot tasks create <pipeline-id>'.")
		return
	}

	_, _ = bold.Fprintf(w, "%-6s %-8s %-16s %-18s %s\n", "ID", "TYPE", "PIPELINE", "STATUS", "UPDATED")
	for _, t := range tasks {
		fmt.Fprintf(w, "%-6s %-8s %-16s %s %s\n",
			fmt.Sprintf("#%d", t.ID), t.Type, t.PipelineID, taskStatus(t.Status), t.UpdatedAt.Display())
	}
}

func printTask(w io.Writer, t contracts.AgentTask) {
	_, _ = bold.Fprintf(w, "Task #%d\n", t.ID)
	fmt.Fprintf(w, "  Type:     %s\n", t.Type)
	fmt.Fprintf(w, "  Pipeline: %s\n", t.PipelineID)
	fmt.Fprintf(w, "  Status:   %s\n", taskStatus(t.Status))
	fmt.Fprintf(w, "  Created:  %s\n", t.CreatedAt.Display())
	fmt.Fprintf(w, "  Updated:  %s\n", t.UpdatedAt.Display())
}

func printAnalysis(w io.Writer, s analysis.Session) {
	_, _ = bold.Fprintf(w, "Analysis: %s\n", s.PipelineID)
	if s.Phase == analysis.Failed {
		color.New(color.FgRed).Fprintf(w, "  Analysis failed: %v\n", s.Err)
	}
	fmt.Fprintf(w, "  Root cause:    %s\n", s.Result.RootCause)
	fmt.Fprintf(w, "  Suggested fix: %s\n", s.Result.SuggestedFix)
	fmt.Fprintf(w, "  Confidence:    %s\n", s.Result.Confidence)
}

func printHealth(w io.Writer, status contracts.HealthStatus, err error) {
	switch status {
	case contracts.HealthUp:
		color.New(color.FgGreen).Fprintln(w, "Backend: up ✓")
	case contracts.HealthDown:
		color.New(color.FgRed).Fprintf(w, "Backend: down ✗ (%v)\n", err)
	default:
		color.New(color.FgYellow).Fprintln(w, "Backend: unknown")
	}
}

func printStatus(w io.Writer, snap dashboard.Snapshot, healthErr error) {
	printHealth(w, snap.Health, healthErr)

	failed := 0
	for _, p := range snap.Pipelines {
		if p.Status == contracts.PipelineFailed {
			failed++
		}
	}
	fmt.Fprintf(w, "Pipelines: %d (%s)\n", len(snap.Pipelines), color.RedString("%d failed", failed))

	busy := 0
	for _, t := range snap.Tasks {
		if t.Status == contracts.TaskQueued || t.Status == contracts.TaskRunning {
			busy++
		}
	}
	fmt.Fprintf(w, "Agent tasks: %d (%d queued or running)\n", len(snap.Tasks), busy)
}

func printEvent(w io.Writer, ev events.Event) {
	line := fmt.Sprintf("%s  %-18s", ev.At.Local().Format("15:04:05"), ev.Type)
	if ev.Source != "" {
		line += " " + ev.Source
	}
	if ev.PipelineID != "" {
		line += " " + ev.PipelineID
	}
	if ev.TaskID != 0 {
		line += fmt.Sprintf(" #%d", ev.TaskID)
	}
	if ev.Status != "" {
		line += " " + ev.Status
	}
	if ev.Count != 0 {
		line += fmt.Sprintf(" (%d)", ev.Count)
	}
	if ev.Error != "" {
		fmt.Fprintln(w, line+" "+color.RedString("error: %s", ev.Error))
		return
	}
	fmt.Fprintln(w, line)
}

func printSuccess(w io.Writer, format string, args ...interface{}) {
	color.New(color.FgGreen).Fprintf(w, "✓ "+format+"\n", args...)
}
