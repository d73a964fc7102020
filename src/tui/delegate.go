package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	// listRenderingOverhead accounts for padding added by bubbles/list and panel borders.
	listRenderingOverhead = 6

	statusWidth = 8
	rateWidth   = 5
	runWidth    = 19
	idWidth     = 5
	typeWidth   = 7
	taskStatusW = 17
)

// rowDelegate holds what both list delegates share. Rows are one line high with
// no spacing.
type rowDelegate struct {
	styles *StyleConfig
}

func (d rowDelegate) Height() int                               { return 1 }
func (d rowDelegate) Spacing() int                              { return 0 }
func (d rowDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }

func (d rowDelegate) rowStyle(selected bool) lipgloss.Style {
	style := lipgloss.NewStyle().Foreground(d.styles.TextSecondary)
	if selected {
		style = style.Bold(true).Foreground(d.styles.PrimaryBlue).Background(d.styles.SelectedColor)
	}
	return style
}

func (d rowDelegate) badge(text string, color lipgloss.Color, width int) string {
	return lipgloss.NewStyle().Foreground(color).Render(TruncateAndPad(text, width, false))
}

// pipelineDelegate renders pipelines as "name │ status │ rate │ last run".
type pipelineDelegate struct {
	rowDelegate
}

func newPipelineDelegate(styles *StyleConfig) *pipelineDelegate {
	return &pipelineDelegate{rowDelegate{styles: styles}}
}

func pipelineHeader(width int) string {
	nameWidth := width - statusWidth - rateWidth - runWidth - 9 - listRenderingOverhead
	if nameWidth < 8 {
		nameWidth = 8
	}
	return strings.Join([]string{
		TruncateAndPad("Pipeline", nameWidth, false),
		TruncateAndPad("Status", statusWidth, false),
		PadLeft("Rate", rateWidth),
		TruncateAndPad("Last run", runWidth, false),
	}, " │ ")
}

func (d *pipelineDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(pipelineItem)
	if !ok {
		return
	}
	p := entry.Pipeline

	nameWidth := m.Width() - statusWidth - rateWidth - runWidth - 9 - listRenderingOverhead
	if nameWidth < 8 {
		nameWidth = 8
	}

	selected := index == m.Index()
	style := d.rowStyle(selected)
	status := d.badge(p.Status.String(), d.styles.PipelineStatusColor(p.Status), statusWidth)
	line := strings.Join([]string{
		style.Render(TruncateAndPad(p.DisplayName(), nameWidth, true)),
		status,
		style.Render(PadLeft(fmt.Sprintf("%d%%", p.SuccessPercent()), rateWidth)),
		style.Render(TruncateAndPad(p.LastRun.Display(), runWidth, false)),
	}, style.Render(" │ "))

	fmt.Fprint(w, line)
}

// taskDelegate renders tasks as "#id │ type │ pipeline │ status │ updated".
type taskDelegate struct {
	rowDelegate
}

func newTaskDelegate(styles *StyleConfig) *taskDelegate {
	return &taskDelegate{rowDelegate{styles: styles}}
}

func taskHeader(width int) string {
	pipeWidth := width - idWidth - typeWidth - taskStatusW - runWidth - 12 - listRenderingOverhead
	if pipeWidth < 8 {
		pipeWidth = 8
	}
	return strings.Join([]string{
		PadLeft("ID", idWidth),
		TruncateAndPad("Type", typeWidth, false),
		TruncateAndPad("Pipeline", pipeWidth, false),
		TruncateAndPad("Status", taskStatusW, false),
		TruncateAndPad("Updated", runWidth, false),
	}, " │ ")
}

func (d *taskDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	entry, ok := item.(taskItem)
	if !ok {
		return
	}
	task := entry.Task

	pipeWidth := m.Width() - idWidth - typeWidth - taskStatusW - runWidth - 12 - listRenderingOverhead
	if pipeWidth < 8 {
		pipeWidth = 8
	}

	style := d.rowStyle(index == m.Index())
	line := strings.Join([]string{
		style.Render(PadLeft(fmt.Sprintf("#%d", task.ID), idWidth)),
		style.Render(TruncateAndPad(string(task.Type), typeWidth, false)),
		style.Render(TruncateAndPad(task.PipelineID, pipeWidth, true)),
		d.badge(string(task.Status), d.styles.TaskStatusColor(task.Status), taskStatusW),
		style.Render(TruncateAndPad(task.UpdatedAt.Display(), runWidth, false)),
	}, style.Render(" │ "))

	fmt.Fprint(w, line)
}
