package tui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"copilot-dash/src/contracts"
)

// renderPipelinesScreen renders the searchable pipeline list.
func (m Model) renderPipelinesScreen(dims panelDimensions) string {
	sync := m.app.Pipelines()
	total := sync.Len()

	var info string
	switch {
	case m.searching || m.search.Value() != "":
		// The count goes first so a long query cannot push it off the row.
		count := fmt.Sprintf("%d of %d pipelines", len(m.pipelineList.Items()), total)
		info = m.styles.MutedStyle().Render(count) + "  " + m.search.View()
	case sync.Loading():
		info = m.progress.Inline("Loading pipelines...")
	default:
		info = fmt.Sprintf("%d pipelines", total)
		if at := sync.LoadedAt(); !at.IsZero() {
			info += " • updated " + at.Format("15:04:05")
		}
	}

	var content string
	switch {
	case sync.Err() != nil && total == 0:
		content = m.emptyState(fmt.Sprintf("Failed to load pipelines: %v\n\nPress r to retry.", sync.Err()), m.width, dims.availableHeight)
	case total == 0:
		content = m.emptyState("No pipelines yet.\n\nPress 3 and seed demo data to get started.", m.width, dims.availableHeight)
	case len(m.pipelineList.Items()) == 0:
		content = m.emptyState("No pipelines match the search.", m.width, dims.availableHeight)
	default:
		content = m.pipelineList.View()
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.infoRow(info),
		m.columnRow(pipelineHeader(m.width), m.width),
		m.panel(content, m.width, dims.availableHeight, !m.searching),
	)
}

// renderAgentsScreen renders the task list with a preview of the selected task.
func (m Model) renderAgentsScreen(dims panelDimensions) string {
	sync := m.app.Tasks()

	var info string
	switch {
	case m.form != nil:
		info = m.renderForm()
	case sync.Loading():
		info = m.progress.Inline("Loading agent tasks...")
	default:
		info = fmt.Sprintf("%d agent tasks", sync.Len())
	}

	var list string
	switch {
	case sync.Err() != nil && sync.Len() == 0:
		list = m.emptyState(fmt.Sprintf("Failed to load tasks: %v", sync.Err()), dims.leftPanelWidth, dims.availableHeight)
	case sync.Len() == 0:
		list = m.emptyState("No agent tasks.\n\nPress n to create one.", dims.leftPanelWidth, dims.availableHeight)
	default:
		list = m.taskList.View()
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.columnRow(taskHeader(dims.leftPanelWidth), dims.leftPanelWidth),
		m.panel(list, dims.leftPanelWidth, dims.availableHeight, m.form == nil),
	)

	preview := m.styles.MutedStyle().Render("Select a task to see its result")
	if task, ok := m.selectedTask(); ok {
		preview = m.renderTaskPreview(task, dims.rightPanelWidth-4)
	}
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.columnRow("Result", dims.rightPanelWidth),
		m.panel(preview, dims.rightPanelWidth, dims.availableHeight, false),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.infoRow(info),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
	)
}

func (m Model) renderForm() string {
	types := make([]string, len(contracts.TaskTypes))
	for i, t := range contracts.TaskTypes {
		style := m.styles.MutedStyle()
		label := string(t)
		if !t.Enabled() {
			label += " (soon)"
			style = style.Faint(true)
		}
		if i == m.form.typeIdx {
			style = style.Foreground(m.styles.PrimaryBlue).Bold(true).Underline(true)
		}
		types[i] = style.Render(label)
	}
	return m.form.pipeline.View() + "  type: " + strings.Join(types, " ")
}

func (m Model) renderTaskPreview(task contracts.AgentTask, width int) string {
	label := m.styles.MutedStyle()
	lines := []string{
		fmt.Sprintf("%s #%d", label.Render("Task"), task.ID),
		fmt.Sprintf("%s %s", label.Render("Type"), task.Type),
		fmt.Sprintf("%s %s", label.Render("Pipeline"), task.PipelineID),
		fmt.Sprintf("%s %s", label.Render("Status"),
			lipgloss.NewStyle().Foreground(m.styles.TaskStatusColor(task.Status)).Render(string(task.Status))),
		fmt.Sprintf("%s %s", label.Render("Created"), task.CreatedAt.Display()),
		fmt.Sprintf("%s %s", label.Render("Updated"), task.UpdatedAt.Display()),
		"",
	}

	result := task.Result()
	if result == "" {
		lines = append(lines, label.Render("No result yet."))
	} else {
		lines = append(lines, Wrap(PrettyJSON(result), width))
	}
	return strings.Join(lines, "\n")
}

// PrettyJSON indents a JSON document. Anything that is not valid JSON is
// returned unchanged.
func PrettyJSON(raw string) string {
	var out bytes.Buffer
	if err := json.Indent(&out, []byte(raw), "", "  "); err != nil {
		return raw
	}
	return out.String()
}

// emptyState centers a faint message inside a panel of the given size.
func (m Model) emptyState(text string, width, height int) string {
	return lipgloss.NewStyle().
		Width(width-2).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(m.styles.TextSecondary).
		Faint(true).
		Render(text)
}
