package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// panelDimensions holds calculated layout dimensions
type panelDimensions struct {
	availableHeight int
	leftPanelWidth  int
	rightPanelWidth int
}

// calculateDimensions computes panel sizes based on terminal dimensions.
// Render and resize both go through here.
func (m Model) calculateDimensions() panelDimensions {
	headerHeight := lipgloss.Height(m.header.Render(m.width))
	// header + info row (1) + column row (1) + panel borders (2) + notice (1) + help (1)
	availableHeight := m.height - headerHeight - 1 - 1 - 2 - 1 - 1
	if availableHeight < 1 {
		availableHeight = 1
	}

	// Lists and logs on the left (60%), details on the right (40%)
	leftPanelWidth := int(float64(m.width) * 0.6)
	rightPanelWidth := m.width - leftPanelWidth

	return panelDimensions{
		availableHeight: availableHeight,
		leftPanelWidth:  leftPanelWidth,
		rightPanelWidth: rightPanelWidth,
	}
}

// View renders the complete TUI layout
func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	header := m.header.Render(m.width)

	// Nothing to show until the first pipeline list lands
	if m.screen == screenPipelines && !m.pipelinesFirst {
		centered := lipgloss.NewStyle().
			Width(m.width).
			Align(lipgloss.Center).
			PaddingTop(2).
			Render(m.progress.View())
		return lipgloss.JoinVertical(lipgloss.Left, header, centered)
	}

	dims := m.calculateDimensions()

	var body string
	switch m.screen {
	case screenPipelines:
		body = m.renderPipelinesScreen(dims)
	case screenDetail:
		body = m.renderDetailScreen(dims)
	case screenAgents:
		body = m.renderAgentsScreen(dims)
	case screenSettings:
		body = m.renderSettingsScreen(dims)
	}

	notice := m.styles.NoticeStyle(m.noticeErr).Render(Truncate(m.notice, m.width-4, false))

	return lipgloss.JoinVertical(lipgloss.Left, header, body, notice, m.renderHelpText())
}

type keyHint struct{ key, desc string }

// renderHelpText renders context-aware help text at the bottom
func (m Model) renderHelpText() string {
	keyStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue).Bold(true)
	sepStyle := lipgloss.NewStyle().Foreground(m.styles.TextSecondary)

	var hints []keyHint
	switch {
	case m.typing():
		hints = []keyHint{{"Enter", "Apply"}, {"Esc", "Cancel"}}
		if m.form != nil {
			hints = append(hints, keyHint{"Tab", "Type"})
		}
	case m.screen == screenPipelines:
		hints = []keyHint{{"j/k", "Nav"}, {"Enter", "Open"}, {"/", "Search"}, {"r", "Refresh"}, {"1/2/3", "Screens"}, {"q", "Quit"}}
	case m.screen == screenDetail:
		hints = []keyHint{{"j/k", "Scroll"}, {"/", "Filter"}, {"m", "More"}, {"a", "Analyze"}, {"t", "RCA task"}, {"c", "Copy"}, {"Esc", "Back"}}
	case m.screen == screenAgents:
		hints = []keyHint{{"j/k", "Nav"}, {"n", "New task"}, {"e", "Rerun"}, {"r", "Refresh"}, {"1/2/3", "Screens"}, {"q", "Quit"}}
	case m.screen == screenSettings:
		hints = []keyHint{{"s", "Seed demo"}, {"x", "Reset demo"}, {"r", "Check health"}, {"1/2/3", "Screens"}, {"q", "Quit"}}
	}

	parts := make([]string, len(hints))
	for i, h := range hints {
		parts[i] = fmt.Sprintf("%s: %s", keyStyle.Render(h.key), h.desc)
	}
	return m.styles.HelpStyle().Render(strings.Join(parts, sepStyle.Render(" • ")))
}

// resizeComponents handles window resize events
func (m *Model) resizeComponents() {
	dims := m.calculateDimensions()

	// Pipelines use the full width; tasks share it with the preview panel
	m.pipelineList.SetSize(m.width-2, dims.availableHeight)
	m.taskList.SetSize(dims.leftPanelWidth-2, dims.availableHeight)
	m.search.Width = m.width - 8

	if m.detail != nil {
		m.detail.logs.Width = dims.leftPanelWidth - 2
		m.detail.logs.Height = dims.availableHeight
		m.detail.filter.Width = dims.leftPanelWidth - 12
		m.renderLogs()
	}
}

// panel draws content inside a rounded border of the given outer size.
func (m Model) panel(content string, width, height int, focused bool) string {
	return m.styles.PanelStyle(focused).
		Width(width - 2).
		Height(height).
		MaxHeight(height + 2).
		Render(content)
}

// columnRow renders a bold heading row above a panel.
func (m Model) columnRow(text string, width int) string {
	return lipgloss.NewStyle().
		Foreground(m.styles.PrimaryBlue).
		Bold(true).
		Width(width).
		Padding(0, 1).
		Render(Truncate(text, width-2, false))
}

// infoRow renders the muted line under the header.
func (m Model) infoRow(text string) string {
	return m.styles.MutedStyle().Padding(0, 1).Render(Truncate(text, m.width-2, false))
}
