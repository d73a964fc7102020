package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"copilot-dash/src/analysis"
	"copilot-dash/src/chart"
	"copilot-dash/src/contracts"
	"copilot-dash/src/logpager"
)

// renderLogs refreshes the log viewport from the pager buffer.
func (m *Model) renderLogs() {
	d := m.detail
	if d == nil {
		return
	}
	buf := d.pager.Buffer()
	maxWidth := d.logs.Width - 1

	if len(buf.Entries) == 0 {
		text := "No logs available."
		if d.pager.Loading() {
			text = "Loading logs..."
		}
		d.logs.SetContent(m.styles.MutedStyle().Render(text))
		return
	}

	tsStyle := lipgloss.NewStyle().Foreground(m.styles.PrimaryBlue)
	var b strings.Builder
	for i, e := range buf.Entries {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(tsStyle.Render("[" + e.Timestamp.Display() + "]"))
		b.WriteByte('\n')
		b.WriteString(Wrap(CleanLogText(e.Content), maxWidth))
	}
	d.logs.SetContent(b.String())
}

// renderDetailScreen renders logs on the left and analysis plus the chart on the right.
func (m Model) renderDetailScreen(dims panelDimensions) string {
	d := m.detail
	p := d.pipeline
	buf := d.pager.Buffer()

	status := lipgloss.NewStyle().Foreground(m.styles.PipelineStatusColor(p.Status)).Bold(true).Render(p.Status.String())
	info := fmt.Sprintf("%s  %s  %s  %d%% success  last run %s",
		m.styles.TitleStyle().UnsetPadding().Render(p.DisplayName()), status,
		m.styles.MutedStyle().Render(p.ID), p.SuccessPercent(), p.LastRun.Display())

	var logsTitle string
	switch {
	case d.filtering:
		logsTitle = d.filter.View()
	default:
		logsTitle = m.logsSummary(buf)
	}

	left := lipgloss.JoinVertical(lipgloss.Left,
		m.columnRow(logsTitle, dims.leftPanelWidth),
		m.panel(d.logs.View(), dims.leftPanelWidth, dims.availableHeight, true),
	)

	sideWidth := dims.rightPanelWidth - 4
	side := lipgloss.JoinVertical(lipgloss.Left,
		m.renderAnalysis(m.app.Analysis().Session(p.ID), sideWidth),
		"",
		m.renderChart(buf.Entries, sideWidth),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.columnRow("Analysis", dims.rightPanelWidth),
		m.panel(side, dims.rightPanelWidth, dims.availableHeight, false),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.infoRow(info),
		lipgloss.JoinHorizontal(lipgloss.Top, left, right),
	)
}

func (m Model) logsSummary(buf contracts.LogBuffer) string {
	d := m.detail
	if d.pager.Loading() {
		req, _ := d.pager.Pending()
		if req.Kind == logpager.KindExtend {
			return m.progress.Inline("Loading more logs...")
		}
		return m.progress.Inline("Loading logs...")
	}

	s := fmt.Sprintf("Logs (%d)", len(buf.Entries))
	if buf.Filter != "" {
		s += fmt.Sprintf(" matching %q", buf.Filter)
	}
	if buf.Exhausted {
		s += " • end"
	} else if len(buf.Entries) > 0 {
		s += " • m for more"
	}
	return s
}

func (m Model) renderAnalysis(s analysis.Session, width int) string {
	title := lipgloss.NewStyle().Foreground(m.styles.TextPrimary).Bold(true)
	muted := m.styles.MutedStyle()

	switch s.Phase {
	case analysis.Idle:
		return muted.Render("Press a to analyze this pipeline.")
	case analysis.Pending:
		return m.progress.Inline("Analyzing…")
	}

	res := s.Result
	confidence := lipgloss.NewStyle().Foreground(m.styles.ConfidenceColor(res.Confidence)).Bold(true).
		Render(string(res.Confidence))

	lines := []string{
		title.Render("Root cause"),
		Wrap(res.RootCause, width),
		"",
		title.Render("Suggested fix"),
		Wrap(res.SuggestedFix, width),
		"",
		muted.Render("Confidence ") + confidence,
	}
	if s.Phase == analysis.Failed && s.Err != nil {
		lines = append(lines, muted.Render(Truncate(s.Err.Error(), width, true)))
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderChart(entries []contracts.LogEntry, width int) string {
	title := lipgloss.NewStyle().Foreground(m.styles.TextPrimary).Bold(true).Render("Log Entries per Day")
	series := chart.Aggregate(entries)
	if series.Empty() {
		return title + "\n" + m.styles.MutedStyle().Render("No data to chart yet.")
	}
	bars := lipgloss.NewStyle().Foreground(m.styles.AccentBlue).Render(chart.Bars(series, width-len(chart.DateLayout)-6))
	return title + "\n" + bars
}
