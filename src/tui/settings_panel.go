package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"copilot-dash/src/logpager"
)

// renderSettingsScreen shows connection details and the demo data actions.
func (m Model) renderSettingsScreen(dims panelDimensions) string {
	cfg := m.app.Config()
	mon := m.app.Health()
	label := m.styles.MutedStyle().Width(18)
	heading := lipgloss.NewStyle().Foreground(m.styles.TextPrimary).Bold(true)

	health := lipgloss.NewStyle().Foreground(m.styles.HealthColor(mon.Status())).Render(string(mon.Status()))
	if at := mon.CheckedAt(); !at.IsZero() {
		health += m.styles.MutedStyle().Render(" (checked " + at.Format("15:04:05") + ")")
	}

	interval := "once at startup"
	if cfg.HealthInterval > 0 {
		interval = "every " + cfg.HealthInterval.String()
	}
	mirror := "off"
	if len(cfg.RedpandaBrokers) > 0 {
		mirror = strings.Join(cfg.RedpandaBrokers, ", ")
	}
	clipboard := "available"
	if !logpager.ClipboardAvailable() {
		clipboard = "unavailable"
	}

	rows := [][2]string{
		{"API base", cfg.APIBase},
		{"Backend", health},
		{"Health checks", interval},
		{"Request timeout", cfg.RequestTimeout.String()},
		{"Circuit breaker", onOff(cfg.Breaker)},
		{"Log page size", fmt.Sprint(cfg.LogPageSize)},
		{"Task list limit", fmt.Sprint(cfg.TaskListLimit)},
		{"Event mirror", mirror},
		{"Events topic", cfg.EventsTopic},
		{"Clipboard", clipboard},
	}

	lines := []string{heading.Render("Connection"), ""}
	for _, r := range rows {
		lines = append(lines, label.Render(r[0])+Truncate(r[1], m.width-26, true))
	}

	lines = append(lines, "", heading.Render("Demo data"), "")
	if m.settingsPending || m.app.SettingsBusy() {
		lines = append(lines, m.progress.Inline("Working..."))
	} else {
		lines = append(lines,
			"s  Seed demo pipelines and logs",
			"x  Remove all demo data",
		)
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.infoRow("Settings"),
		m.columnRow("", m.width),
		m.panel(strings.Join(lines, "\n"), m.width, dims.availableHeight, true),
	)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}
