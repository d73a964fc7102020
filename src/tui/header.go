package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"copilot-dash/src/contracts"
)

// Header is the top status bar: title, screen tabs and backend health.
type Header struct {
	title   string
	apiBase string
	health  contracts.HealthStatus
	active  screen
	styles  *StyleConfig
}

// NewHeader creates a header with the given styles.
func NewHeader(apiBase string, styles *StyleConfig) Header {
	return Header{
		title:   "DevOps Copilot",
		apiBase: apiBase,
		health:  contracts.HealthUnknown,
		styles:  styles,
	}
}

// SetHealth updates the health indicator.
func (h *Header) SetHealth(s contracts.HealthStatus) { h.health = s }

// SetActive highlights the tab for s.
func (h *Header) SetActive(s screen) { h.active = s }

// Render renders the header
func (h Header) Render(width int) string {
	title := h.styles.TitleStyle().Padding(0, 2).Render("🤖 " + h.title)

	var tabs []string
	for _, t := range tabOrder {
		style := lipgloss.NewStyle().Foreground(h.styles.TextSecondary).Padding(0, 1)
		if t == h.active || (t == screenPipelines && h.active == screenDetail) {
			style = style.Foreground(h.styles.PrimaryBlue).Bold(true).Underline(true)
		}
		tabs = append(tabs, style.Render(fmt.Sprintf("%d %s", t.key(), t.title())))
	}
	tabBar := lipgloss.JoinHorizontal(lipgloss.Left, tabs...)

	dot := lipgloss.NewStyle().Foreground(h.styles.HealthColor(h.health)).Render("●")
	health := h.styles.MutedStyle().Padding(0, 2).Render(fmt.Sprintf("%s API %s", dot, h.health))

	left := lipgloss.JoinHorizontal(lipgloss.Left, title, tabBar)
	gap := width - lipgloss.Width(left) - lipgloss.Width(health)
	if gap < 1 {
		gap = 1
	}
	spacer := lipgloss.NewStyle().Width(gap).Render("")

	return lipgloss.NewStyle().
		BorderStyle(lipgloss.NormalBorder()).
		BorderBottom(true).
		BorderForeground(h.styles.BorderColor).
		Width(width).
		Render(lipgloss.JoinHorizontal(lipgloss.Left, left, spacer, health))
}
