package tui

import (
	"github.com/charmbracelet/lipgloss"

	"copilot-dash/src/contracts"
)

// StyleConfig holds the dashboard palette.
type StyleConfig struct {
	PrimaryBlue    lipgloss.Color
	AccentBlue     lipgloss.Color
	DarkBackground lipgloss.Color
	CardBackground lipgloss.Color
	TextPrimary    lipgloss.Color
	TextSecondary  lipgloss.Color
	BorderColor    lipgloss.Color
	SelectedColor  lipgloss.Color

	Success lipgloss.Color
	Failure lipgloss.Color
	Warning lipgloss.Color
	Unknown lipgloss.Color
}

// DefaultStyles returns the default color palette
func DefaultStyles() *StyleConfig {
	return &StyleConfig{
		PrimaryBlue:    lipgloss.Color("#8AB4F8"),
		AccentBlue:     lipgloss.Color("#4285F4"),
		DarkBackground: lipgloss.Color("#1E1E1E"),
		CardBackground: lipgloss.Color("#2D2D2D"),
		TextPrimary:    lipgloss.Color("#E8EAED"),
		TextSecondary:  lipgloss.Color("#9AA0A6"),
		BorderColor:    lipgloss.Color("#5F6368"),
		SelectedColor:  lipgloss.Color("#303134"),
		Success:        lipgloss.Color("#34A853"),
		Failure:        lipgloss.Color("#EA4335"),
		Warning:        lipgloss.Color("#FBBC04"),
		Unknown:        lipgloss.Color("#9AA0A6"),
	}
}

// TitleStyle returns a title lipgloss style using this config
func (s *StyleConfig) TitleStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.PrimaryBlue).
		Bold(true).
		Padding(0, 1)
}

// HelpStyle returns a help text lipgloss style using this config
func (s *StyleConfig) HelpStyle() lipgloss.Style {
	return lipgloss.NewStyle().
		Foreground(s.TextSecondary).
		Padding(0, 2)
}

// PanelStyle returns a bordered panel. Focused panels get the accent border.
func (s *StyleConfig) PanelStyle(focused bool) lipgloss.Style {
	border := s.BorderColor
	if focused {
		border = s.AccentBlue
	}
	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)
}

// MutedStyle is used for secondary text and hints.
func (s *StyleConfig) MutedStyle() lipgloss.Style {
	return lipgloss.NewStyle().Foreground(s.TextSecondary)
}

// NoticeStyle colours the transient status line.
func (s *StyleConfig) NoticeStyle(isErr bool) lipgloss.Style {
	if isErr {
		return lipgloss.NewStyle().Foreground(s.Failure).Bold(true).Padding(0, 2)
	}
	return lipgloss.NewStyle().Foreground(s.Success).Padding(0, 2)
}

// PipelineStatusColor maps a pipeline status to its badge colour.
func (s *StyleConfig) PipelineStatusColor(st contracts.PipelineStatus) lipgloss.Color {
	switch st {
	case contracts.PipelineSuccess:
		return s.Success
	case contracts.PipelineFailed:
		return s.Failure
	}
	return s.Unknown
}

// TaskStatusColor maps a task status to its badge colour.
func (s *StyleConfig) TaskStatusColor(st contracts.TaskStatus) lipgloss.Color {
	switch st {
	case contracts.TaskCompleted:
		return s.Success
	case contracts.TaskFailed:
		return s.Failure
	case contracts.TaskAwaitingApproval, contracts.TaskRunning, contracts.TaskQueued:
		return s.Warning
	}
	return s.Unknown
}

// HealthColor maps a health status to its indicator colour.
func (s *StyleConfig) HealthColor(h contracts.HealthStatus) lipgloss.Color {
	switch h {
	case contracts.HealthUp:
		return s.Success
	case contracts.HealthDown:
		return s.Failure
	}
	return s.Unknown
}

// ConfidenceColor maps analysis confidence to a colour.
func (s *StyleConfig) ConfidenceColor(c contracts.Confidence) lipgloss.Color {
	switch c {
	case contracts.ConfidenceHigh:
		return s.Success
	case contracts.ConfidenceMedium:
		return s.Warning
	case contracts.ConfidenceLow:
		return s.Failure
	}
	return s.Unknown
}
