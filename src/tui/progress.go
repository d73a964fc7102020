package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var copilotLogo = []string{
	" ▄████▄  ▄████▄  █████▄  ██  ██     ▄████▄  ██████",
	" ██      ██  ██  ██  ██  ██  ██     ██  ██    ██  ",
	" ██      ██  ██  █████▀  ██  ██     ██  ██    ██  ",
	" ██      ██  ██  ██      ██  ██     ██  ██    ██  ",
	" ▀████▀  ▀████▀  ██      ██  ██████ ▀████▀    ██  ",
}

var logoGradientColors = []string{
	"#5DADE2",
	"#3498DB",
	"#2E86C1",
	"#2874A6",
	"#21618C",
}

// StageMsg changes the text shown next to the spinner.
type StageMsg string

// Progress is the shared spinner. It renders the full loading screen before the
// first pipeline list arrives and an inline spinner for pending work afterwards.
type Progress struct {
	spinner spinner.Model
	stage   string
}

func NewProgress(styles *StyleConfig) Progress {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Warning)
	return Progress{spinner: s, stage: "Connecting to backend"}
}

// Tick starts the animation.
func (p Progress) Tick() tea.Cmd {
	return p.spinner.Tick
}

func (p Progress) Update(msg tea.Msg) (Progress, tea.Cmd) {
	switch msg := msg.(type) {
	case StageMsg:
		p.stage = string(msg)
		return p, nil
	case spinner.TickMsg:
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd
	}
	return p, nil
}

// Inline renders the spinner followed by label.
func (p Progress) Inline(label string) string {
	return p.spinner.View() + " " + label
}

// View renders the loading screen.
func (p Progress) View() string {
	lines := make([]string, len(copilotLogo))
	for i, line := range copilotLogo {
		color := logoGradientColors[i%len(logoGradientColors)]
		lines[i] = lipgloss.NewStyle().Foreground(lipgloss.Color(color)).Bold(true).Render(line)
	}
	logo := strings.Join(lines, "\n")
	return lipgloss.JoinVertical(lipgloss.Center, logo, "", p.Inline(p.stage+"..."))
}
