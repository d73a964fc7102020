package tui

import (
	"strings"
	"testing"

	"github.com/charmbracelet/bubbles/spinner"
)

func TestProgress_InitialStage(t *testing.T) {
	p := NewProgress(DefaultStyles())

	if !strings.Contains(p.View(), "Connecting to backend...") {
		t.Errorf("expected default stage in view, got: %s", p.View())
	}
	if p.Tick() == nil {
		t.Error("expected a tick command")
	}
}

func TestProgress_StageMsg(t *testing.T) {
	p := NewProgress(DefaultStyles())
	p, cmd := p.Update(StageMsg("Loading pipelines"))

	if cmd != nil {
		t.Error("stage change should not schedule work")
	}
	if !strings.Contains(p.View(), "Loading pipelines...") {
		t.Errorf("expected stage in view, got: %s", p.View())
	}
}

func TestProgress_SpinnerAdvances(t *testing.T) {
	p := NewProgress(DefaultStyles())
	before := p.Inline("x")

	tick, ok := p.Tick()().(spinner.TickMsg)
	if !ok {
		t.Fatal("expected spinner.TickMsg")
	}
	p, cmd := p.Update(tick)

	if cmd == nil {
		t.Error("expected next tick to be scheduled")
	}
	if p.Inline("x") == before {
		t.Error("expected spinner frame to change")
	}
}

func TestProgress_InlineLabel(t *testing.T) {
	p := NewProgress(DefaultStyles())
	if !strings.HasSuffix(p.Inline("Analyzing…"), " Analyzing…") {
		t.Errorf("unexpected inline rendering %q", p.Inline("Analyzing…"))
	}
}
