package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func testReplayModel() ReplayModel {
	return NewReplayModel(ReplayConfig{
		RunID:   "run-9",
		Journal: "out/run.mpk",
		Clients: 10,
		Elapsed: 12340 * time.Millisecond,
		Snap:    sampleSnapshot(),
	})
}

func TestReplayModelIsStatic(t *testing.T) {
	m := testReplayModel()
	if cmd := m.Init(); cmd != nil {
		t.Error("replay model should not schedule ticks")
	}
}

func TestReplayModelView(t *testing.T) {
	m := testReplayModel()

	view := m.View()
	wants := []string{
		"Sounder Journal Replay",
		"run-9",
		"out/run.mpk",
		"12.34s",
		"118",
		"error reading bytes: EOF",
		"Press q to exit",
	}
	for _, want := range wants {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}
}

func TestReplayModelQuitKey(t *testing.T) {
	m := testReplayModel()

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil {
		t.Fatal("quit key returned no command")
	}
	if msg := cmd(); msg != (tea.QuitMsg{}) {
		t.Errorf("quit key command = %v, want tea.QuitMsg", msg)
	}
	m = next.(ReplayModel)
	if m.View() != "" {
		t.Error("quitting model should render nothing")
	}
}
