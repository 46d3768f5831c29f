package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fathomline/sounder/metrics"
)

// ReplayConfig describes a finished run reconstructed from its journal.
type ReplayConfig struct {
	RunID   string
	Journal string
	Clients int
	Elapsed time.Duration
	Snap    metrics.Snapshot
}

// ReplayModel renders a journal replay. Unlike the live dashboard it is
// static: no ticker, no sampling, just the reconstructed end state.
type ReplayModel struct {
	cfg      ReplayConfig
	width    int
	height   int
	quitting bool
}

// NewReplayModel builds the replay model.
func NewReplayModel(cfg ReplayConfig) ReplayModel {
	return ReplayModel{cfg: cfg}
}

// NewReplayProgram wraps the model in a full-screen Bubble Tea program.
func NewReplayProgram(cfg ReplayConfig) *tea.Program {
	return tea.NewProgram(NewReplayModel(cfg), tea.WithAltScreen())
}

// Init implements tea.Model.
func (m ReplayModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m ReplayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m ReplayModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sounder Journal Replay"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Run:"), ValueStyle.Render(m.cfg.RunID)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Journal:"), ValueStyle.Render(m.cfg.Journal)))
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Duration:"),
		ValueStyle.Render(m.cfg.Elapsed.Truncate(time.Millisecond).String())))

	meanMs := float64(m.cfg.Snap.PingPong.MeanElapsed()) / float64(time.Millisecond)
	boxes := []string{
		statBox("Clients", fmt.Sprintf("%d", m.cfg.Clients), highlightColor),
		statBox("Connects", fmt.Sprintf("%d", m.cfg.Snap.Connect.Successes), successColor),
		statBox("Ping-Pongs", fmt.Sprintf("%d", m.cfg.Snap.PingPong.Successes), successColor),
		statBox("Failures", fmt.Sprintf("%d", m.cfg.Snap.Failures()), errorColor),
		statBox("Mean ms", fmt.Sprintf("%.1f", meanMs), highlightColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if lines := failureLines(m.cfg.Snap); len(lines) > 0 {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Failures"))
		b.WriteString("\n")
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
	}

	return b.String() + "\n" + HelpStyle.Render("Press q to exit")
}
