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

// refreshEvery is the dashboard's sampling interval.
const refreshEvery = 500 * time.Millisecond

// maxFailureLines bounds the failure breakdown shown on screen.
const maxFailureLines = 5

// DoneMsg tells the dashboard the run has finished. Send it with
// Program.Send from the goroutine supervising the swarm; the program
// takes one last sample and exits.
type DoneMsg struct{}

type tickMsg time.Time

// Config wires a dashboard to a live run.
type Config struct {
	RunID  string
	Target string
	Users  int

	// Snapshot samples the run's aggregated counters.
	Snapshot func() metrics.Snapshot
	// Active reports how many users are currently running.
	Active func() int64
}

// Model is the Bubble Tea model for the live run dashboard.
type Model struct {
	cfg       Config
	startedAt time.Time
	snap      metrics.Snapshot
	active    int64
	width     int
	height    int
	finished  bool
	quitting  bool
}

// NewModel builds the dashboard model for a run.
func NewModel(cfg Config) Model {
	return Model{cfg: cfg, startedAt: time.Now()}
}

// NewProgram wraps the model in a full-screen Bubble Tea program.
func NewProgram(cfg Config) *tea.Program {
	return tea.NewProgram(NewModel(cfg), tea.WithAltScreen())
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tick()
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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

	case tickMsg:
		m = m.sample()
		return m, tick()

	case DoneMsg:
		// One closing sample so the final frame shows the end state.
		m = m.sample()
		m.finished = true
		return m, tea.Quit
	}

	return m, nil
}

func (m Model) sample() Model {
	if m.cfg.Snapshot != nil {
		m.snap = m.cfg.Snapshot()
	}
	if m.cfg.Active != nil {
		m.active = m.cfg.Active()
	}
	return m
}

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Sounder Load Run"))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Run:"), ValueStyle.Render(m.cfg.RunID)))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Target:"), ValueStyle.Render(m.cfg.Target)))
	b.WriteString(fmt.Sprintf("%s %s\n\n",
		LabelStyle.Render("Elapsed:"),
		ValueStyle.Render(time.Since(m.startedAt).Truncate(time.Second).String())))

	meanMs := float64(m.snap.PingPong.MeanElapsed()) / float64(time.Millisecond)
	boxes := []string{
		statBox("Active", fmt.Sprintf("%d/%d", m.active, m.cfg.Users), highlightColor),
		statBox("Connects", fmt.Sprintf("%d", m.snap.Connect.Successes), successColor),
		statBox("Ping-Pongs", fmt.Sprintf("%d", m.snap.PingPong.Successes), successColor),
		statBox("Failures", fmt.Sprintf("%d", m.snap.Failures()), errorColor),
		statBox("Mean ms", fmt.Sprintf("%.1f", meanMs), highlightColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n")

	if lines := failureLines(m.snap); len(lines) > 0 {
		b.WriteString("\n")
		b.WriteString(ErrorStyle.Render("Failures"))
		b.WriteString("\n")
		for _, line := range lines {
			b.WriteString("  " + line + "\n")
		}
	}

	help := "Press q to stop the run"
	if m.finished {
		help = "Run finished"
	}
	return b.String() + "\n" + HelpStyle.Render(help)
}

// failureLines formats the snapshot's failure breakdown, capped at
// maxFailureLines.
func failureLines(snap metrics.Snapshot) []string {
	breakdown := snap.FailureBreakdown()
	if len(breakdown) > maxFailureLines {
		breakdown = breakdown[:maxFailureLines]
	}
	lines := make([]string, len(breakdown))
	for i, f := range breakdown {
		lines[i] = fmt.Sprintf("%6d  %s", f.Count, f.Detail)
	}
	return lines
}

func statBox(label, value string, color lipgloss.Color) string {
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}
