package ui

import (
	"time"

	bubblesprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"layerkit/internal/progress"
)

const barWidth = 40

// Model samples a tracker on every tick. It never writes to the tracker
// except through the pause and cancel keys.
type Model struct {
	tracker  *progress.Tracker
	prefix   string
	interval time.Duration

	snap     progress.Snapshot
	bar      bubblesprogress.Model
	spinner  spinner.Model
	styles   Styles
	quitting bool
}

// NewModel returns a model drawing t behind prefix, the text already on the
// phase line.
func NewModel(t *progress.Tracker, prefix string, interval time.Duration) Model {
	if interval <= 0 {
		interval = DefaultInterval
	}
	sty := defaultStyles()
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sty.Spinner
	return Model{
		tracker:  t,
		prefix:   prefix,
		interval: interval,
		snap:     t.Snapshot(),
		bar:      bubblesprogress.New(bubblesprogress.WithDefaultGradient(), bubblesprogress.WithWidth(barWidth)),
		spinner:  sp,
		styles:   sty,
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.tick())
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "p", " ":
			m.tracker.TogglePause()
		case "c", "ctrl+c", "esc":
			m.tracker.Cancel()
		}
		m.snap = m.tracker.Snapshot()
		return m, nil

	case tea.WindowSizeMsg:
		w := msg.Width - len(m.prefix) - 40
		if w > barWidth {
			w = barWidth
		}
		if w < 10 {
			w = 10
		}
		m.bar.Width = w
		return m, nil

	case tickMsg:
		m.snap = m.tracker.Snapshot()
		return m, m.tick()

	case stopMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}
