package ui

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerkit/internal/progress"
)

func key(s string) tea.KeyMsg {
	if s == "ctrl+c" {
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out
}

func TestModel_PauseKeyToggles(t *testing.T) {
	tr := progress.NewTracker()
	m := NewModel(tr, "Changing exposure: ", time.Millisecond)

	m = update(t, m, key("p"))
	assert.True(t, tr.IsPaused())
	assert.Contains(t, m.View(), "paused")

	m = update(t, m, key("p"))
	assert.False(t, tr.IsPaused())
	assert.NotContains(t, m.View(), "paused")
}

func TestModel_CancelKeys(t *testing.T) {
	for _, k := range []string{"c", "ctrl+c"} {
		t.Run(k, func(t *testing.T) {
			tr := progress.NewTracker()
			m := update(t, NewModel(tr, "Saving file a.json: ", time.Millisecond), key(k))
			assert.True(t, tr.IsCancellationRequested())
			assert.Contains(t, m.View(), "cancelling")
		})
	}
}

func TestModel_TickSamplesTracker(t *testing.T) {
	tr := progress.NewTracker()
	m := NewModel(tr, "Running: ", time.Millisecond)

	tr.Reset("Changing exposure", 4)
	tr.Increment(2)
	m = update(t, m, tickMsg(time.Now()))

	v := m.View()
	assert.Contains(t, v, "Running: ")
	assert.Contains(t, v, "50.0% (2/4)")
	assert.Contains(t, v, "Changing exposure")
}

func TestModel_UnknownTotalShowsCount(t *testing.T) {
	tr := progress.NewTracker()
	tr.Reset("Decoded layers", 0)
	tr.Increment(7)
	m := update(t, NewModel(tr, "Opening file a.yaml: ", time.Millisecond), tickMsg(time.Now()))
	v := m.View()
	assert.NotContains(t, v, "%")
	assert.Contains(t, v, " 7")
}

func TestModel_StopClearsView(t *testing.T) {
	tr := progress.NewTracker()
	m := NewModel(tr, "x: ", time.Millisecond)
	next, cmd := m.Update(stopMsg{})
	require.NotNil(t, cmd)
	assert.Equal(t, "", next.View())
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
