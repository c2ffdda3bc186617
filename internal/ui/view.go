package ui

import (
	"fmt"
	"strings"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder
	b.WriteString(m.prefix)

	if f := m.snap.Fraction(); f >= 0 {
		b.WriteString(m.bar.ViewAs(f))
		b.WriteString(m.styles.Count.Render(fmt.Sprintf(" %5.1f%% (%d/%d)", f*100, m.snap.Current, m.snap.Total)))
	} else {
		b.WriteString(m.styles.Spinner.Render(m.spinner.View()))
		if m.snap.Current > 0 {
			b.WriteString(m.styles.Count.Render(fmt.Sprintf(" %d", m.snap.Current)))
		}
	}

	if title := m.snap.Title; title != "" && !strings.HasPrefix(m.prefix, title) {
		b.WriteString(" ")
		b.WriteString(m.styles.Title.Render(title))
	}

	switch {
	case m.snap.Canceled:
		b.WriteString(" ")
		b.WriteString(m.styles.Cancel.Render("cancelling…"))
	case m.snap.Paused:
		b.WriteString(" ")
		b.WriteString(m.styles.Paused.Render("paused"))
		b.WriteString(m.styles.Hint.Render(" • p: resume • c: cancel"))
	default:
		b.WriteString(m.styles.Hint.Render(" • p: pause • c: cancel"))
	}
	return b.String()
}
