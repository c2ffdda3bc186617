// Package ui draws the live progress line for a running phase and turns key
// presses into pause and cancel requests on the shared tracker.
package ui

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"layerkit/internal/progress"
)

// DefaultInterval is how often the tracker is sampled.
const DefaultInterval = 100 * time.Millisecond

// Renderer runs one bubbletea program per phase on its own goroutine.
type Renderer struct {
	out      io.Writer
	in       io.Reader
	interval time.Duration
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithOutput sets where the progress line is drawn.
func WithOutput(w io.Writer) Option {
	return func(r *Renderer) {
		r.out = w
	}
}

// WithInput sets the key source. nil disables key handling.
func WithInput(in io.Reader) Option {
	return func(r *Renderer) {
		r.in = in
	}
}

// WithInterval sets the sampling interval.
func WithInterval(d time.Duration) Option {
	return func(r *Renderer) {
		if d > 0 {
			r.interval = d
		}
	}
}

// NewRenderer draws on stdout and reads keys from stdin by default.
func NewRenderer(opts ...Option) *Renderer {
	r := &Renderer{
		out:      os.Stdout,
		in:       os.Stdin,
		interval: DefaultInterval,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Start launches the program for t. The returned stop function ends it,
// waits for the terminal to be restored and puts the phase prefix back on
// the line so the caller can finish it.
func (r *Renderer) Start(t *progress.Tracker) (stop func()) {
	prefix := t.Title() + ": "
	ctx, cancel := context.WithCancel(context.Background())

	prog := tea.NewProgram(
		NewModel(t, prefix, r.interval),
		tea.WithContext(ctx),
		tea.WithOutput(r.out),
		tea.WithInput(r.in),
		tea.WithoutSignalHandler(),
	)

	// The prefix is already on the line; the first frame redraws it in place.
	_, _ = io.WriteString(r.out, "\r")

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = prog.Run()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			go prog.Send(stopMsg{})
			<-done
			cancel()
			_, _ = io.WriteString(r.out, prefix)
		})
	}
}
