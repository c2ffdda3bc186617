// Package progress holds the shared state of the task currently running in
// the pipeline: a title, a counter, a total and a cooperative pause/cancel
// signal.
package progress

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

// ErrCanceled is returned from a suspension point once cancellation has been
// requested. It is an outcome, not a fault.
var ErrCanceled = errors.New("operation canceled")

// Snapshot is a point-in-time copy of a Tracker, safe to hand to a renderer.
type Snapshot struct {
	Title    string
	Current  uint64
	Total    uint64
	Paused   bool
	Canceled bool
}

// Fraction returns Current/Total clamped to [0,1], or -1 when Total is unknown.
func (s Snapshot) Fraction() float64 {
	if s.Total == 0 {
		return -1
	}
	f := float64(s.Current) / float64(s.Total)
	if f > 1 {
		return 1
	}
	return f
}

// Tracker is written by exactly one worker (Reset/Increment) and read by any
// number of samplers. Pause and cancel are requested from outside the worker
// and observed only at CheckCancellationOrPause.
type Tracker struct {
	title   atomic.Pointer[string]
	current atomic.Uint64
	total   atomic.Uint64

	canceled atomic.Bool
	paused   atomic.Bool

	mu     sync.Mutex
	resume *sync.Cond
}

// NewTracker returns an idle tracker with an empty title.
func NewTracker() *Tracker {
	t := &Tracker{}
	t.resume = sync.NewCond(&t.mu)
	empty := ""
	t.title.Store(&empty)
	return t
}

// Reset starts a new phase. Pause and cancel requests are left untouched.
func (t *Tracker) Reset(title string, total uint64) {
	t.title.Store(&title)
	t.current.Store(0)
	t.total.Store(total)
}

// SetTitle changes the title without touching the counters.
func (t *Tracker) SetTitle(title string) {
	t.title.Store(&title)
}

// Increment advances the counter by delta. Call it once per finished item so
// samplers see an accurate fraction.
func (t *Tracker) Increment(delta uint64) {
	t.current.Add(delta)
}

// Inc is Increment(1).
func (t *Tracker) Inc() {
	t.current.Add(1)
}

// Title returns the current phase title.
func (t *Tracker) Title() string {
	return *t.title.Load()
}

// Current returns the number of finished items in this phase.
func (t *Tracker) Current() uint64 {
	return t.current.Load()
}

// Total returns the number of items expected in this phase.
func (t *Tracker) Total() uint64 {
	return t.total.Load()
}

// Snapshot samples the tracker without blocking.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Title:    t.Title(),
		Current:  t.current.Load(),
		Total:    t.total.Load(),
		Paused:   t.paused.Load(),
		Canceled: t.canceled.Load(),
	}
}

// CheckCancellationOrPause is the suspension point. It blocks while a pause is
// requested and returns ErrCanceled when cancellation is requested (checked
// after any pause resolves). Call it after committing the previous item and
// before starting the next one.
func (t *Tracker) CheckCancellationOrPause() error {
	if t.paused.Load() {
		t.mu.Lock()
		for t.paused.Load() && !t.canceled.Load() {
			t.resume.Wait()
		}
		t.mu.Unlock()
	}
	if t.canceled.Load() {
		return ErrCanceled
	}
	return nil
}

// RequestPause makes the next suspension point block until Resume or Cancel.
func (t *Tracker) RequestPause() {
	t.mu.Lock()
	t.paused.Store(true)
	t.mu.Unlock()
}

// Resume clears a pause request and wakes a blocked worker.
func (t *Tracker) Resume() {
	t.mu.Lock()
	t.paused.Store(false)
	t.mu.Unlock()
	t.resume.Broadcast()
}

// TogglePause flips the pause request and reports the new state.
func (t *Tracker) TogglePause() bool {
	if t.paused.Load() {
		t.Resume()
		return false
	}
	t.RequestPause()
	return true
}

// Cancel requests cancellation. A paused worker is woken so it can unwind.
func (t *Tracker) Cancel() {
	t.mu.Lock()
	t.canceled.Store(true)
	t.mu.Unlock()
	t.resume.Broadcast()
}

// IsCancellationRequested reports whether Cancel has been called since the
// last Clear.
func (t *Tracker) IsCancellationRequested() bool {
	return t.canceled.Load()
}

// IsPaused reports whether a pause is currently requested.
func (t *Tracker) IsPaused() bool {
	return t.paused.Load()
}

// Clear drops pause and cancel requests. The pipeline calls it between runs.
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.canceled.Store(false)
	t.paused.Store(false)
	t.mu.Unlock()
	t.resume.Broadcast()
}

// BindContext cancels the tracker when ctx is done. The returned stop function
// detaches the binding.
func (t *Tracker) BindContext(ctx context.Context) (stop func() bool) {
	return context.AfterFunc(ctx, t.Cancel)
}
