// Package pipeline drives one command invocation through its timed phases:
// open the document, run operations against it, save it.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"layerkit/internal/console"
	"layerkit/internal/document"
	"layerkit/internal/model"
	"layerkit/internal/operation"
	"layerkit/internal/progress"
	"layerkit/internal/util/format"
)

// Errors returned by the pipeline. Cancellation is reported by wrapping
// progress.ErrCanceled.
var (
	ErrOpen = errors.New("open failed")
	ErrSave = errors.New("save failed")
	ErrBusy = errors.New("pipeline already running")
)

// ErrValidation is matched by every *ValidationError.
var ErrValidation = errors.New("validation failed")

// ValidationError is an operation's rejection message.
type ValidationError struct {
	Operation string
	Message   string
}

func (e *ValidationError) Error() string { return e.Message }

// Is makes errors.Is(err, ErrValidation) true.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Renderer draws live progress while a phase body runs. stop must block
// until the renderer has released the terminal.
type Renderer interface {
	Start(t *progress.Tracker) (stop func())
}

// OpenFunc loads a document.
type OpenFunc func(ctx context.Context, path string, t *progress.Tracker) (*document.Document, error)

// SaveFunc persists a document; an empty path means its own file.
type SaveFunc func(ctx context.Context, doc *document.Document, path string, t *progress.Tracker) error

// Pipeline orchestrates open → run → save for a single document.
type Pipeline struct {
	flags    model.GlobalFlags
	console  *console.Reporter
	renderer Renderer
	tracker  *progress.Tracker
	logger   *zap.Logger
	runID    string
	now      func() time.Time
	open     OpenFunc
	save     SaveFunc

	state   State
	doc     *document.Document
	running atomic.Bool
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithFlags sets the global flags (quiet, no-progress, dummy).
func WithFlags(f model.GlobalFlags) Option {
	return func(p *Pipeline) {
		p.flags = f
	}
}

// WithConsole sets the console reporter.
func WithConsole(c *console.Reporter) Option {
	return func(p *Pipeline) {
		p.console = c
	}
}

// WithRenderer attaches a live progress renderer.
func WithRenderer(r Renderer) Option {
	return func(p *Pipeline) {
		p.renderer = r
	}
}

// WithTracker shares an existing tracker.
func WithTracker(t *progress.Tracker) Option {
	return func(p *Pipeline) {
		p.tracker = t
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *zap.Logger) Option {
	return func(p *Pipeline) {
		p.logger = l
	}
}

// WithRunID overrides the generated run ID.
func WithRunID(id string) Option {
	return func(p *Pipeline) {
		p.runID = id
	}
}

// WithClock replaces time.Now (used by tests).
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) {
		p.now = now
	}
}

// WithOpener replaces document.Open.
func WithOpener(fn OpenFunc) Option {
	return func(p *Pipeline) {
		p.open = fn
	}
}

// WithSaver replaces (*document.Document).SaveAs.
func WithSaver(fn SaveFunc) Option {
	return func(p *Pipeline) {
		p.save = fn
	}
}

// New constructs a Pipeline, filling in defaults for anything not given.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}
	for _, o := range opts {
		o(p)
	}
	if p.console == nil {
		p.console = console.New(console.WithQuiet(p.flags.Quiet))
	}
	if p.tracker == nil {
		p.tracker = progress.NewTracker()
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	if p.runID == "" {
		p.runID = uuid.NewString()
	}
	if p.now == nil {
		p.now = time.Now
	}
	if p.open == nil {
		p.open = document.Open
	}
	if p.save == nil {
		p.save = func(ctx context.Context, doc *document.Document, path string, t *progress.Tracker) error {
			return doc.SaveAs(ctx, path, t)
		}
	}
	p.logger = p.logger.With(zap.String("run_id", p.runID))
	return p
}

// RunID identifies this pipeline in log lines.
func (p *Pipeline) RunID() string { return p.runID }

// State returns the current state.
func (p *Pipeline) State() State { return p.state }

// Tracker returns the shared progress tracker.
func (p *Pipeline) Tracker() *progress.Tracker { return p.tracker }

// Document returns the opened document, or nil.
func (p *Pipeline) Document() *document.Document { return p.doc }

// Console returns the reporter the pipeline writes to.
func (p *Pipeline) Console() *console.Reporter { return p.console }

func (p *Pipeline) acquire() error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrBusy
	}
	return nil
}

func (p *Pipeline) release() { p.running.Store(false) }

// bind cancels the tracker when ctx ends. A context that is already done
// cancels synchronously.
func (p *Pipeline) bind(ctx context.Context) func() bool {
	if ctx.Err() != nil {
		p.tracker.Cancel()
	}
	return p.tracker.BindContext(ctx)
}

// Phase prints "<title>: ", runs body under the renderer and prints
// "Done in N.NNs" when it succeeds. On failure the line is ended, a
// cancellation is reported as a warning and the error returned untouched.
// ctx ending cancels the tracker.
func (p *Pipeline) Phase(ctx context.Context, title string, body func() error) error {
	unbind := p.bind(ctx)
	defer unbind()

	p.tracker.SetTitle(title)
	p.console.Write(title + ": ")
	start := p.now()

	stop := func() {}
	if p.renderer != nil && p.flags.ShowProgress() {
		stop = p.renderer.Start(p.tracker)
	}
	err := body()
	stop()

	elapsed := p.now().Sub(start)
	if err != nil {
		p.console.Line("")
		if errors.Is(err, progress.ErrCanceled) {
			p.console.WarningLine("Operation cancelled")
		}
		p.logger.Debug("phase failed", zap.String("phase", title), zap.Duration("elapsed", elapsed), zap.Error(err))
		return err
	}
	p.console.Line("Done in " + format.Seconds(elapsed))
	p.logger.Info("phase done", zap.String("phase", title), zap.Duration("elapsed", elapsed))
	return nil
}

// Open decodes the input document. Any failure other than cancellation is
// wrapped in ErrOpen and leaves the pipeline Failed.
func (p *Pipeline) Open(ctx context.Context, path string) (*document.Document, error) {
	if err := p.acquire(); err != nil {
		return nil, err
	}
	defer p.release()

	p.tracker.Clear()
	unbind := p.bind(ctx)
	defer unbind()

	p.transition(StateOpening)
	var doc *document.Document
	err := p.Phase(ctx, "Opening file "+filepath.Base(path), func() error {
		var err error
		doc, err = p.open(ctx, path, p.tracker)
		return err
	})
	if err != nil {
		if errors.Is(err, progress.ErrCanceled) {
			p.cancelled()
			return nil, err
		}
		p.transition(StateFailed)
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}
	p.doc = doc
	p.transition(StateOpened)
	return doc, nil
}

// Run validates and executes each operation in order against the opened
// document. A rejection stops before that operation's Execute and returns a
// *ValidationError. An operation that stops early ends the run as Cancelled.
func (p *Pipeline) Run(ctx context.Context, params operation.Params, ops ...operation.Script) error {
	if p.doc == nil {
		return errors.New("run: no document opened")
	}
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	unbind := p.bind(ctx)
	defer unbind()

	p.transition(StateRunning)
	for _, op := range ops {
		if err := p.runOne(ctx, params, op); err != nil {
			return err
		}
	}
	p.transition(StateCompleted)
	return nil
}

func (p *Pipeline) runOne(ctx context.Context, params operation.Params, op operation.Script) error {
	meta := operation.Describe(op)
	counter, isCounter := op.(operation.Counter)

	r, err := params.Range.Resolve(p.doc.LayerCount())
	if err != nil && !isCounter {
		p.transition(StateFailed)
		return &ValidationError{Operation: meta.Name, Message: err.Error()}
	}
	env := &operation.Env{
		Document:  p.doc,
		Progress:  p.tracker,
		Operation: operation.Params{Range: r, Values: params.Values},
	}
	if msg := op.Validate(env); msg != "" {
		p.transition(StateFailed)
		p.logger.Info("operation rejected", zap.String("operation", meta.Name), zap.String("reason", msg))
		return &ValidationError{Operation: meta.Name, Message: msg}
	}

	total := uint64(r.Count())
	if isCounter {
		total = counter.ItemCount(env)
	}
	p.logger.Info("operation start", zap.String("operation", meta.Name), zap.Stringer("range", r), zap.Uint64("items", total))

	var completed bool
	err = p.Phase(ctx, meta.Name, func() error {
		p.tracker.Reset(meta.Name, total)
		ok, err := op.Execute(ctx, env)
		if err == nil && !ok {
			err = progress.ErrCanceled
		}
		completed = ok
		return err
	})
	switch {
	case errors.Is(err, progress.ErrCanceled):
		p.cancelled()
		return fmt.Errorf("%s: %w", meta.Name, err)
	case err != nil:
		p.transition(StateFailed)
		p.logger.Error("operation fault", zap.String("operation", meta.Name), zap.Error(err))
		return fmt.Errorf("%s: %w", meta.Name, err)
	}
	p.logger.Info("operation done", zap.String("operation", meta.Name), zap.Bool("completed", completed), zap.Uint64("processed", p.tracker.Current()))
	return nil
}

// Save writes the document to output, or over its input when output is
// empty. Dummy mode skips the phase entirely. Saving after a cancelled run
// is refused.
func (p *Pipeline) Save(ctx context.Context, output string) error {
	if p.doc == nil {
		return errors.New("save: no document opened")
	}
	if p.state == StateCancelled {
		return fmt.Errorf("save: %w", progress.ErrCanceled)
	}
	if p.flags.Dummy {
		p.logger.Info("save skipped", zap.String("reason", "dummy"))
		p.transition(StateDone)
		return nil
	}
	if err := p.acquire(); err != nil {
		return err
	}
	defer p.release()

	unbind := p.bind(ctx)
	defer unbind()

	name := p.doc.Filename
	if output != "" {
		name = filepath.Base(output)
	}
	p.transition(StateSaving)
	err := p.Phase(ctx, "Saving file "+name, func() error {
		return p.save(ctx, p.doc, output, p.tracker)
	})
	if err != nil {
		if errors.Is(err, progress.ErrCanceled) {
			p.cancelled()
			return err
		}
		p.transition(StateFailed)
		return fmt.Errorf("%w: %w", ErrSave, err)
	}
	p.transition(StateDone)
	return nil
}

// Transform is Open, Run and Save in sequence.
func (p *Pipeline) Transform(ctx context.Context, input, output string, params operation.Params, ops ...operation.Script) error {
	if _, err := p.Open(ctx, input); err != nil {
		return err
	}
	if err := p.Run(ctx, params, ops...); err != nil {
		return err
	}
	return p.Save(ctx, output)
}

func (p *Pipeline) cancelled() {
	p.transition(StateCancelled)
}

func (p *Pipeline) transition(s State) {
	p.logger.Debug("state", zap.Stringer("from", p.state), zap.Stringer("to", s))
	p.state = s
}
