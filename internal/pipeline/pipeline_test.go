package pipeline

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerkit/internal/console"
	"layerkit/internal/document"
	"layerkit/internal/model"
	"layerkit/internal/operation"
	"layerkit/internal/progress"
	"layerkit/internal/testutil"
)

// countingOp processes one item per layer in range and can cancel itself
// after a given item.
type countingOp struct {
	cancelAfter int
	reject      string
	fault       error

	validated bool
	executed  bool
	processed []uint32
}

func (o *countingOp) Init(meta *operation.Metadata) {
	meta.Name = "Counting layers"
}

func (o *countingOp) Validate(*operation.Env) string {
	o.validated = true
	return o.reject
}

func (o *countingOp) Execute(_ context.Context, env *operation.Env) (bool, error) {
	o.executed = true
	if o.fault != nil {
		return false, o.fault
	}
	r := env.Operation.Range
	for i := r.Start; i <= r.End; i++ {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		o.processed = append(o.processed, i)
		env.Progress.Inc()
		if o.cancelAfter >= 0 && int(i) == o.cancelAfter {
			env.Progress.Cancel()
		}
	}
	return true, nil
}

type fakeRenderer struct {
	starts atomic.Int32
	stops  atomic.Int32
}

func (r *fakeRenderer) Start(*progress.Tracker) func() {
	r.starts.Add(1)
	return func() { r.stops.Add(1) }
}

type harness struct {
	p      *Pipeline
	out    *bytes.Buffer
	errOut *bytes.Buffer
	saves  int
	saved  string
	opened int
}

func newHarness(t *testing.T, flags model.GlobalFlags, openErr error, opts ...Option) *harness {
	t.Helper()
	h := &harness{out: &bytes.Buffer{}, errOut: &bytes.Buffer{}}
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	base := []Option{
		WithFlags(flags),
		WithConsole(console.New(console.WithWriters(h.out, h.errOut), console.WithQuiet(flags.Quiet))),
		WithRunID("test-run"),
		WithClock(func() time.Time {
			clock = clock.Add(250 * time.Millisecond)
			return clock
		}),
		WithOpener(func(_ context.Context, path string, _ *progress.Tracker) (*document.Document, error) {
			h.opened++
			if openErr != nil {
				return nil, openErr
			}
			doc := testutil.NewDocument(5)
			doc.Path = path
			doc.Filename = filepath.Base(path)
			return doc, nil
		}),
		WithSaver(func(_ context.Context, doc *document.Document, path string, _ *progress.Tracker) error {
			h.saves++
			h.saved = path
			if path == "" {
				h.saved = doc.Path
			}
			return nil
		}),
	}
	h.p = New(append(base, opts...)...)
	return h
}

func TestTransform_CompletesAndSaves(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	op := &countingOp{cancelAfter: -1}

	err := h.p.Transform(context.Background(), "/tmp/cube.layers.yaml", "", operation.Params{Range: model.WholeDocument()}, op)
	require.NoError(t, err)

	assert.Equal(t, []uint32{0, 1, 2, 3, 4}, op.processed)
	assert.Equal(t, uint64(5), h.p.Tracker().Current())
	assert.Equal(t, uint64(5), h.p.Tracker().Total())
	assert.Equal(t, 1, h.saves)
	assert.Equal(t, "/tmp/cube.layers.yaml", h.saved)
	assert.Equal(t, StateDone, h.p.State())

	want := "Opening file cube.layers.yaml: Done in 0.25s\n" +
		"Counting layers: Done in 0.25s\n" +
		"Saving file cube.layers.yaml: Done in 0.25s\n"
	assert.Equal(t, want, h.out.String())
	assert.Empty(t, h.errOut.String())
}

func TestTransform_SaveTitleUsesOutputName(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	err := h.p.Transform(context.Background(), "in.layers.yaml", "/out/result.layers.json", operation.Params{}, &countingOp{cancelAfter: -1})
	require.NoError(t, err)
	assert.Contains(t, h.out.String(), "Saving file result.layers.json: Done in ")
	assert.Equal(t, "/out/result.layers.json", h.saved)
}

func TestTransform_CancelSkipsSave(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	op := &countingOp{cancelAfter: 2}

	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{Range: model.WholeDocument()}, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, progress.ErrCanceled)

	assert.Equal(t, []uint32{0, 1, 2}, op.processed)
	assert.Equal(t, 0, h.saves)
	assert.Equal(t, StateCancelled, h.p.State())
	assert.Contains(t, h.out.String(), "Operation cancelled")
	assert.NotContains(t, h.out.String(), "Saving file")

	// An explicit save after a cancelled run is refused as well.
	assert.ErrorIs(t, h.p.Save(context.Background(), ""), progress.ErrCanceled)
	assert.Equal(t, 0, h.saves)
}

func TestTransform_ContextCancelDuringRun(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := h.p.Open(ctx, "cube.layers.yaml")
	require.NoError(t, err)
	cancel()

	op := &countingOp{cancelAfter: -1}
	err = h.p.Run(ctx, operation.Params{Range: model.WholeDocument()}, op)
	assert.ErrorIs(t, err, progress.ErrCanceled)
	assert.Empty(t, op.processed)
	assert.Equal(t, StateCancelled, h.p.State())
}

func TestTransform_DummyNeverSaves(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{Dummy: true}, nil)
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "out.layers.yaml", operation.Params{}, &countingOp{cancelAfter: -1})
	require.NoError(t, err)
	assert.Equal(t, 0, h.saves)
	assert.Equal(t, StateDone, h.p.State())
	assert.NotContains(t, h.out.String(), "Saving file")
}

func TestTransform_QuietWritesNothing(t *testing.T) {
	r := &fakeRenderer{}
	h := newHarness(t, model.GlobalFlags{Quiet: true}, nil, WithRenderer(r))
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{Range: model.WholeDocument()}, &countingOp{cancelAfter: 1})
	assert.ErrorIs(t, err, progress.ErrCanceled)
	assert.Zero(t, h.out.Len())
	assert.Zero(t, h.errOut.Len())
	assert.Zero(t, r.starts.Load())
}

func TestTransform_ValidationStopsBeforeExecute(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	op := &countingOp{reject: "exposure must be positive", cancelAfter: -1}

	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{}, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrValidation)

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "exposure must be positive", verr.Message)
	assert.Equal(t, "Counting layers", verr.Operation)

	assert.True(t, op.validated)
	assert.False(t, op.executed)
	assert.Equal(t, 0, h.saves)
	assert.Equal(t, StateFailed, h.p.State())
}

func TestTransform_InvalidRangeIsValidation(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	op := &countingOp{cancelAfter: -1}
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{Range: model.LayerRange{Start: 3, End: 1}}, op)
	assert.ErrorIs(t, err, ErrValidation)
	assert.False(t, op.validated)
	assert.False(t, op.executed)
}

func TestTransform_OpenFailureStops(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, document.ErrUnknownFormat)
	op := &countingOp{cancelAfter: -1}

	err := h.p.Transform(context.Background(), "cube.txt", "", operation.Params{}, op)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrOpen)
	assert.ErrorIs(t, err, document.ErrUnknownFormat)
	assert.False(t, op.validated)
	assert.Equal(t, 0, h.saves)
	assert.Equal(t, StateFailed, h.p.State())
	assert.Equal(t, "Opening file cube.txt: \n", h.out.String())
}

func TestTransform_CancelDuringOpen(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, progress.ErrCanceled)
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{}, &countingOp{cancelAfter: -1})
	assert.ErrorIs(t, err, progress.ErrCanceled)
	assert.NotErrorIs(t, err, ErrOpen)
	assert.Equal(t, StateCancelled, h.p.State())
}

func TestTransform_FaultIsNotCancellation(t *testing.T) {
	h := newHarness(t, model.GlobalFlags{}, nil)
	boom := errors.New("boom")
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{}, &countingOp{fault: boom, cancelAfter: -1})
	assert.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, progress.ErrCanceled)
	assert.Equal(t, StateFailed, h.p.State())
	assert.NotContains(t, h.out.String(), "Operation cancelled")
}

func TestSave_FailureWrapped(t *testing.T) {
	diskFull := errors.New("disk full")
	h := newHarness(t, model.GlobalFlags{}, nil, WithSaver(func(context.Context, *document.Document, string, *progress.Tracker) error {
		return diskFull
	}))
	err := h.p.Transform(context.Background(), "cube.layers.yaml", "", operation.Params{}, &countingOp{cancelAfter: -1})
	assert.ErrorIs(t, err, ErrSave)
	assert.ErrorIs(t, err, diskFull)
	assert.Equal(t, StateFailed, h.p.State())
}

func TestPhase_RendererLifecycle(t *testing.T) {
	r := &fakeRenderer{}
	h := newHarness(t, model.GlobalFlags{}, nil, WithRenderer(r))
	require.NoError(t, h.p.Phase(context.Background(), "Extracting", func() error { return nil }))
	assert.Equal(t, int32(1), r.starts.Load())
	assert.Equal(t, int32(1), r.stops.Load())
	assert.Regexp(t, regexp.MustCompile(`^Extracting: Done in \d+\.\d{2}s\n$`), h.out.String())

	h2 := newHarness(t, model.GlobalFlags{NoProgress: true}, nil, WithRenderer(r))
	require.NoError(t, h2.p.Phase(context.Background(), "Extracting", func() error { return nil }))
	assert.Equal(t, int32(1), r.starts.Load())
}

func TestRun_WithoutOpen(t *testing.T) {
	p := New()
	assert.Error(t, p.Run(context.Background(), operation.Params{}))
	assert.Error(t, p.Save(context.Background(), ""))
}

func TestNew_GeneratesRunID(t *testing.T) {
	a, b := New(), New()
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "cancelled", StateCancelled.String())
	assert.Equal(t, "unknown", State(99).String())
	assert.True(t, StateFailed.Terminal())
	assert.False(t, StateRunning.Terminal())
}
