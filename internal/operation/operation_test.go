package operation_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"layerkit/internal/document"
	"layerkit/internal/model"
	"layerkit/internal/operation"
	"layerkit/internal/progress"
	"layerkit/internal/testutil"
)

func newEnv(doc *document.Document, r model.LayerRange, values map[string]string) *operation.Env {
	return &operation.Env{
		Document:  doc,
		Progress:  progress.NewTracker(),
		Operation: operation.Params{Range: r, Values: values},
	}
}

// run drives a script the way the host does: validate, reset, execute.
func run(t *testing.T, s operation.Script, env *operation.Env) (bool, error) {
	t.Helper()
	if msg := s.Validate(env); msg != "" {
		t.Fatalf("unexpected rejection: %s", msg)
	}
	total := uint64(env.Operation.RangeCount())
	if c, ok := s.(operation.Counter); ok {
		total = c.ItemCount(env)
	}
	env.Progress.Reset("test", total)
	return s.Execute(context.Background(), env)
}

func TestParams_Range(t *testing.T) {
	p := operation.Params{Range: model.LayerRange{Start: 2, End: 6}}
	assert.Equal(t, uint32(2), p.RangeStart())
	assert.Equal(t, uint32(6), p.RangeEnd())
	assert.Equal(t, uint32(5), p.RangeCount())
}

func TestChangeExposure_FullRange(t *testing.T) {
	doc := testutil.NewDocument(5)
	env := newEnv(doc, model.LayerRange{Start: 0, End: 4}, map[string]string{"exposure": "40"})

	ok, err := run(t, &operation.ChangeExposure{}, env)
	require.NoError(t, err)
	assert.True(t, ok)
	for i := range doc.Layers {
		assert.Equal(t, 40.0, doc.Layers[i].ExposureTime, "layer %d", i)
	}
	assert.Equal(t, uint64(5), env.Progress.Current())
	assert.Equal(t, uint64(5), env.Progress.Total())
}

func TestChangeExposure_PartialRange(t *testing.T) {
	doc := testutil.NewDocument(6)
	env := newEnv(doc, model.LayerRange{Start: 2, End: 3}, map[string]string{"exposure": "9"})

	ok, err := run(t, &operation.ChangeExposure{}, env)
	require.NoError(t, err)
	assert.True(t, ok)
	got := []float64{}
	for _, l := range doc.Layers {
		got = append(got, l.ExposureTime)
	}
	assert.Equal(t, []float64{30, 30, 9, 9, 2.5, 2.5}, got)
}

// cancelAfter cancels the tracker once layer n is committed.
type cancelAfter struct {
	n         uint32
	processed []uint32
}

func (c *cancelAfter) Init(m *operation.Metadata) { m.Name = "cancel after" }
func (c *cancelAfter) Validate(*operation.Env) string { return "" }
func (c *cancelAfter) Execute(_ context.Context, env *operation.Env) (bool, error) {
	return operation.ForEachLayer(env, func(i uint32, l document.Layer) document.Layer {
		c.processed = append(c.processed, i)
		l.ExposureTime = 99
		if i == c.n {
			env.Progress.Cancel()
		}
		return l
	})
}

func TestForEachLayer_CancelBetweenItems(t *testing.T) {
	doc := testutil.NewDocument(5)
	env := newEnv(doc, model.LayerRange{Start: 0, End: 4}, nil)
	s := &cancelAfter{n: 2}

	ok, err := run(t, s, env)
	assert.False(t, ok)
	require.ErrorIs(t, err, progress.ErrCanceled)
	assert.Equal(t, []uint32{0, 1, 2}, s.processed)
	assert.Equal(t, uint64(3), env.Progress.Current())
	for i, l := range doc.Layers {
		if i <= 2 {
			assert.Equal(t, 99.0, l.ExposureTime, "layer %d", i)
		} else {
			assert.NotEqual(t, 99.0, l.ExposureTime, "layer %d", i)
		}
	}
}

func TestValidationRejections(t *testing.T) {
	tests := []struct {
		name   string
		script operation.Script
		values map[string]string
	}{
		{name: "exposure missing", script: &operation.ChangeExposure{}, values: map[string]string{}},
		{name: "exposure zero", script: &operation.ChangeExposure{}, values: map[string]string{"exposure": "0"}},
		{name: "exposure text", script: &operation.ChangeExposure{}, values: map[string]string{"exposure": "long"}},
		{name: "exposure unknown key", script: &operation.ChangeExposure{}, values: map[string]string{"exposure": "1", "bottom": "2"}},
		{name: "lift no speed", script: &operation.ChangeLift{}, values: map[string]string{"height": "5"}},
		{name: "lift bad retract", script: &operation.ChangeLift{}, values: map[string]string{"height": "5", "speed": "60", "retract": "0"}},
		{name: "pwm overflow", script: &operation.ChangePWM{}, values: map[string]string{"pwm": "300"}},
		{name: "pwm missing", script: &operation.ChangePWM{}, values: nil},
		{name: "properties empty", script: &operation.SetProperties{}, values: map[string]string{}},
		{name: "properties unknown", script: &operation.SetProperties{}, values: map[string]string{"colour": "red"}},
		{name: "copy without source", script: &operation.CopyParameters{}, values: nil},
		{name: "copy missing file", script: &operation.CopyParameters{}, values: map[string]string{"source": "/nonexistent/a.yaml"}},
		{name: "thumbnail without image", script: &operation.SetThumbnail{Index: -1}, values: nil},
		{name: "thumbnail not an image", script: &operation.SetThumbnail{Image: []byte("nope"), Index: -1}, values: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newEnv(testutil.NewDocument(3), model.LayerRange{Start: 0, End: 2}, tt.values)
			assert.NotEmpty(t, tt.script.Validate(env))
		})
	}
}

func TestChangeLift(t *testing.T) {
	doc := testutil.NewDocument(3)
	env := newEnv(doc, model.LayerRange{Start: 0, End: 2}, map[string]string{"height": "8", "speed": "45"})
	ok, err := run(t, &operation.ChangeLift{}, env)
	require.NoError(t, err)
	assert.True(t, ok)
	for _, l := range doc.Layers {
		assert.Equal(t, 8.0, l.LiftHeight)
		assert.Equal(t, 45.0, l.LiftSpeed)
		assert.Equal(t, 150.0, l.RetractSpeed, "retract untouched when not given")
	}
}

func TestChangePWM(t *testing.T) {
	doc := testutil.NewDocument(2)
	env := newEnv(doc, model.LayerRange{Start: 0, End: 1}, map[string]string{"pwm": "128"})
	ok, err := run(t, &operation.ChangePWM{}, env)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint8(128), doc.Layers[0].LightPWM)
	assert.Equal(t, uint8(128), doc.Layers[1].LightPWM)
}

func TestSetProperties(t *testing.T) {
	doc := testutil.NewDocument(2)
	env := newEnv(doc, model.WholeDocument(), map[string]string{"exposure_time": "3", "machine_name": "Test Rig"})
	ok, err := run(t, &operation.SetProperties{}, env)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 3.0, doc.Properties.ExposureTime)
	assert.Equal(t, "Test Rig", doc.Properties.MachineName)
	assert.Equal(t, uint64(2), env.Progress.Total())
	assert.Equal(t, uint64(2), env.Progress.Current())
}

func TestCopyParameters(t *testing.T) {
	src := testutil.NewDocument(2)
	src.Properties.ExposureTime = 7
	for i := range src.Layers {
		src.Layers[i].ExposureTime = 7
		src.Layers[i].LightPWM = 50
	}
	path := testutil.WriteDocument(t, t.TempDir(), "src.layers.json", src)

	dst := testutil.NewDocument(4)
	env := newEnv(dst, model.LayerRange{Start: 0, End: 3}, map[string]string{"source": path})
	ok, err := run(t, &operation.CopyParameters{}, env)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, 7.0, dst.Properties.ExposureTime)
	assert.Equal(t, uint8(50), dst.Layers[1].LightPWM)
	assert.Equal(t, uint8(200), dst.Layers[2].LightPWM, "layers past the source are kept")
	assert.Equal(t, 0.1, dst.Layers[1].PositionZ, "positions are not copied")
}

func TestSetThumbnail(t *testing.T) {
	img := testutil.PNG(t, 5, 5)
	first, err := document.NewThumbnail(testutil.PNG(t, 1, 1))
	require.NoError(t, err)

	t.Run("replace all", func(t *testing.T) {
		doc := testutil.NewDocument(1)
		doc.Thumbnails = []document.Thumbnail{first, first}
		env := newEnv(doc, model.LayerRange{}, nil)
		ok, err := run(t, &operation.SetThumbnail{Image: img, Index: -1}, env)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint32(5), doc.Thumbnails[0].Width)
		assert.Equal(t, uint32(5), doc.Thumbnails[1].Width)
		assert.Equal(t, uint64(2), env.Progress.Current())
	})

	t.Run("replace one from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "t.png")
		require.NoError(t, os.WriteFile(path, img, 0o644))
		doc := testutil.NewDocument(1)
		doc.Thumbnails = []document.Thumbnail{first, first}
		env := newEnv(doc, model.LayerRange{}, map[string]string{"image": path, "index": "1"})
		s, err := operation.NewBuiltin("builtin:set-thumbnail")
		require.NoError(t, err)
		ok, err := run(t, s, env)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, uint32(1), doc.Thumbnails[0].Width)
		assert.Equal(t, uint32(5), doc.Thumbnails[1].Width)
	})

	t.Run("append when none", func(t *testing.T) {
		doc := testutil.NewDocument(1)
		env := newEnv(doc, model.LayerRange{}, nil)
		ok, err := run(t, &operation.SetThumbnail{Image: img, Index: -1}, env)
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Len(t, doc.Thumbnails, 1)
	})

	t.Run("index out of range", func(t *testing.T) {
		doc := testutil.NewDocument(1)
		env := newEnv(doc, model.LayerRange{}, nil)
		assert.Contains(t, (&operation.SetThumbnail{Image: img, Index: 3}).Validate(env), "out of range")
	})
}

func TestRegistry(t *testing.T) {
	assert.Equal(t, []string{"change-exposure", "change-lift", "change-pwm", "copy-parameters", "set-properties", "set-thumbnail"}, operation.Builtins())

	for _, name := range operation.Builtins() {
		s, err := operation.NewBuiltin(operation.BuiltinPrefix + name)
		require.NoError(t, err)
		meta := operation.Describe(s)
		assert.NotEmpty(t, meta.Name, name)
		assert.Equal(t, "layerkit", meta.Author)
	}

	_, err := operation.NewBuiltin("builtin:explode")
	assert.ErrorIs(t, err, operation.ErrUnknownOperation)
	assert.True(t, operation.IsBuiltinRef("BUILTIN:change-pwm"))
	assert.False(t, operation.IsBuiltinRef("scripts/x.hcl"))
}

func TestParseValues(t *testing.T) {
	got, err := operation.ParseValues([]string{"Exposure=40", "note=a=b", "exposure=41"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"exposure": "41", "note": "a=b"}, got)

	_, err = operation.ParseValues([]string{"novalue"})
	assert.ErrorIs(t, err, operation.ErrBadParam)
	_, err = operation.ParseValues([]string{"=x"})
	assert.ErrorIs(t, err, operation.ErrBadParam)
}
