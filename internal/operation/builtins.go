package operation

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"layerkit/internal/document"
)

const builtinAuthor = "layerkit"

// unknownParam returns a rejection for the first key not in allowed.
func unknownParam(p Params, allowed ...string) string {
	for _, k := range SortedKeys(p.Values) {
		known := false
		for _, a := range allowed {
			if k == a {
				known = true
				break
			}
		}
		if !known {
			return fmt.Sprintf("unknown parameter %q (accepted: %s)", k, strings.Join(allowed, ", "))
		}
	}
	return ""
}

// ChangeExposure sets the exposure time of every layer in the range.
type ChangeExposure struct {
	exposure float64
}

func (o *ChangeExposure) Init(m *Metadata) {
	m.Name = "Change exposure"
	m.Description = "Sets the exposure time (seconds) of every layer in the range."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *ChangeExposure) Validate(env *Env) string {
	if msg := unknownParam(env.Operation, "exposure"); msg != "" {
		return msg
	}
	v, ok, err := env.Operation.Float("exposure", 0)
	switch {
	case err != nil:
		return err.Error()
	case !ok:
		return "exposure parameter is required"
	case v <= 0:
		return "exposure must be greater than 0"
	}
	o.exposure = v
	return ""
}

func (o *ChangeExposure) Execute(_ context.Context, env *Env) (bool, error) {
	return ForEachLayer(env, func(_ uint32, l document.Layer) document.Layer {
		l.ExposureTime = o.exposure
		return l
	})
}

// ChangeLift sets lift height, lift speed and optionally retract speed.
type ChangeLift struct {
	height, speed, retract float64
	hasRetract             bool
}

func (o *ChangeLift) Init(m *Metadata) {
	m.Name = "Change lift"
	m.Description = "Sets lift height (mm), lift speed and retract speed (mm/min) of every layer in the range."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *ChangeLift) Validate(env *Env) string {
	p := env.Operation
	if msg := unknownParam(p, "height", "retract", "speed"); msg != "" {
		return msg
	}
	h, ok, err := p.Float("height", 0)
	if err != nil {
		return err.Error()
	}
	if !ok || h < 0 {
		return "height must be given and not negative"
	}
	s, ok, err := p.Float("speed", 0)
	if err != nil {
		return err.Error()
	}
	if !ok || s <= 0 {
		return "speed must be given and greater than 0"
	}
	r, hasR, err := p.Float("retract", 0)
	if err != nil {
		return err.Error()
	}
	if hasR && r <= 0 {
		return "retract must be greater than 0"
	}
	o.height, o.speed, o.retract, o.hasRetract = h, s, r, hasR
	return ""
}

func (o *ChangeLift) Execute(_ context.Context, env *Env) (bool, error) {
	return ForEachLayer(env, func(_ uint32, l document.Layer) document.Layer {
		l.LiftHeight = o.height
		l.LiftSpeed = o.speed
		if o.hasRetract {
			l.RetractSpeed = o.retract
		}
		return l
	})
}

// ChangePWM sets the light PWM of every layer in the range.
type ChangePWM struct {
	pwm uint8
}

func (o *ChangePWM) Init(m *Metadata) {
	m.Name = "Change light PWM"
	m.Description = "Sets the UV light PWM (0-255) of every layer in the range."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *ChangePWM) Validate(env *Env) string {
	if msg := unknownParam(env.Operation, "pwm"); msg != "" {
		return msg
	}
	raw, ok := env.Operation.Value("pwm")
	if !ok {
		return "pwm parameter is required"
	}
	v, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 8)
	if err != nil {
		return fmt.Sprintf("pwm must be 0..255, got %q", raw)
	}
	o.pwm = uint8(v)
	return ""
}

func (o *ChangePWM) Execute(_ context.Context, env *Env) (bool, error) {
	return ForEachLayer(env, func(_ uint32, l document.Layer) document.Layer {
		l.LightPWM = o.pwm
		return l
	})
}

// SetProperties assigns document properties from the parameter values, one
// property per item. The layer range is ignored.
type SetProperties struct{}

func (o *SetProperties) Init(m *Metadata) {
	m.Name = "Set properties"
	m.Description = "Sets document properties from key=value pairs."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *SetProperties) Validate(env *Env) string {
	if len(env.Operation.Values) == 0 {
		return "no properties given"
	}
	for _, k := range SortedKeys(env.Operation.Values) {
		if err := document.CheckProperty(k, env.Operation.Values[k]); err != nil {
			return err.Error()
		}
	}
	return ""
}

func (o *SetProperties) ItemCount(env *Env) uint64 {
	return uint64(len(env.Operation.Values))
}

func (o *SetProperties) Execute(_ context.Context, env *Env) (bool, error) {
	for _, k := range SortedKeys(env.Operation.Values) {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		if err := env.Document.SetProperty(k, env.Operation.Values[k]); err != nil {
			return false, fmt.Errorf("set %s: %w", k, err)
		}
		env.Progress.Inc()
	}
	return true, nil
}

// CopyParameters copies print settings from a source document: the
// document-wide parameters, then per-layer parameters for every layer in the
// range that also exists in the source.
type CopyParameters struct {
	Source *document.Document
}

func (o *CopyParameters) Init(m *Metadata) {
	m.Name = "Copy parameters"
	m.Description = "Copies exposure, lift, retract and PWM settings from another document."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *CopyParameters) Validate(env *Env) string {
	if msg := unknownParam(env.Operation, "source"); msg != "" {
		return msg
	}
	if o.Source == nil {
		path, ok := env.Operation.Value("source")
		if !ok || path == "" {
			return "source document is required"
		}
		src, err := document.Open(context.Background(), path, nil)
		if err != nil {
			return err.Error()
		}
		o.Source = src
	}
	if o.Source.LayerCount() == 0 {
		return "source document has no layers"
	}
	return ""
}

func (o *CopyParameters) Execute(_ context.Context, env *Env) (bool, error) {
	env.Document.Properties.CopyPrintParameters(o.Source.Properties)
	src := o.Source
	return ForEachLayer(env, func(i uint32, l document.Layer) document.Layer {
		if i >= src.LayerCount() {
			return l
		}
		return l.WithParametersFrom(src.Layer(i))
	})
}

// SetThumbnail replaces one thumbnail, or all of them, with an image. A
// document without thumbnails gets the image appended.
type SetThumbnail struct {
	Image []byte
	Index int // -1 replaces every thumbnail

	thumb document.Thumbnail
}

func (o *SetThumbnail) Init(m *Metadata) {
	m.Name = "Set thumbnail"
	m.Description = "Replaces document thumbnails with a PNG or JPEG image."
	m.Author = builtinAuthor
	m.Version = "1.0"
}

func (o *SetThumbnail) Validate(env *Env) string {
	p := env.Operation
	if msg := unknownParam(p, "image", "index"); msg != "" {
		return msg
	}
	if o.Image == nil {
		path, ok := p.Value("image")
		if !ok || path == "" {
			return "image is required"
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Sprintf("cannot read image: %v", err)
		}
		o.Image = raw
	}
	if raw, ok := p.Value("index"); ok {
		idx, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return fmt.Sprintf("index must be an integer, got %q", raw)
		}
		o.Index = idx
	}

	n := len(env.Document.Thumbnails)
	if o.Index >= 0 && o.Index >= n {
		return fmt.Sprintf("thumbnail index %d out of range, document has %d", o.Index, n)
	}
	if o.Index < -1 {
		return fmt.Sprintf("thumbnail index %d out of range", o.Index)
	}
	th, err := document.NewThumbnail(o.Image)
	if err != nil {
		return err.Error()
	}
	o.thumb = th
	return ""
}

func (o *SetThumbnail) targets(env *Env) []int {
	if o.Index >= 0 {
		return []int{o.Index}
	}
	idx := make([]int, len(env.Document.Thumbnails))
	for i := range idx {
		idx[i] = i
	}
	return idx
}

func (o *SetThumbnail) ItemCount(env *Env) uint64 {
	if len(env.Document.Thumbnails) == 0 {
		return 1
	}
	return uint64(len(o.targets(env)))
}

func (o *SetThumbnail) Execute(_ context.Context, env *Env) (bool, error) {
	doc := env.Document
	if len(doc.Thumbnails) == 0 {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		doc.Thumbnails = append(doc.Thumbnails, o.thumb)
		env.Progress.Inc()
		return true, nil
	}
	for _, i := range o.targets(env) {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		doc.Thumbnails[i] = o.thumb
		env.Progress.Inc()
	}
	return true, nil
}
