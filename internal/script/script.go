// Package script loads HCL files that implement operation.Script.
//
// A script declares metadata, parameters, validation rules and layer rules:
//
//	script { name = "Exposure ramp" author = "me" version = "0.1" }
//	param "exposure" { default = 40 }
//	validate {
//	  condition = param.exposure > 0
//	  message   = "exposure must be > 0"
//	}
//	layer {
//	  when          = !layer.is_bottom
//	  exposure_time = param.exposure
//	}
//
// Layer rules run in file order for every layer of the range. Each rule sees
// the layer as left by the previous one; the result is committed once per
// layer.
package script

import (
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"

	"layerkit/internal/document"
	"layerkit/internal/operation"
)

// Extension is the file extension of script files.
const Extension = ".hcl"

// ErrLoad is wrapped by every parse or decode failure.
var ErrLoad = errors.New("invalid script")

// fileRoot is the top-level layout of a script file.
type fileRoot struct {
	Script    *scriptBlock     `hcl:"script,block"`
	Params    []*paramBlock    `hcl:"param,block"`
	Validates []*validateBlock `hcl:"validate,block"`
	Layers    []*layerBlock    `hcl:"layer,block"`
}

type scriptBlock struct {
	Name        string `hcl:"name"`
	Description string `hcl:"description,optional"`
	Author      string `hcl:"author,optional"`
	Version     string `hcl:"version,optional"`
}

type paramBlock struct {
	Name        string         `hcl:"name,label"`
	Default     hcl.Expression `hcl:"default,optional"`
	Description string         `hcl:"description,optional"`
}

type validateBlock struct {
	Condition hcl.Expression `hcl:"condition"`
	Message   hcl.Expression `hcl:"message"`
}

type layerBlock struct {
	When   hcl.Expression `hcl:"when,optional"`
	Remain hcl.Body       `hcl:",remain"`
}

// layerRule is a decoded layer block: an optional guard and the attributes
// it assigns, sorted by name.
type layerRule struct {
	when  hcl.Expression
	attrs []*hcl.Attribute
}

// setters are the layer fields a rule may assign.
var setters = map[string]func(l *document.Layer, v float64) error{
	"position_z":    nonNegative(func(l *document.Layer, v float64) { l.PositionZ = v }),
	"exposure_time": nonNegative(func(l *document.Layer, v float64) { l.ExposureTime = v }),
	"lift_height":   nonNegative(func(l *document.Layer, v float64) { l.LiftHeight = v }),
	"lift_speed":    nonNegative(func(l *document.Layer, v float64) { l.LiftSpeed = v }),
	"retract_speed": nonNegative(func(l *document.Layer, v float64) { l.RetractSpeed = v }),
	"light_pwm": func(l *document.Layer, v float64) error {
		if v < 0 || v > 255 || v != math.Trunc(v) {
			return fmt.Errorf("want an integer 0..255, got %g", v)
		}
		l.LightPWM = uint8(v)
		return nil
	},
}

func nonNegative(set func(*document.Layer, float64)) func(*document.Layer, float64) error {
	return func(l *document.Layer, v float64) error {
		if v < 0 || math.IsNaN(v) {
			return fmt.Errorf("want a non-negative number, got %g", v)
		}
		set(l, v)
		return nil
	}
}

var functions = map[string]function.Function{
	"min":    stdlib.MinFunc,
	"max":    stdlib.MaxFunc,
	"abs":    stdlib.AbsoluteFunc,
	"floor":  stdlib.FloorFunc,
	"ceil":   stdlib.CeilFunc,
	"format": stdlib.FormatFunc,
	"upper":  stdlib.UpperFunc,
	"lower":  stdlib.LowerFunc,
}

// Script is a loaded script file.
type Script struct {
	path      string
	meta      operation.Metadata
	params    []*paramBlock
	validates []*validateBlock
	rules     []layerRule

	bound map[string]cty.Value
}

// Load parses the script at path.
func Load(path string) (*Script, error) {
	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, filepath.Base(path), diags)
	}
	return decode(path, file)
}

// Parse parses script source held in memory. name is used in messages.
func Parse(name string, src []byte) (*Script, error) {
	file, diags := hclparse.NewParser().ParseHCL(src, name)
	if diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, name, diags)
	}
	return decode(name, file)
}

func decode(path string, file *hcl.File) (*Script, error) {
	name := filepath.Base(path)
	var root fileRoot
	if diags := gohcl.DecodeBody(file.Body, nil, &root); diags.HasErrors() {
		return nil, fmt.Errorf("%w: %s: %w", ErrLoad, name, diags)
	}

	s := &Script{path: path, params: root.Params, validates: root.Validates}
	s.meta.Name = strings.TrimSuffix(name, Extension)
	if b := root.Script; b != nil {
		s.meta = operation.Metadata{Name: b.Name, Description: b.Description, Author: b.Author, Version: b.Version}
	}

	seen := make(map[string]bool, len(root.Params))
	for _, p := range root.Params {
		p.Name = strings.ToLower(p.Name)
		if seen[p.Name] {
			return nil, fmt.Errorf("%w: %s: param %q declared twice", ErrLoad, name, p.Name)
		}
		seen[p.Name] = true
	}

	for _, lb := range root.Layers {
		attrs, diags := lb.Remain.JustAttributes()
		if diags.HasErrors() {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoad, name, diags)
		}
		rule := layerRule{when: lb.When}
		for _, a := range attrs {
			rule.attrs = append(rule.attrs, a)
		}
		sort.Slice(rule.attrs, func(i, j int) bool { return rule.attrs[i].Name < rule.attrs[j].Name })
		s.rules = append(s.rules, rule)
	}
	return s, nil
}

// Path returns the file the script was loaded from.
func (s *Script) Path() string { return s.path }

// Init declares the metadata from the script block.
func (s *Script) Init(meta *operation.Metadata) {
	*meta = s.meta
}

// Validate binds parameters, checks layer rules only assign known fields and
// evaluates every validate block in order. The first failing block's message
// is the rejection.
func (s *Script) Validate(env *operation.Env) string {
	for _, r := range s.rules {
		for _, a := range r.attrs {
			if _, ok := setters[a.Name]; !ok {
				return fmt.Sprintf("%s: unknown layer attribute %q", a.NameRange, a.Name)
			}
		}
	}

	bound, msg := s.bindParams(env)
	if msg != "" {
		return msg
	}
	s.bound = bound

	ctx := s.evalContext(env)
	for _, v := range s.validates {
		ok, err := evalBool(v.Condition, ctx, false)
		if err != nil {
			return err.Error()
		}
		if ok {
			continue
		}
		m, err := evalString(v.Message, ctx)
		if err != nil {
			return err.Error()
		}
		if m == "" {
			m = fmt.Sprintf("%s: validation failed", v.Condition.Range())
		}
		return m
	}
	return ""
}

// Execute applies the layer rules to every layer in the range.
func (s *Script) Execute(_ context.Context, env *operation.Env) (bool, error) {
	if s.bound == nil {
		return false, errors.New("script executed before validation")
	}
	base := s.evalContext(env)
	doc := env.Document
	r := env.Operation.Range
	for k := uint32(0); k < r.Count(); k++ {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		i := r.Start + k
		l, err := s.applyRules(base, doc, i)
		if err != nil {
			return false, fmt.Errorf("layer %d: %w", i, err)
		}
		doc.SetLayer(i, l)
		env.Progress.Inc()
	}
	return true, nil
}

func (s *Script) applyRules(base *hcl.EvalContext, doc *document.Document, i uint32) (document.Layer, error) {
	l := doc.Layer(i)
	for _, rule := range s.rules {
		ctx := base.NewChild()
		ctx.Variables = map[string]cty.Value{"layer": layerValue(doc, i, l)}

		apply, err := evalBool(rule.when, ctx, true)
		if err != nil {
			return l, err
		}
		if !apply {
			continue
		}
		next := l
		for _, a := range rule.attrs {
			v, err := evalNumber(a.Expr, ctx)
			if err != nil {
				return l, err
			}
			if err := setters[a.Name](&next, v); err != nil {
				return l, fmt.Errorf("%s: %s: %w", a.Expr.Range(), a.Name, err)
			}
		}
		l = next
	}
	return l, nil
}

func (s *Script) bindParams(env *operation.Env) (map[string]cty.Value, string) {
	declared := make(map[string]bool, len(s.params))
	for _, p := range s.params {
		declared[p.Name] = true
	}
	for _, k := range operation.SortedKeys(env.Operation.Values) {
		if !declared[k] {
			return nil, fmt.Sprintf("unknown parameter %q", k)
		}
	}

	defaults := s.evalContext(env)
	out := make(map[string]cty.Value, len(s.params))
	for _, p := range s.params {
		def, diags := p.Default.Value(defaults)
		if diags.HasErrors() {
			return nil, fmt.Sprintf("param %q default: %s", p.Name, diags.Error())
		}
		raw, given := env.Operation.Values[p.Name]
		switch {
		case given && def.IsNull():
			out[p.Name] = guessValue(raw)
		case given:
			v, err := convert.Convert(cty.StringVal(raw), def.Type())
			if err != nil {
				return nil, fmt.Sprintf("param %q: cannot use %q as %s", p.Name, raw, def.Type().FriendlyName())
			}
			out[p.Name] = v
		case def.IsNull():
			return nil, fmt.Sprintf("param %q is required", p.Name)
		default:
			out[p.Name] = def
		}
	}
	return out, ""
}

// guessValue types an untyped command-line value: number, bool or string.
func guessValue(raw string) cty.Value {
	if v, err := cty.ParseNumberVal(strings.TrimSpace(raw)); err == nil {
		return v
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "true":
		return cty.True
	case "false":
		return cty.False
	}
	return cty.StringVal(raw)
}

func (s *Script) evalContext(env *operation.Env) *hcl.EvalContext {
	p := env.Operation
	doc := env.Document
	vars := map[string]cty.Value{
		"operation": cty.ObjectVal(map[string]cty.Value{
			"range_start": cty.NumberUIntVal(uint64(p.RangeStart())),
			"range_end":   cty.NumberUIntVal(uint64(p.RangeEnd())),
			"range_count": cty.NumberUIntVal(uint64(p.RangeCount())),
		}),
		"document": cty.ObjectVal(map[string]cty.Value{
			"layer_count":        cty.NumberUIntVal(uint64(doc.LayerCount())),
			"layer_height":       cty.NumberFloatVal(doc.Properties.LayerHeight),
			"machine_name":       cty.StringVal(doc.Properties.MachineName),
			"bottom_layer_count": cty.NumberUIntVal(uint64(doc.Properties.BottomLayerCount)),
		}),
	}
	if s.bound != nil {
		vars["param"] = cty.ObjectVal(s.bound)
	}
	return &hcl.EvalContext{Variables: vars, Functions: functions}
}

func layerValue(doc *document.Document, i uint32, l document.Layer) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"index":         cty.NumberUIntVal(uint64(i)),
		"position_z":    cty.NumberFloatVal(l.PositionZ),
		"exposure_time": cty.NumberFloatVal(l.ExposureTime),
		"lift_height":   cty.NumberFloatVal(l.LiftHeight),
		"lift_speed":    cty.NumberFloatVal(l.LiftSpeed),
		"retract_speed": cty.NumberFloatVal(l.RetractSpeed),
		"light_pwm":     cty.NumberUIntVal(uint64(l.LightPWM)),
		"pixel_count":   cty.NumberUIntVal(uint64(l.PixelCount)),
		"is_bottom":     cty.BoolVal(doc.IsBottomLayer(i)),
	})
}

func evalBool(expr hcl.Expression, ctx *hcl.EvalContext, def bool) (bool, error) {
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return false, diags
	}
	if v.IsNull() {
		return def, nil
	}
	v, err := convert.Convert(v, cty.Bool)
	if err != nil || !v.IsKnown() || v.IsNull() {
		return false, fmt.Errorf("%s: want a bool", expr.Range())
	}
	return v.True(), nil
}

func evalNumber(expr hcl.Expression, ctx *hcl.EvalContext) (float64, error) {
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return 0, diags
	}
	v, err := convert.Convert(v, cty.Number)
	if err != nil || !v.IsKnown() || v.IsNull() {
		return 0, fmt.Errorf("%s: want a number", expr.Range())
	}
	f, _ := v.AsBigFloat().Float64()
	return f, nil
}

func evalString(expr hcl.Expression, ctx *hcl.EvalContext) (string, error) {
	v, diags := expr.Value(ctx)
	if diags.HasErrors() {
		return "", diags
	}
	v, err := convert.Convert(v, cty.String)
	if err != nil || !v.IsKnown() {
		return "", fmt.Errorf("%s: want a string", expr.Range())
	}
	if v.IsNull() {
		return "", nil
	}
	return v.AsString(), nil
}
