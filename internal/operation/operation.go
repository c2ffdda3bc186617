// Package operation defines the contract every transformation follows, built
// in or loaded from a script file: Init declares metadata, Validate may
// reject the request, Execute walks the layer range under a progress tracker.
package operation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"layerkit/internal/document"
	"layerkit/internal/model"
	"layerkit/internal/progress"
)

// ErrBadParam is wrapped by ParseValues failures.
var ErrBadParam = errors.New("invalid parameter")

// Metadata is what an operation says about itself. Display only.
type Metadata struct {
	Name        string
	Description string
	Author      string
	Version     string
}

func (m Metadata) String() string {
	s := m.Name
	if m.Version != "" {
		s += " v" + m.Version
	}
	if m.Author != "" {
		s += " by " + m.Author
	}
	return s
}

// Params is the request an operation runs against.
type Params struct {
	Range  model.LayerRange
	Values map[string]string
}

// RangeStart is the first layer index, inclusive.
func (p Params) RangeStart() uint32 { return p.Range.Start }

// RangeEnd is the last layer index, inclusive.
func (p Params) RangeEnd() uint32 { return p.Range.End }

// RangeCount is the number of layers in the range.
func (p Params) RangeCount() uint32 { return p.Range.Count() }

// Value returns a raw parameter value.
func (p Params) Value(key string) (string, bool) {
	v, ok := p.Values[key]
	return v, ok
}

// Float parses key as a float. Missing keys yield def and ok=false.
func (p Params) Float(key string, def float64) (v float64, ok bool, err error) {
	raw, found := p.Values[key]
	if !found {
		return def, false, nil
	}
	v, err = strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return def, true, fmt.Errorf("%s must be a number, got %q", key, raw)
	}
	return v, true, nil
}

// Env is what the host hands an operation: the document to change, the
// tracker to report on and the request parameters.
type Env struct {
	Document  *document.Document
	Progress  *progress.Tracker
	Operation Params
}

// Script is the three-phase lifecycle shared by built-ins and script files.
//
// Init must only fill meta. Validate returns "" to accept or a message to
// reject; the host never calls Execute after a rejection. Execute receives a
// tracker already reset to the item count, calls
// Progress.CheckCancellationOrPause before every item and Progress.Inc after
// committing it. It returns true when every item was processed; false or
// progress.ErrCanceled mean it stopped early. Any other error is a fault.
type Script interface {
	Init(meta *Metadata)
	Validate(env *Env) string
	Execute(ctx context.Context, env *Env) (bool, error)
}

// Counter is implemented by operations whose items are not layers. The host
// resets the tracker to ItemCount instead of the range count.
type Counter interface {
	ItemCount(env *Env) uint64
}

// Describe runs Init on a fresh Metadata.
func Describe(s Script) Metadata {
	var m Metadata
	s.Init(&m)
	return m
}

// ForEachLayer applies fn to every layer in the range. Each new layer value
// is built from a copy and committed with one assignment, so a cancel can
// only land between layers.
func ForEachLayer(env *Env, fn func(i uint32, l document.Layer) document.Layer) (bool, error) {
	r := env.Operation.Range
	for k := uint32(0); k < r.Count(); k++ {
		if err := env.Progress.CheckCancellationOrPause(); err != nil {
			return false, err
		}
		i := r.Start + k
		env.Document.SetLayer(i, fn(i, env.Document.Layer(i)))
		env.Progress.Inc()
	}
	return true, nil
}

// ParseValues turns key=value arguments into a map. Keys are lower-cased and
// later duplicates win.
func ParseValues(args []string) (map[string]string, error) {
	out := make(map[string]string, len(args))
	for _, a := range args {
		k, v, ok := strings.Cut(a, "=")
		k = strings.ToLower(strings.TrimSpace(k))
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: %q is not key=value", ErrBadParam, a)
		}
		out[k] = v
	}
	return out, nil
}

// SortedKeys returns the keys of m in order.
func SortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
