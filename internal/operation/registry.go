package operation

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// BuiltinPrefix marks a built-in operation on the command line.
const BuiltinPrefix = "builtin:"

// ErrUnknownOperation is returned for a built-in name that is not registered.
var ErrUnknownOperation = errors.New("unknown operation")

var builtins = map[string]func() Script{
	"change-exposure": func() Script { return &ChangeExposure{} },
	"change-lift":     func() Script { return &ChangeLift{} },
	"change-pwm":      func() Script { return &ChangePWM{} },
	"set-properties":  func() Script { return &SetProperties{} },
	"copy-parameters": func() Script { return &CopyParameters{} },
	"set-thumbnail":   func() Script { return &SetThumbnail{Index: -1} },
}

// Builtins returns the registered built-in names, sorted.
func Builtins() []string {
	names := make([]string, 0, len(builtins))
	for n := range builtins {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// NewBuiltin returns a fresh instance of the named built-in. The name may
// carry the builtin: prefix.
func NewBuiltin(name string) (Script, error) {
	name = strings.TrimPrefix(strings.ToLower(name), BuiltinPrefix)
	f, ok := builtins[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnknownOperation, name, strings.Join(Builtins(), ", "))
	}
	return f(), nil
}

// IsBuiltinRef reports whether a command-line argument names a built-in.
func IsBuiltinRef(arg string) bool {
	return strings.HasPrefix(strings.ToLower(arg), BuiltinPrefix)
}
