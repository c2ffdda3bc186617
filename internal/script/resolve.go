package script

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"layerkit/internal/operation"
)

// ErrNotFound is returned when an argument names no script file.
var ErrNotFound = errors.New("script not found")

// Resolve expands run arguments into an ordered list of references. Built-in
// references pass through unchanged. Glob patterns (doublestar syntax, so
// "**" crosses directories) expand to their sorted matches, tried first as
// given and then under scriptsDir. Bare names are looked up under
// scriptsDir, with and without the .hcl extension.
func Resolve(args []string, scriptsDir string) ([]string, error) {
	var out []string
	for _, arg := range args {
		if operation.IsBuiltinRef(arg) {
			out = append(out, arg)
			continue
		}
		if isPattern(arg) {
			matches, err := glob(arg, scriptsDir)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("%w: no match for %s", ErrNotFound, arg)
			}
			out = append(out, matches...)
			continue
		}
		p, err := lookup(arg, scriptsDir)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func isPattern(s string) bool {
	return strings.ContainsAny(s, "*?[{")
}

func glob(pattern, scriptsDir string) ([]string, error) {
	candidates := []string{pattern}
	if scriptsDir != "" && !filepath.IsAbs(pattern) {
		candidates = append(candidates, filepath.Join(scriptsDir, pattern))
	}
	for _, c := range candidates {
		matches, err := doublestar.FilepathGlob(c, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		if len(matches) > 0 {
			sort.Strings(matches)
			return matches, nil
		}
	}
	return nil, nil
}

func lookup(name, scriptsDir string) (string, error) {
	candidates := []string{name}
	if scriptsDir != "" && !filepath.IsAbs(name) {
		candidates = append(candidates, filepath.Join(scriptsDir, name))
	}
	if !strings.HasSuffix(strings.ToLower(name), Extension) {
		n := len(candidates)
		for i := 0; i < n; i++ {
			candidates = append(candidates, candidates[i]+Extension)
		}
	}
	for _, c := range candidates {
		if fi, err := os.Stat(c); err == nil && !fi.IsDir() {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: %s", ErrNotFound, name)
}

// Open resolves a single reference into a runnable operation: a fresh
// built-in or a loaded script file.
func Open(ref string) (operation.Script, error) {
	if operation.IsBuiltinRef(ref) {
		return operation.NewBuiltin(ref)
	}
	return Load(ref)
}

// List returns every script file under dir, recursively, sorted. A missing
// directory yields no scripts.
func List(dir string) ([]string, error) {
	if dir == "" {
		return nil, nil
	}
	if fi, err := os.Stat(dir); err != nil || !fi.IsDir() {
		return nil, nil
	}
	matches, err := doublestar.Glob(os.DirFS(dir), "**/*"+Extension, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", dir, err)
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(out)
	return out, nil
}
