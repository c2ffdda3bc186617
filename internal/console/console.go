// Package console formats the human-readable lines a command prints: plain
// text, warnings, informational notes and errors. A quiet reporter prints
// nothing at all but still terminates on Fatal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

// errorPrefix is prepended to error lines that do not already carry it.
const errorPrefix = "Error: "

// Reporter writes console lines. It is safe for concurrent use.
type Reporter struct {
	mu    sync.Mutex
	out   io.Writer
	err   io.Writer
	quiet bool
	exit  func(int)

	warn  lipgloss.Style
	info  lipgloss.Style
	fault lipgloss.Style
}

// Option configures a Reporter.
type Option func(*Reporter)

// WithWriters sets the normal and error streams.
func WithWriters(out, errOut io.Writer) Option {
	return func(r *Reporter) {
		r.out = out
		r.err = errOut
	}
}

// WithQuiet suppresses every line.
func WithQuiet(q bool) Option {
	return func(r *Reporter) {
		r.quiet = q
	}
}

// WithExit replaces os.Exit for Fatal (used by tests).
func WithExit(fn func(int)) Option {
	return func(r *Reporter) {
		r.exit = fn
	}
}

// New constructs a Reporter writing to stdout/stderr unless overridden.
// Colors are only emitted when the target writer is a terminal.
func New(opts ...Option) *Reporter {
	r := &Reporter{
		out:  os.Stdout,
		err:  os.Stderr,
		exit: os.Exit,
	}
	for _, o := range opts {
		o(r)
	}
	outR := lipgloss.NewRenderer(r.out)
	errR := lipgloss.NewRenderer(r.err)
	r.warn = outR.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	r.info = outR.NewStyle().Foreground(lipgloss.Color("#22D3EE"))
	r.fault = errR.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	return r
}

// Quiet reports whether output is suppressed.
func (r *Reporter) Quiet() bool {
	return r.quiet
}

// Out is the normal stream, for callers that stream large listings.
// It returns io.Discard when quiet.
func (r *Reporter) Out() io.Writer {
	if r.quiet {
		return io.Discard
	}
	return r.out
}

// Write prints text with no trailing newline.
func (r *Reporter) Write(text string) {
	r.emit(r.out, text, nil)
}

// Line prints text followed by a newline.
func (r *Reporter) Line(text string) {
	r.emit(r.out, text+"\n", nil)
}

// Linef is Line with formatting.
func (r *Reporter) Linef(format string, args ...any) {
	r.Line(fmt.Sprintf(format, args...))
}

// WarningLine prints text in the warning color.
func (r *Reporter) WarningLine(text string) {
	r.emit(r.out, text+"\n", &r.warn)
}

// InfoLine prints text in the informational color.
func (r *Reporter) InfoLine(text string) {
	r.emit(r.out, text+"\n", &r.info)
}

// ErrorLine prints text on the error stream, prefixed with "Error: " unless
// it already starts with "Error:".
func (r *Reporter) ErrorLine(text string) {
	if !strings.HasPrefix(text, strings.TrimSpace(errorPrefix)) {
		text = errorPrefix + text
	}
	r.emit(r.err, text+"\n", &r.fault)
}

// Fatal prints msg as an error line and terminates with code. A zero code is
// promoted to 1 so Fatal never reports success.
func (r *Reporter) Fatal(code int, msg string) {
	if code == 0 {
		code = 1
	}
	if msg != "" {
		r.ErrorLine(msg)
	}
	r.exit(code)
}

func (r *Reporter) emit(w io.Writer, text string, style *lipgloss.Style) {
	if r.quiet {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if style != nil {
		text = renderLines(*style, text)
	}
	_, _ = io.WriteString(w, text)
}

// renderLines styles each line separately so lipgloss does not pad
// multi-line text to a common width.
func renderLines(st lipgloss.Style, text string) string {
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = st.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}
