package model

import "time"

// GlobalFlags holds the process-wide switches resolved once at startup from
// flags, environment and the config file. Commands treat it as read-only.
type GlobalFlags struct {
	Quiet      bool // Suppress every console line.
	NoProgress bool // Keep phase text, drop the live bar.
	Dummy      bool // Run everything but never save.

	LogFile          string
	LogLevel         string
	ProgressInterval time.Duration
	ScriptsDir       string
}

// ShowProgress reports whether a live progress renderer may be attached.
// Whether stdout is a terminal is checked separately by the caller.
func (g GlobalFlags) ShowProgress() bool {
	return !g.Quiet && !g.NoProgress
}
