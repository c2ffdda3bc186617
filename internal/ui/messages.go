package ui

import "time"

// tickMsg asks the model to sample the tracker again.
type tickMsg time.Time

// stopMsg ends the program once the phase body has returned.
type stopMsg struct{}
