package pipeline

// State is a step of one pipeline run:
//
//	Idle → Opening → Opened → Running → Completed → Saving → Done
//
// Running may end in Cancelled instead, which skips saving. Opening, Running
// and Saving may end in Failed.
type State int

const (
	StateIdle State = iota
	StateOpening
	StateOpened
	StateRunning
	StateCompleted
	StateCancelled
	StateSaving
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateIdle:      "idle",
	StateOpening:   "opening",
	StateOpened:    "opened",
	StateRunning:   "running",
	StateCompleted: "completed",
	StateCancelled: "cancelled",
	StateSaving:    "saving",
	StateDone:      "done",
	StateFailed:    "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is expected.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateCancelled
}
