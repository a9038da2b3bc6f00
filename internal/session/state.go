package session

// State is the lifecycle state of a session.
type State string

const (
	StateRunning    State = "running"
	StateSubmitting State = "submitting"

	// Terminal states. No operation mutates a session once terminal.
	StateSubmitted     State = "submitted"
	StateAutoSubmitted State = "auto_submitted"
	StateAbandoned     State = "abandoned"
)

// Terminal reports whether no further mutation is possible.
func (s State) Terminal() bool {
	switch s {
	case StateSubmitted, StateAutoSubmitted, StateAbandoned:
		return true
	}
	return false
}

// SubmitReason distinguishes how a session reached submission.
type SubmitReason string

const (
	ReasonCompleted SubmitReason = "completed"
	ReasonTimeout   SubmitReason = "time_out"
	ReasonAbandoned SubmitReason = "abandoned"
)

// terminalState maps a submit reason to the terminal state it produces.
func (r SubmitReason) terminalState() State {
	switch r {
	case ReasonTimeout:
		return StateAutoSubmitted
	case ReasonAbandoned:
		return StateAbandoned
	default:
		return StateSubmitted
	}
}
