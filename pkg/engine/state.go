package engine

import "fmt"

// State is the phase of the send in progress on a Session.
type State int32

const (
	StateIdle State = iota
	StateBuildingRequest
	StateAwaitingFirstFragment
	StateDraining
	StateSettled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuildingRequest:
		return "building-request"
	case StateAwaitingFirstFragment:
		return "awaiting-first-fragment"
	case StateDraining:
		return "draining"
	case StateSettled:
		return "settled"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Outcome is how a Send ended.
type Outcome int

const (
	// OutcomeSkipped means a precondition failed and nothing changed.
	OutcomeSkipped Outcome = iota
	OutcomeSucceeded
	OutcomeFailed
	OutcomeCanceled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSkipped:
		return "skipped"
	case OutcomeSucceeded:
		return "succeeded"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}
