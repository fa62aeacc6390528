package field

import (
	"errors"
	"fmt"
)

// State is the edit state of a field.
type State int

const (
	// StateIdle shows the last committed value.
	StateIdle State = iota
	// StateEditing means the field is focused and its value may diverge from
	// the previous value.
	StateEditing
	// StateCommitting means a submit was requested and the field waits for
	// the attempt to complete.
	StateCommitting
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateEditing:
		return "editing"
	case StateCommitting:
		return "committing"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// ErrInvalidTransition matches every *TransitionError.
var ErrInvalidTransition = errors.New("field: invalid state transition")

// TransitionError reports a transition the edit state machine does not allow.
type TransitionError struct {
	Path string
	From State
	To   State
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("field %s: invalid transition %s -> %s", e.Path, e.From, e.To)
}

func (e *TransitionError) Is(target error) bool { return target == ErrInvalidTransition }

// transitions lists the moves user actions may cause. Committing fields may
// be refocused or committed again; the form folds repeated requests. Leaving
// StateCommitting for StateIdle only happens when the attempt completes.
var transitions = map[State][]State{
	StateIdle:       {StateEditing, StateCommitting, StateIdle},
	StateEditing:    {StateEditing, StateCommitting, StateIdle},
	StateCommitting: {StateCommitting, StateEditing},
}

func canTransition(from, to State) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}
