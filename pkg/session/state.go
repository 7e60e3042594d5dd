package session

import (
	"fmt"
	"sync"

	"github.com/sttbench/sttbench/pkg/errorsx"
)

// State is a session's position in its lifecycle.
type State int

const (
	StateUnopened State = iota
	StateConnected
	StateStreaming
	StateFinalizing
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateUnopened:
		return "UNOPENED"
	case StateConnected:
		return "CONNECTED"
	case StateStreaming:
		return "STREAMING"
	case StateFinalizing:
		return "FINALIZING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// InvalidTransitionError reports an operation invoked outside its valid
// session state.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid session transition %s -> %s", e.From, e.To)
}

// Tracker guards a session's state transitions. Vendor implementations
// embed one and consult it before touching the wire.
type Tracker struct {
	mu      sync.RWMutex
	current State
}

func NewTracker() *Tracker {
	return &Tracker{current: StateUnopened}
}

func (t *Tracker) State() State {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.current
}

// validTransitions holds the forward edges of the lifecycle. Closed is
// reachable from every state: failure is an error-terminal transition,
// never a hang.
var validTransitions = map[State][]State{
	StateUnopened:   {StateConnected, StateClosed},
	StateConnected:  {StateStreaming, StateFinalizing, StateClosed},
	StateStreaming:  {StateFinalizing, StateClosed},
	StateFinalizing: {StateClosed},
}

// Transition moves to a new state, failing with an invalid-state error
// on any edge outside the lifecycle.
func (t *Tracker) Transition(to State) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, allowed := range validTransitions[t.current] {
		if allowed == to {
			t.current = to
			return nil
		}
	}
	return errorsx.Wrap(InvalidTransitionError{From: t.current, To: to}, errorsx.ReasonInvalidState)
}

// MarkStreaming records the first audio send. A no-op when already
// streaming; an invalid-state error after finalize or close.
func (t *Tracker) MarkStreaming() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.current {
	case StateConnected:
		t.current = StateStreaming
		return nil
	case StateStreaming:
		return nil
	default:
		return errorsx.Wrap(InvalidTransitionError{From: t.current, To: StateStreaming}, errorsx.ReasonInvalidState)
	}
}

// MarkFinalizing records end-of-audio. Idempotent: finalizing twice is
// allowed, finalizing a closed session is not.
func (t *Tracker) MarkFinalizing() (already bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	switch t.current {
	case StateConnected, StateStreaming:
		t.current = StateFinalizing
		return false, nil
	case StateFinalizing:
		return true, nil
	default:
		return false, errorsx.Wrap(InvalidTransitionError{From: t.current, To: StateFinalizing}, errorsx.ReasonInvalidState)
	}
}

// MarkClosed forces the terminal state. Returns true the first time.
func (t *Tracker) MarkClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current == StateClosed {
		return false
	}
	t.current = StateClosed
	return true
}
