package httpbatch

import "github.com/bft-labs/httpbatch/internal/app"

// State represents the lifecycle state of a Handler.
type State int

const (
	// StateCreated means New succeeded and Run has not been called.
	StateCreated State = iota
	// StateRunning means the worker is consuming events.
	StateRunning
	// StateTerminating means Terminate is draining the queue.
	StateTerminating
	// StateTerminated means the worker has exited after a clean drain.
	StateTerminated
	// StateCrashed means the worker stopped abnormally or the drain timed out.
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	return app.State(s).String()
}

func convertState(s app.State) State {
	switch s {
	case app.StateCreated:
		return StateCreated
	case app.StateRunning:
		return StateRunning
	case app.StateTerminating:
		return StateTerminating
	case app.StateTerminated:
		return StateTerminated
	case app.StateCrashed:
		return StateCrashed
	default:
		return StateCreated
	}
}
