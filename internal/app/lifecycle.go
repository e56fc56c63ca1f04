package app

import (
	"context"
	"sync"
	"time"

	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/ports"
)

// ShutdownTimeout is the default maximum time Terminate waits for the worker.
const ShutdownTimeout = 30 * time.Second

// State represents the lifecycle state of a handler.
type State int

const (
	StateCreated State = iota
	StateRunning
	StateTerminating
	StateTerminated
	StateCrashed
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateRunning:
		return "Running"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	case StateCrashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// Lifecycle manages the state machine for a handler and tracks its worker.
type Lifecycle struct {
	mu           sync.RWMutex
	state        State
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	logger       ports.Logger
	eventEmitter StateEmitter
}

// StateEmitter is called when lifecycle state changes.
type StateEmitter interface {
	OnStateChange(previous, current State, reason string)
}

// NewLifecycle creates a new lifecycle manager in StateCreated.
func NewLifecycle(logger ports.Logger, emitter StateEmitter) *Lifecycle {
	return &Lifecycle{
		state:        StateCreated,
		logger:       logger,
		eventEmitter: emitter,
	}
}

// State returns the current lifecycle state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// TransitionTo attempts to transition to a new state.
// Returns an error if the transition is not valid.
//
// Valid transitions:
//   - Created -> Running
//   - Running -> Terminating, Crashed
//   - Terminating -> Terminated, Crashed
//   - Crashed -> Terminating
func (l *Lifecycle) TransitionTo(newState State, reason string) error {
	l.mu.Lock()
	oldState := l.state

	switch oldState {
	case StateCreated:
		if newState != StateRunning {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	case StateRunning:
		if newState != StateTerminating && newState != StateCrashed {
			l.mu.Unlock()
			return domain.ErrAlreadyRunning
		}
	case StateTerminating:
		if newState != StateTerminated && newState != StateCrashed {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	case StateCrashed:
		if newState != StateTerminating {
			l.mu.Unlock()
			return domain.ErrNotRunning
		}
	case StateTerminated:
		l.mu.Unlock()
		return domain.ErrNotRunning
	}

	l.state = newState
	l.mu.Unlock()

	// Emit event outside of lock
	if l.eventEmitter != nil {
		l.eventEmitter.OnStateChange(oldState, newState, reason)
	}

	l.logger.Debug("state transition",
		ports.String("from", oldState.String()),
		ports.String("to", newState.String()),
		ports.String("reason", reason),
	)

	return nil
}

// CanRun returns true if Run() can be called.
func (l *Lifecycle) CanRun() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateCreated
}

// CanProduce returns true while events are accepted.
func (l *Lifecycle) CanProduce() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning
}

// CanTerminate returns true if Terminate() can be called.
func (l *Lifecycle) CanTerminate() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state == StateRunning || l.state == StateCrashed
}

// SetCancel stores the cancel function of the worker context.
func (l *Lifecycle) SetCancel(cancel context.CancelFunc) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.cancel = cancel
}

// Cancel aborts the worker context, interrupting an in-flight request.
func (l *Lifecycle) Cancel() {
	l.mu.Lock()
	cancel := l.cancel
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// AddWorker increments the worker count.
func (l *Lifecycle) AddWorker() {
	l.wg.Add(1)
}

// WorkerDone decrements the worker count.
func (l *Lifecycle) WorkerDone() {
	l.wg.Done()
}

// WaitWithTimeout waits for the worker to finish.
// A timeout <= 0 waits indefinitely.
// Returns ErrShutdownTimeout if the timeout expires.
func (l *Lifecycle) WaitWithTimeout(timeout time.Duration) error {
	done := make(chan struct{})
	go func() {
		l.wg.Wait()
		close(done)
	}()

	if timeout <= 0 {
		<-done
		return nil
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		return nil
	case <-timer.C:
		l.logger.Warn("shutdown timeout, abandoning drain",
			ports.Duration("timeout", timeout),
		)
		return domain.ErrShutdownTimeout
	}
}
