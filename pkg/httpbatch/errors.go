package httpbatch

import "github.com/bft-labs/httpbatch/internal/domain"

// Errors returned by the Handler. Check them with errors.Is.
var (
	ErrInvalidConfig   = domain.ErrInvalidConfig
	ErrInvalidEndpoint = domain.ErrInvalidEndpoint
	ErrAlreadyRunning  = domain.ErrAlreadyRunning
	ErrNotRunning      = domain.ErrNotRunning
	ErrWorkerExited    = domain.ErrWorkerExited
	ErrQueueFull       = domain.ErrQueueFull
	ErrQueueClosed     = domain.ErrQueueClosed
	ErrShutdownTimeout = domain.ErrShutdownTimeout
	ErrWorkerCrashed   = domain.ErrWorkerCrashed
)

// DispatchError is the error reported for a failed flush. StatusCode is 0
// for transport failures.
type DispatchError = domain.DispatchError
