package hostapi

import (
	"errors"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// Status codes returned by the host API. 0 is success.
const (
	StatusOK = iota
	StatusInvalidHandle
	StatusInvalidArgument
	StatusNotRunning
	StatusAlreadyRunning
	StatusWorkerExited
	StatusQueueFull
	StatusShutdownTimeout
	StatusDispatchFailed
	StatusError
)

// statusFor maps an error to its status code.
func statusFor(err error) int {
	var dispatchErr *httpbatch.DispatchError
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, httpbatch.ErrInvalidConfig), errors.Is(err, httpbatch.ErrInvalidEndpoint):
		return StatusInvalidArgument
	case errors.Is(err, httpbatch.ErrNotRunning), errors.Is(err, httpbatch.ErrQueueClosed):
		return StatusNotRunning
	case errors.Is(err, httpbatch.ErrAlreadyRunning):
		return StatusAlreadyRunning
	case errors.Is(err, httpbatch.ErrWorkerExited), errors.Is(err, httpbatch.ErrWorkerCrashed):
		return StatusWorkerExited
	case errors.Is(err, httpbatch.ErrQueueFull):
		return StatusQueueFull
	case errors.Is(err, httpbatch.ErrShutdownTimeout):
		return StatusShutdownTimeout
	case errors.As(err, &dispatchErr):
		return StatusDispatchFailed
	default:
		return StatusError
	}
}

// writeErr copies msg into errbuf, truncating it so a terminating NUL fits.
// An empty errbuf is left alone.
func writeErr(errbuf []byte, msg string) {
	if len(errbuf) == 0 {
		return
	}
	n := copy(errbuf[:len(errbuf)-1], msg)
	errbuf[n] = 0
}
