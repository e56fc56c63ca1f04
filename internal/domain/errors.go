package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Domain errors represent error conditions in the httpbatch domain.
// These errors are returned by the public API and can be checked with errors.Is.
var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("httpbatch: invalid configuration")

	// ErrInvalidEndpoint is returned when the endpoint URL cannot be parsed
	// or lacks a scheme or host.
	ErrInvalidEndpoint = errors.New("httpbatch: invalid endpoint")

	// ErrAlreadyRunning is returned when Run() is called on a handler that
	// has already been started.
	ErrAlreadyRunning = errors.New("httpbatch: already running")

	// ErrNotRunning is returned when Produce() or Terminate() is called on a
	// handler that is not running.
	ErrNotRunning = errors.New("httpbatch: not running")

	// ErrWorkerExited is returned when Produce() is called after the worker
	// goroutine has exited.
	ErrWorkerExited = errors.New("httpbatch: worker exited")

	// ErrQueueFull is returned when the dispatch queue is at its limit and
	// the full policy rejects new events.
	ErrQueueFull = errors.New("httpbatch: queue full")

	// ErrQueueClosed is returned when sending on a closed dispatch queue.
	ErrQueueClosed = errors.New("httpbatch: queue closed")

	// ErrShutdownTimeout is returned when the worker does not finish draining
	// within the shutdown timeout.
	ErrShutdownTimeout = errors.New("httpbatch: shutdown timeout")

	// ErrWorkerCrashed is returned by Terminate when the worker stopped
	// abnormally.
	ErrWorkerCrashed = errors.New("httpbatch: worker crashed")
)

// DispatchError describes a failed flush: either a transport failure
// (StatusCode == 0) or a non-2xx response.
type DispatchError struct {
	StatusCode int
	Err        error
}

func (e *DispatchError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("httpbatch: dispatch failed: %v", e.Err)
	}
	if e.Err == nil {
		return fmt.Sprintf("httpbatch: server returned %d", e.StatusCode)
	}
	return fmt.Sprintf("httpbatch: server returned %d: %v", e.StatusCode, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the request may succeed if sent again.
// Transport failures, 5xx, 408 and 429 are retryable; other 4xx are not.
func (e *DispatchError) Retryable() bool {
	switch {
	case e.StatusCode == 0:
		return true
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}
