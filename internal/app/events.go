package app

import "time"

// Trigger names the condition that caused a flush.
type Trigger string

const (
	// TriggerSize means the next event did not fit in the batch.
	TriggerSize Trigger = "size"
	// TriggerIdle means no event arrived within the idle timeout.
	TriggerIdle Trigger = "idle"
	// TriggerAge means the oldest event in the batch reached the max batch age.
	TriggerAge Trigger = "age"
	// TriggerDrain means the queue was closed and the handler is terminating.
	TriggerDrain Trigger = "drain"
)

// FlushResult is the outcome of one flush.
type FlushResult struct {
	BatchID    string
	Trigger    Trigger
	Bytes      int
	Events     int
	Attempts   int
	StatusCode int
	Err        error
	Duration   time.Duration
	Opaques    []any
}

// DropResult describes events discarded before they reached a batch.
type DropResult struct {
	Events int
	Bytes  int
	Opaque any
	Reason string
}

// Emitter receives flush and drop outcomes from the worker.
type Emitter interface {
	OnFlush(result FlushResult)
	OnDrop(result DropResult)
}
