package httpbatch

import (
	"time"

	"github.com/bft-labs/httpbatch/internal/app"
)

// Trigger names the condition that caused a flush.
type Trigger = app.Trigger

// Flush triggers.
const (
	TriggerSize  = app.TriggerSize
	TriggerIdle  = app.TriggerIdle
	TriggerAge   = app.TriggerAge
	TriggerDrain = app.TriggerDrain
)

// EventHandler receives notifications about handler activity.
// Methods are called synchronously from the worker goroutine, except
// OnDrop which runs on the producing goroutine and OnStateChange which runs
// on whichever goroutine changed the state. Implementations must not block.
type EventHandler interface {
	OnStateChange(event StateChangeEvent)
	OnFlush(event FlushEvent)
	OnDrop(event DropEvent)
}

// BaseEventHandler implements EventHandler with no-op methods.
// Embed it to override only the callbacks you need.
type BaseEventHandler struct{}

func (BaseEventHandler) OnStateChange(StateChangeEvent) {}
func (BaseEventHandler) OnFlush(FlushEvent)             {}
func (BaseEventHandler) OnDrop(DropEvent)               {}

// StateChangeEvent is emitted on every lifecycle transition.
type StateChangeEvent struct {
	Previous State
	Current  State
	Reason   string
}

// FlushEvent is emitted once per flush, successful or not.
type FlushEvent struct {
	// BatchID uniquely identifies the batch.
	BatchID string
	Trigger Trigger
	Bytes   int
	Events  int

	// Attempts is the number of requests made. 0 means the batch was not
	// sent because the handler was shutting down.
	Attempts int

	// StatusCode is the HTTP status of the last attempt, 0 if none was received.
	StatusCode int

	// Err is nil when the endpoint answered 2xx.
	Err error

	Duration time.Duration

	// Opaques holds the opaque values given to ProduceWithOpaque, in order.
	Opaques []any
}

// DropEvent is emitted when an event is evicted from a full queue.
type DropEvent struct {
	Bytes  int
	Opaque any
	Reason string
}

// eventEmitterWrapper adapts EventHandlers to the internal emitter interfaces.
type eventEmitterWrapper struct {
	handlers []EventHandler
}

func (e *eventEmitterWrapper) OnStateChange(previous, current app.State, reason string) {
	event := StateChangeEvent{
		Previous: convertState(previous),
		Current:  convertState(current),
		Reason:   reason,
	}
	for _, h := range e.handlers {
		h.OnStateChange(event)
	}
}

func (e *eventEmitterWrapper) OnFlush(result app.FlushResult) {
	if len(e.handlers) == 0 {
		return
	}
	event := FlushEvent{
		BatchID:    result.BatchID,
		Trigger:    result.Trigger,
		Bytes:      result.Bytes,
		Events:     result.Events,
		Attempts:   result.Attempts,
		StatusCode: result.StatusCode,
		Err:        result.Err,
		Duration:   result.Duration,
		Opaques:    result.Opaques,
	}
	for _, h := range e.handlers {
		h.OnFlush(event)
	}
}

func (e *eventEmitterWrapper) OnDrop(result app.DropResult) {
	event := DropEvent{
		Bytes:  result.Bytes,
		Opaque: result.Opaque,
		Reason: result.Reason,
	}
	for _, h := range e.handlers {
		h.OnDrop(event)
	}
}
