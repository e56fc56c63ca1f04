// Package httpbatch provides an embeddable event-batching HTTP dispatcher.
//
// Producers push discrete byte-string events; a single background worker
// accumulates them into batches and POSTs each batch to one endpoint.
// Producers never wait on the network.
//
// # Basic Usage
//
//	cfg := httpbatch.DefaultConfig()
//	cfg.URL = "http://collector.local:8080/ingest"
//
//	h, err := httpbatch.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Run(); err != nil {
//	    log.Fatal(err)
//	}
//
//	_ = h.Produce([]byte(`{"event":"login"}`))
//
//	// Flushes what is queued and waits for the worker to exit.
//	if err := h.Terminate(); err != nil {
//	    log.Printf("shutdown error: %v", err)
//	}
//
// # Batching
//
// Events are appended to the current batch while it stays within
// [Config.BatchBytes]. An event that would overflow it flushes the batch
// first and starts the next one; events are never split. An event larger
// than the capacity is sent alone. A non-empty batch is also flushed when no
// event arrives within [Config.IdleTimeout], when its oldest event reaches
// [Config.MaxBatchAge] and when the handler terminates.
//
// Batches are sent one at a time in the order they were formed.
//
// # Backpressure
//
// The queue between producers and the worker is unbounded by default. Set
// [Config.QueueLimit] to bound it and [Config.FullPolicy] to choose between
// [Block], [Reject] and [DropOldest].
//
// # Event Handling
//
// Implement [EventHandler] (embedding [BaseEventHandler]) and pass it via
// [WithEventHandler] to observe every flush, drop and state change.
// Callbacks run synchronously on the worker goroutine and should return
// quickly.
//
// # Lifecycle States
//
// A Handler moves through [StateCreated], [StateRunning], [StateTerminating]
// and [StateTerminated]. [StateCrashed] means the worker stopped abnormally
// or did not drain within [Config.ShutdownTimeout].
package httpbatch
