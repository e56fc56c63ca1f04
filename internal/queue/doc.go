// Package queue implements the dispatch channel between producers and the
// batching worker.
//
// A [Queue] is an ordered multi-producer, single-consumer FIFO. It is
// unbounded by default; with a limit, a [FullPolicy] decides what happens
// to a Send that finds the queue full:
//
//   - [Block]: the producer waits until the worker makes room.
//   - [Reject]: Send returns domain.ErrQueueFull.
//   - [DropOldest]: the oldest queued event is evicted and handed to the
//     drop callback; the new event is accepted.
//
// Close is the only termination signal. Events queued before Close are
// still delivered by Next; after they are exhausted Next returns
// domain.ErrQueueClosed.
package queue
