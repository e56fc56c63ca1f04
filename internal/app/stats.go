package app

import "sync/atomic"

// Stats holds counters shared between producers and the worker.
type Stats struct {
	Enqueued      atomic.Int64
	Dropped       atomic.Int64
	Flushes       atomic.Int64
	FailedFlushes atomic.Int64
	BytesSent     atomic.Int64
}

// Snapshot is a point-in-time copy of Stats.
type Snapshot struct {
	Enqueued      int64
	Dropped       int64
	Flushes       int64
	FailedFlushes int64
	BytesSent     int64
	Queued        int
}

// Snapshot copies the counters. queued is the current queue length.
func (s *Stats) Snapshot(queued int) Snapshot {
	return Snapshot{
		Enqueued:      s.Enqueued.Load(),
		Dropped:       s.Dropped.Load(),
		Flushes:       s.Flushes.Load(),
		FailedFlushes: s.FailedFlushes.Load(),
		BytesSent:     s.BytesSent.Load(),
		Queued:        queued,
	}
}
