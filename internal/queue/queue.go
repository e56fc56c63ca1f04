package queue

import (
	"errors"
	"sync"
	"time"

	"github.com/bft-labs/httpbatch/internal/domain"
)

// ErrTimeout is returned by Next when no event arrived within the timeout.
var ErrTimeout = errors.New("queue: timeout")

// Options configures a Queue.
type Options struct {
	// Limit is the maximum number of queued events. 0 means unbounded.
	Limit int

	// Policy applies when Limit is reached.
	Policy FullPolicy

	// OnDrop is called with each event evicted under DropOldest.
	// It runs on the producer goroutine with the queue lock released.
	OnDrop func(domain.Event)
}

// Queue is the FIFO hand-off between producers and the single worker.
// Send is safe for concurrent use; Next must only be called by one goroutine.
type Queue struct {
	mu     sync.Mutex
	items  []domain.Event
	head   int
	closed bool

	limit  int
	policy FullPolicy
	onDrop func(domain.Event)

	// ready holds a token whenever the consumer may have work.
	ready chan struct{}
	// space wakes producers blocked under the Block policy.
	space *sync.Cond
}

// New creates an empty queue.
func New(opts Options) *Queue {
	q := &Queue{
		limit:  opts.Limit,
		policy: opts.Policy,
		onDrop: opts.OnDrop,
		ready:  make(chan struct{}, 1),
	}
	q.space = sync.NewCond(&q.mu)
	return q
}

// Send enqueues an event. It fails with domain.ErrQueueClosed after Close and
// with domain.ErrQueueFull when the queue is full under the Reject policy.
func (q *Queue) Send(e domain.Event) error {
	q.mu.Lock()

	if q.closed {
		q.mu.Unlock()
		return domain.ErrQueueClosed
	}

	var dropped *domain.Event
	if q.limit > 0 && q.lenLocked() >= q.limit {
		switch q.policy {
		case Reject:
			q.mu.Unlock()
			return domain.ErrQueueFull
		case DropOldest:
			old := q.popLocked()
			dropped = &old
		default:
			for q.lenLocked() >= q.limit && !q.closed {
				q.space.Wait()
			}
			if q.closed {
				q.mu.Unlock()
				return domain.ErrQueueClosed
			}
		}
	}

	q.items = append(q.items, e)
	q.mu.Unlock()

	q.notify()

	if dropped != nil && q.onDrop != nil {
		q.onDrop(*dropped)
	}
	return nil
}

// Next returns the oldest event. It waits at most timeout for one to arrive;
// timeout <= 0 waits until an event arrives or the queue is closed and empty.
// It returns ErrTimeout on timeout and domain.ErrQueueClosed once the queue
// is closed and drained.
func (q *Queue) Next(timeout time.Duration) (domain.Event, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		q.mu.Lock()
		if q.lenLocked() > 0 {
			e := q.popLocked()
			q.mu.Unlock()
			q.space.Signal()
			return e, nil
		}
		if q.closed {
			q.mu.Unlock()
			return domain.Event{}, domain.ErrQueueClosed
		}
		q.mu.Unlock()

		select {
		case <-q.ready:
		case <-deadline:
			return domain.Event{}, ErrTimeout
		}
	}
}

// Close marks the queue closed. Queued events remain readable; blocked
// producers are released with domain.ErrQueueClosed. Close is idempotent.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()

	q.space.Broadcast()
	q.notify()
}

// Len returns the number of queued events.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// Closed returns true once Close has been called.
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue) notify() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}

func (q *Queue) lenLocked() int {
	return len(q.items) - q.head
}

// popLocked removes the head item. The backing array is compacted once the
// consumed prefix dominates it so memory is returned after bursts.
func (q *Queue) popLocked() domain.Event {
	e := q.items[q.head]
	q.items[q.head] = domain.Event{}
	q.head++

	switch {
	case q.head == len(q.items):
		q.items = q.items[:0]
		q.head = 0
	case q.head > 1024 && q.head*2 >= len(q.items):
		n := copy(q.items, q.items[q.head:])
		for i := n; i < len(q.items); i++ {
			q.items[i] = domain.Event{}
		}
		q.items = q.items[:n]
		q.head = 0
	}
	return e
}
