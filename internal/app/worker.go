package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/ports"
	"github.com/bft-labs/httpbatch/internal/queue"
)

// WorkerConfig contains configuration for the batching worker.
type WorkerConfig struct {
	// Capacity is the maximum batch size in bytes.
	Capacity int

	// IdleTimeout is how long a non-empty batch may wait for the next event.
	IdleTimeout time.Duration

	// MaxBatchAge bounds how long the oldest event may stay pending even
	// while events keep arriving. 0 disables it.
	MaxBatchAge time.Duration

	Endpoint domain.Endpoint
	Retry    RetryConfig

	// Limiter, when set, is awaited before every flush.
	Limiter *rate.Limiter
}

// Worker is the single consumer of the dispatch queue. It accumulates
// events into a batch and flushes it when the next event does not fit,
// when the idle timeout or max batch age elapses, and when the queue is
// closed.
type Worker struct {
	config  WorkerConfig
	queue   *queue.Queue
	sender  ports.BatchSender
	logger  ports.Logger
	emitter Emitter
	stats   *Stats

	batch      *domain.Batch
	batchStart time.Time

	// inflight is the flush being dispatched, until its result is emitted.
	inflight *FlushResult
	// pending is an accepted event waiting for a size flush to make room.
	pending *domain.Event
}

// NewWorker creates a worker. emitter and stats may be nil.
func NewWorker(
	config WorkerConfig,
	q *queue.Queue,
	sender ports.BatchSender,
	logger ports.Logger,
	emitter Emitter,
	stats *Stats,
) *Worker {
	if stats == nil {
		stats = &Stats{}
	}
	return &Worker{
		config:  config,
		queue:   q,
		sender:  sender,
		logger:  logger,
		emitter: emitter,
		stats:   stats,
		batch:   domain.NewBatch(config.Capacity),
	}
}

// Run consumes the queue until it is closed and drained. It returns nil
// after the final flush, or an error wrapping domain.ErrWorkerCrashed if
// the loop panicked. After a panic the queue is closed and every event not
// yet reported is reported as failed.
//
// Canceling ctx does not stop the loop; it aborts in-flight requests and
// retries so the remaining events are drained quickly.
func (w *Worker) Run(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker panic", ports.Any("panic", r))
			err = fmt.Errorf("%w: %v", domain.ErrWorkerCrashed, r)
			w.abandon(err)
		}
	}()

	for {
		timeout, trigger := w.deadline()
		if timeout < 0 {
			w.flush(ctx, trigger)
			continue
		}

		event, err := w.queue.Next(timeout)
		switch {
		case err == nil:
			w.accept(ctx, event)
		case errors.Is(err, queue.ErrTimeout):
			w.flush(ctx, trigger)
		case errors.Is(err, domain.ErrQueueClosed):
			if !w.batch.Empty() {
				w.flush(ctx, TriggerDrain)
			}
			w.logger.Debug("worker drained")
			return nil
		default:
			return err
		}
	}
}

// deadline returns how long to wait for the next event and the trigger to
// use if the wait times out. 0 means wait without a deadline. A negative
// duration means the batch is already overdue.
func (w *Worker) deadline() (time.Duration, Trigger) {
	if w.batch.Empty() {
		return 0, ""
	}

	timeout, trigger := w.config.IdleTimeout, TriggerIdle
	if w.config.MaxBatchAge > 0 {
		remaining := w.config.MaxBatchAge - time.Since(w.batchStart)
		if remaining <= 0 {
			return -1, TriggerAge
		}
		if timeout <= 0 || remaining < timeout {
			timeout, trigger = remaining, TriggerAge
		}
	}
	return timeout, trigger
}

// accept adds one event to the batch, flushing first when it does not fit.
func (w *Worker) accept(ctx context.Context, event domain.Event) {
	if w.append(event) {
		return
	}

	if !w.batch.Empty() {
		w.pending = &event
		w.flush(ctx, TriggerSize)
		w.pending = nil
		if w.append(event) {
			return
		}
	}

	// Larger than the capacity: ship it alone.
	w.batch.ForceAppend(event)
	w.flush(ctx, TriggerSize)
}

func (w *Worker) append(event domain.Event) bool {
	wasEmpty := w.batch.Empty()
	if !w.batch.AppendEvent(event) {
		return false
	}
	if wasEmpty {
		w.batchStart = time.Now()
	}
	return true
}

// flush dispatches the current batch and reports the outcome. Failures are
// logged and reported; they never stop the worker.
func (w *Worker) flush(ctx context.Context, trigger Trigger) {
	events := w.batch.Count()
	payload, opaques := w.batch.Drain()

	result := FlushResult{
		BatchID: uuid.NewString(),
		Trigger: trigger,
		Bytes:   len(payload),
		Events:  events,
		Opaques: opaques,
	}

	w.inflight = &result
	start := time.Now()
	result.StatusCode, result.Attempts, result.Err = w.dispatch(ctx, payload)
	result.Duration = time.Since(start)
	w.inflight = nil

	w.stats.Flushes.Add(1)
	if result.Err != nil {
		w.stats.FailedFlushes.Add(1)
		w.logger.Error("flush failed",
			ports.Err(result.Err),
			ports.String("batch_id", result.BatchID),
			ports.String("trigger", string(trigger)),
			ports.Int("events", events),
			ports.Int("bytes", result.Bytes),
			ports.Int("attempts", result.Attempts),
		)
	} else {
		w.stats.BytesSent.Add(int64(result.Bytes))
		w.logger.Debug("sent batch",
			ports.String("batch_id", result.BatchID),
			ports.String("trigger", string(trigger)),
			ports.Int("events", events),
			ports.Int("bytes", result.Bytes),
			ports.Int("status", result.StatusCode),
			ports.Duration("duration", result.Duration),
		)
	}

	if w.emitter != nil {
		w.emitter.OnFlush(result)
	}
}

// dispatch sends payload, retrying according to the retry config.
// It returns the last HTTP status, the number of attempts and the final error.
func (w *Worker) dispatch(ctx context.Context, payload []byte) (int, int, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, err
	}
	if w.config.Limiter != nil {
		if err := w.config.Limiter.Wait(ctx); err != nil {
			return 0, 0, err
		}
	}

	if !w.config.Retry.Enabled {
		status, err := w.sender.Send(ctx, w.config.Endpoint, payload)
		return status, 1, err
	}

	var (
		status   int
		attempts int
	)
	operation := func() error {
		attempts++
		var err error
		status, err = w.sender.Send(ctx, w.config.Endpoint, payload)
		if err == nil {
			return nil
		}
		var dispatchErr *domain.DispatchError
		if errors.As(err, &dispatchErr) && !dispatchErr.Retryable() {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		w.logger.Warn("flush attempt failed, retrying",
			ports.Err(err),
			ports.Int("attempt", attempts),
			ports.Duration("backoff", wait),
		)
	}

	err := backoff.RetryNotify(operation, w.config.Retry.newBackOff(ctx), notify)
	return status, attempts, err
}

// abandon reports the events a crashed worker still holds: the batch being
// dispatched, the pending batch and whatever is left in the queue. The
// queue is closed first so no event can slip in unreported.
func (w *Worker) abandon(cause error) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("reporting abandoned events panicked", ports.Any("panic", r))
		}
	}()

	w.queue.Close()

	if w.inflight != nil {
		result := *w.inflight
		w.inflight = nil
		result.Err = cause
		w.fail(result)
	}

	if w.pending != nil {
		w.batch.ForceAppend(*w.pending)
		w.pending = nil
	}
	for {
		event, err := w.queue.Next(0)
		if err != nil {
			break
		}
		w.batch.ForceAppend(event)
	}
	if w.batch.Empty() {
		return
	}

	events := w.batch.Count()
	payload, opaques := w.batch.Drain()
	w.fail(FlushResult{
		BatchID: uuid.NewString(),
		Trigger: TriggerDrain,
		Bytes:   len(payload),
		Events:  events,
		Opaques: opaques,
		Err:     cause,
	})
}

// fail records and emits a flush that was never completed.
func (w *Worker) fail(result FlushResult) {
	w.stats.Flushes.Add(1)
	w.stats.FailedFlushes.Add(1)
	w.logger.Error("events abandoned",
		ports.Err(result.Err),
		ports.String("batch_id", result.BatchID),
		ports.Int("events", result.Events),
		ports.Int("bytes", result.Bytes),
	)
	if w.emitter != nil {
		w.emitter.OnFlush(result)
	}
}
