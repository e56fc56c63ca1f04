package httpbatch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/bft-labs/httpbatch/internal/app"
	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/ports"
	"github.com/bft-labs/httpbatch/internal/queue"
	"github.com/bft-labs/httpbatch/pkg/sender"
)

// Stats is a point-in-time copy of the handler counters.
type Stats = app.Snapshot

// Handler batches produced events and POSTs them to one endpoint.
// Use New() to create an instance, then Run() to start the worker.
type Handler struct {
	config    Config
	endpoint  domain.Endpoint
	logger    ports.Logger
	lifecycle *app.Lifecycle
	emitter   *eventEmitterWrapper
	sender    ports.BatchSender
	stats     *app.Stats

	queue     atomic.Pointer[queue.Queue]
	exited    atomic.Bool
	workerErr atomic.Pointer[error]

	mu sync.Mutex
}

// New creates a Handler with the given configuration.
// The handler is created in StateCreated; call Run() to start dispatching.
// Returns an error wrapping ErrInvalidConfig or ErrInvalidEndpoint if the
// configuration is invalid.
func New(cfg Config, opts ...Option) (*Handler, error) {
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	endpoint, err := domain.ParseEndpoint(cfg.URL)
	if err != nil {
		return nil, err
	}

	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	emitter := &eventEmitterWrapper{handlers: o.eventHandlers}

	s := o.sender
	if s == nil {
		client := o.httpClient
		if client == nil {
			client = sender.NewHTTPClient(sender.ClientConfig{
				Timeout:             cfg.HTTPTimeout,
				ConnectTimeout:      cfg.ConnectTimeout,
				MaxIdleConnsPerHost: cfg.MaxConnsPerHost,
				Insecure:            cfg.Insecure,
			})
		}
		s = sender.NewHTTPSender(client, sender.Options{
			ContentType: cfg.ContentType,
			Mode:        cfg.Mode,
			Verbose:     cfg.Verbose,
		}, o.logger)
	}

	return &Handler{
		config:    cfg,
		endpoint:  endpoint,
		logger:    o.logger,
		lifecycle: app.NewLifecycle(o.logger, emitter),
		emitter:   emitter,
		sender:    s,
		stats:     &app.Stats{},
	}, nil
}

// Run starts the worker goroutine and returns immediately.
// Run may be called once; later calls return ErrAlreadyRunning.
func (h *Handler) Run() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.lifecycle.CanRun() {
		return domain.ErrAlreadyRunning
	}

	q := queue.New(queue.Options{
		Limit:  h.config.QueueLimit,
		Policy: h.config.FullPolicy,
		OnDrop: h.onQueueDrop,
	})
	h.queue.Store(q)

	var limiter *rate.Limiter
	if h.config.MaxFlushRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(h.config.MaxFlushRate), 1)
	}

	worker := app.NewWorker(app.WorkerConfig{
		Capacity:    h.config.BatchBytes,
		IdleTimeout: h.config.IdleTimeout,
		MaxBatchAge: h.config.MaxBatchAge,
		Endpoint:    h.endpoint,
		Retry:       h.config.Retry,
		Limiter:     limiter,
	}, q, h.sender, h.logger, h.emitter, h.stats)

	ctx, cancel := context.WithCancel(context.Background())
	h.lifecycle.SetCancel(cancel)

	if err := h.lifecycle.TransitionTo(app.StateRunning, "Run() called"); err != nil {
		cancel()
		return err
	}

	h.logger.Info("handler running",
		ports.String("endpoint", h.endpoint.String()),
		ports.Int("batch_bytes", h.config.BatchBytes),
		ports.Duration("idle_timeout", h.config.IdleTimeout),
		ports.Int("queue_limit", h.config.QueueLimit),
	)

	h.lifecycle.AddWorker()
	go func() {
		defer h.lifecycle.WorkerDone()

		err := worker.Run(ctx)
		h.exited.Store(true)
		// Release producers blocked on a full queue nobody drains anymore.
		q.Close()
		if err != nil {
			h.workerErr.Store(&err)
			_ = h.lifecycle.TransitionTo(app.StateCrashed, err.Error())
		}
	}()

	return nil
}

// Produce copies data into a new event and enqueues it.
// It is safe for concurrent use.
func (h *Handler) Produce(data []byte) error {
	return h.ProduceWithOpaque(data, nil)
}

// ProduceWithOpaque is Produce with a caller value that is handed back in
// the FlushEvent of the batch carrying the event.
//
// Returns ErrNotRunning unless the handler is running, ErrWorkerExited if the
// worker stopped, and ErrQueueFull when the queue is full under Reject.
func (h *Handler) ProduceWithOpaque(data []byte, opaque any) error {
	if err := h.unavailable(); err != nil {
		return err
	}

	q := h.queue.Load()
	if err := q.Send(domain.NewEvent(data, opaque)); err != nil {
		if errors.Is(err, domain.ErrQueueClosed) {
			if err := h.unavailable(); err != nil {
				return err
			}
			// Closed while still Running: only a crashing worker does that.
			return domain.ErrWorkerExited
		}
		return err
	}
	h.stats.Enqueued.Add(1)
	return nil
}

// unavailable returns why Produce cannot enqueue, or nil if it can.
// ErrWorkerExited is reserved for a worker that died; a handler that was
// terminated reports ErrNotRunning.
func (h *Handler) unavailable() error {
	if !h.lifecycle.CanProduce() {
		if h.lifecycle.State() == app.StateCrashed {
			return domain.ErrWorkerExited
		}
		return domain.ErrNotRunning
	}
	// Running, but the worker goroutine may be exiting before the state
	// reaches Crashed.
	if h.exited.Load() {
		return domain.ErrWorkerExited
	}
	return nil
}

// Terminate stops accepting events, waits for the worker to flush what is
// queued and returns once it has exited. It is safe to call from any
// goroutine.
//
// Returns ErrNotRunning if the handler is not running, ErrShutdownTimeout if
// the drain did not finish within Config.ShutdownTimeout (the in-flight
// request is then canceled) and an error wrapping ErrWorkerCrashed if the
// worker died.
func (h *Handler) Terminate() error {
	h.mu.Lock()

	if !h.lifecycle.CanTerminate() {
		h.mu.Unlock()
		return domain.ErrNotRunning
	}
	if err := h.lifecycle.TransitionTo(app.StateTerminating, "Terminate() called"); err != nil {
		h.mu.Unlock()
		return err
	}
	q := h.queue.Load()

	h.mu.Unlock()

	q.Close()

	if err := h.lifecycle.WaitWithTimeout(h.config.ShutdownTimeout); err != nil {
		h.lifecycle.Cancel()
		_ = h.lifecycle.TransitionTo(app.StateCrashed, "shutdown timeout")
		return err
	}
	h.lifecycle.Cancel()

	// The worker may have crashed while draining.
	if h.lifecycle.State() == app.StateCrashed {
		_ = h.lifecycle.TransitionTo(app.StateTerminating, "collecting crashed worker")
	}
	_ = h.lifecycle.TransitionTo(app.StateTerminated, "drained")

	if errPtr := h.workerErr.Load(); errPtr != nil {
		return *errPtr
	}

	h.logger.Info("handler terminated",
		ports.Int64("flushes", h.stats.Flushes.Load()),
		ports.Int64("failed_flushes", h.stats.FailedFlushes.Load()),
	)
	return nil
}

// Status returns the current lifecycle state.
// Safe to call concurrently from any goroutine.
func (h *Handler) Status() State {
	return convertState(h.lifecycle.State())
}

// Endpoint returns the destination URL.
func (h *Handler) Endpoint() string {
	return h.endpoint.String()
}

// Stats returns a snapshot of the handler counters.
func (h *Handler) Stats() Stats {
	queued := 0
	if q := h.queue.Load(); q != nil {
		queued = q.Len()
	}
	return h.stats.Snapshot(queued)
}

func (h *Handler) onQueueDrop(e domain.Event) {
	h.stats.Dropped.Add(1)
	h.logger.Warn("queue full, dropped oldest event", ports.Int("bytes", e.Len()))
	h.emitter.OnDrop(app.DropResult{
		Events: 1,
		Bytes:  e.Len(),
		Opaque: e.Opaque,
		Reason: "queue full",
	})
}
