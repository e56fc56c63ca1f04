package hostapi

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
	"github.com/bft-labs/httpbatch/pkg/log"
)

// Handle identifies a handler in a Registry. The zero Handle is never valid.
type Handle uint64

type entry struct {
	mu      sync.Mutex
	config  httpbatch.Config
	handler *httpbatch.Handler
	reports *ReportQueue
}

// Registry maps handles to handlers. The package-level functions use a
// process-wide Registry.
type Registry struct {
	mu      sync.RWMutex
	next    Handle
	entries map[Handle]*entry

	// Logger, when set, is used by handlers that did not enable HTTP_VERBOSE.
	Logger log.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[Handle]*entry)}
}

var defaultRegistry = NewRegistry()

// Create validates url and registers a new handler configured with
// defaults: at most DefaultMaxMessages queued events, and Produce rejects
// events beyond that. It returns 0 and writes the reason to errbuf on failure.
func (r *Registry) Create(url string, errbuf []byte) Handle {
	cfg := httpbatch.DefaultConfig()
	cfg.URL = url
	cfg.QueueLimit = DefaultMaxMessages
	cfg.FullPolicy = httpbatch.Reject
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		writeErr(errbuf, err.Error())
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.next++
	h := r.next
	r.entries[h] = &entry{config: cfg, reports: NewReportQueue()}
	return h
}

// SetOpt sets a configuration option. Options can only be changed before Run.
func (r *Registry) SetOpt(h Handle, key, value string, errbuf []byte) int {
	e := r.lookup(h)
	if e == nil {
		writeErr(errbuf, fmt.Sprintf("invalid handle %d", h))
		return StatusInvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handler != nil {
		writeErr(errbuf, "options cannot be changed after run")
		return StatusAlreadyRunning
	}

	cfg := e.config
	if err := applyOpt(&cfg, key, value); err != nil {
		writeErr(errbuf, err.Error())
		return StatusInvalidArgument
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		writeErr(errbuf, err.Error())
		return StatusInvalidArgument
	}
	e.config = cfg
	return StatusOK
}

// Run builds the handler from the accumulated options and starts its worker.
func (r *Registry) Run(h Handle) int {
	e := r.lookup(h)
	if e == nil {
		return StatusInvalidHandle
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.handler != nil {
		return StatusAlreadyRunning
	}

	handler, err := httpbatch.New(e.config,
		httpbatch.WithLogger(r.loggerFor(e.config)),
		httpbatch.WithEventHandler(e.reports),
	)
	if err != nil {
		return statusFor(err)
	}
	if err := handler.Run(); err != nil {
		return statusFor(err)
	}
	e.handler = handler
	return StatusOK
}

// Produce copies buf into a new event. flags is reserved and ignored.
// opaque is handed back in the event's Report.
func (r *Registry) Produce(h Handle, buf []byte, flags int, opaque any) int {
	e := r.lookup(h)
	if e == nil {
		return StatusInvalidHandle
	}

	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler == nil {
		return StatusNotRunning
	}

	e.reports.Track()
	if err := handler.ProduceWithOpaque(buf, opaque); err != nil {
		e.reports.Untrack()
		return statusFor(err)
	}
	return StatusOK
}

// GetReports delivers pending reports to fn, waiting up to timeout for the
// first one. It returns the number of produced events still awaiting a
// report, or -1 for an invalid handle.
func (r *Registry) GetReports(h Handle, fn ReportFunc, timeout time.Duration) int {
	e := r.lookup(h)
	if e == nil {
		return -1
	}
	return e.reports.Poll(fn, timeout)
}

// Destroy terminates the handler, waiting for the drain, and releases the
// handle. A zero or unknown handle is a no-op. Shutdown errors are written
// to errbuf.
func (r *Registry) Destroy(h Handle, errbuf []byte) {
	r.mu.Lock()
	e, ok := r.entries[h]
	delete(r.entries, h)
	r.mu.Unlock()
	if !ok {
		return
	}

	e.mu.Lock()
	handler := e.handler
	e.mu.Unlock()
	if handler == nil {
		return
	}

	if err := handler.Terminate(); err != nil {
		writeErr(errbuf, err.Error())
	}
}

// Len returns the number of live handles.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) lookup(h Handle) *entry {
	if h == 0 {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[h]
}

func (r *Registry) loggerFor(cfg httpbatch.Config) log.Logger {
	if cfg.Verbose {
		return log.NewZerologAdapter(zerolog.DebugLevel)
	}
	if r.Logger != nil {
		return r.Logger
	}
	return log.NoopLogger{}
}

// Create registers a handler in the process-wide registry.
func Create(url string, errbuf []byte) Handle {
	return defaultRegistry.Create(url, errbuf)
}

// SetOpt sets an option on a handle of the process-wide registry.
func SetOpt(h Handle, key, value string, errbuf []byte) int {
	return defaultRegistry.SetOpt(h, key, value, errbuf)
}

// Run starts a handle of the process-wide registry.
func Run(h Handle) int {
	return defaultRegistry.Run(h)
}

// Produce enqueues an event on a handle of the process-wide registry.
func Produce(h Handle, buf []byte, flags int, opaque any) int {
	return defaultRegistry.Produce(h, buf, flags, opaque)
}

// GetReports polls reports of a handle of the process-wide registry.
func GetReports(h Handle, fn ReportFunc, timeout time.Duration) int {
	return defaultRegistry.GetReports(h, fn, timeout)
}

// Destroy terminates and releases a handle of the process-wide registry.
func Destroy(h Handle, errbuf []byte) {
	defaultRegistry.Destroy(h, errbuf)
}
