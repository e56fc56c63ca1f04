package httpbatch

import (
	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/ports"
	"github.com/bft-labs/httpbatch/pkg/log"
	"github.com/bft-labs/httpbatch/pkg/sender"
)

// Re-export types from sub-packages for convenient access.
type (
	// Logger is the structured logging interface from pkg/log.
	Logger = log.Logger

	// HTTPClient is the interface from pkg/sender. *http.Client satisfies it.
	HTTPClient = sender.HTTPClient

	// BatchSender delivers one batch payload to the endpoint and returns the
	// HTTP status code.
	BatchSender = ports.BatchSender

	// Endpoint is a validated destination URL.
	Endpoint = domain.Endpoint
)

// Option configures optional behavior of a Handler.
type Option func(*options)

// options holds the optional configuration for a Handler.
type options struct {
	httpClient    HTTPClient
	logger        Logger
	eventHandlers []EventHandler
	sender        BatchSender
}

// defaultOptions returns options with sensible defaults.
func defaultOptions() options {
	return options{
		logger: log.NoopLogger{},
	}
}

// WithHTTPClient sets the HTTP client used for dispatch.
// If not provided, a client built from the timeout and TLS settings of the
// Config is used.
func WithHTTPClient(client HTTPClient) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

// WithLogger sets a custom logger for structured logging.
// If not provided, a no-op logger is used (no output).
func WithLogger(logger Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithEventHandler registers a handler for flush, drop and state events.
// It may be given several times; handlers are called in registration order.
func WithEventHandler(handler EventHandler) Option {
	return func(o *options) {
		if handler != nil {
			o.eventHandlers = append(o.eventHandlers, handler)
		}
	}
}

// WithSender replaces the HTTP sender. The HTTP client and the Mode,
// ContentType and Verbose settings are then unused.
func WithSender(s BatchSender) Option {
	return func(o *options) {
		o.sender = s
	}
}
