package httpbatch

import (
	"fmt"
	"strings"
	"time"

	"github.com/bft-labs/httpbatch/internal/app"
	"github.com/bft-labs/httpbatch/internal/domain"
	"github.com/bft-labs/httpbatch/internal/queue"
	"github.com/bft-labs/httpbatch/pkg/sender"
)

// Default configuration values.
const (
	DefaultBatchBytes      = 64 << 10
	DefaultIdleTimeout     = time.Second
	DefaultHTTPTimeout     = 10 * time.Second
	DefaultConnectTimeout  = 3 * time.Second
	DefaultShutdownTimeout = app.ShutdownTimeout
	DefaultMaxConnsPerHost = 2
	DefaultContentType     = sender.DefaultContentType
)

// FullPolicy decides what Produce does when the queue limit is reached.
type FullPolicy = queue.FullPolicy

// Full policies.
const (
	// Block waits until the worker frees a slot.
	Block = queue.Block
	// Reject fails Produce with ErrQueueFull.
	Reject = queue.Reject
	// DropOldest evicts the oldest queued event and reports it to OnDrop.
	DropOldest = queue.DropOldest
)

// ParseFullPolicy parses "block", "reject" or "drop-oldest".
func ParseFullPolicy(s string) (FullPolicy, error) {
	return queue.ParseFullPolicy(s)
}

// Mode selects how the request body is framed.
type Mode = sender.Mode

// Body framing modes.
const (
	ModeNormal  = sender.ModeNormal
	ModeChunked = sender.ModeChunked
)

// ParseMode parses "normal" or "chunked".
func ParseMode(s string) (Mode, error) {
	return sender.ParseMode(s)
}

// RetryConfig configures retries of failed flushes. Retries are disabled
// by default: a batch whose dispatch fails is reported and dropped.
type RetryConfig = app.RetryConfig

// DefaultRetryConfig returns a disabled RetryConfig with default intervals.
func DefaultRetryConfig() RetryConfig {
	return app.DefaultRetryConfig()
}

// Config holds the configuration for a Handler.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config struct {
	// URL is the endpoint every batch is POSTed to. Required.
	URL string

	// BatchBytes is the batch capacity. An event that would overflow it
	// flushes the current batch first.
	BatchBytes int

	// IdleTimeout flushes a non-empty batch when no event arrives in time.
	IdleTimeout time.Duration

	// MaxBatchAge flushes a batch once its oldest event is this old.
	// 0 disables the limit.
	MaxBatchAge time.Duration

	// QueueLimit bounds the number of queued events. 0 means unbounded.
	QueueLimit int

	// FullPolicy applies when QueueLimit is reached.
	FullPolicy FullPolicy

	// ShutdownTimeout bounds how long Terminate waits for the drain.
	// A negative value waits forever.
	ShutdownTimeout time.Duration

	// HTTPTimeout bounds one request, connection and response included.
	HTTPTimeout time.Duration

	// ConnectTimeout bounds establishing a connection.
	ConnectTimeout time.Duration

	// MaxConnsPerHost is the number of idle connections kept to the endpoint.
	MaxConnsPerHost int

	// Insecure disables TLS verification.
	Insecure bool

	// Verbose logs every request and response at debug level.
	Verbose bool

	Mode        Mode
	ContentType string

	// MaxFlushRate limits flushes per second. 0 means unlimited.
	MaxFlushRate float64

	Retry RetryConfig
}

// DefaultConfig returns a Config with default values. URL must still be set.
func DefaultConfig() Config {
	return Config{
		BatchBytes:      DefaultBatchBytes,
		IdleTimeout:     DefaultIdleTimeout,
		ShutdownTimeout: DefaultShutdownTimeout,
		HTTPTimeout:     DefaultHTTPTimeout,
		ConnectTimeout:  DefaultConnectTimeout,
		MaxConnsPerHost: DefaultMaxConnsPerHost,
		FullPolicy:      Block,
		Mode:            ModeNormal,
		ContentType:     DefaultContentType,
		Retry:           DefaultRetryConfig(),
	}
}

// SetDefaults fills zero-valued fields with defaults.
func (c *Config) SetDefaults() {
	d := DefaultConfig()

	c.URL = strings.TrimSpace(c.URL)
	if c.BatchBytes == 0 {
		c.BatchBytes = d.BatchBytes
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = d.IdleTimeout
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = d.HTTPTimeout
	}
	if c.ConnectTimeout == 0 {
		c.ConnectTimeout = d.ConnectTimeout
	}
	if c.MaxConnsPerHost == 0 {
		c.MaxConnsPerHost = d.MaxConnsPerHost
	}
	if c.ContentType == "" {
		c.ContentType = d.ContentType
	}
	if c.Retry.InitialInterval == 0 {
		c.Retry.InitialInterval = d.Retry.InitialInterval
	}
	if c.Retry.MaxInterval == 0 {
		c.Retry.MaxInterval = d.Retry.MaxInterval
	}
}

// Validate checks the configuration. Errors wrap ErrInvalidConfig, or
// ErrInvalidEndpoint when the URL is the problem.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("%w: url is required", domain.ErrInvalidEndpoint)
	}
	if _, err := domain.ParseEndpoint(c.URL); err != nil {
		return err
	}

	switch {
	case c.BatchBytes <= 0:
		return fmt.Errorf("%w: batch bytes must be positive", domain.ErrInvalidConfig)
	case c.IdleTimeout <= 0:
		return fmt.Errorf("%w: idle timeout must be positive", domain.ErrInvalidConfig)
	case c.MaxBatchAge < 0:
		return fmt.Errorf("%w: max batch age must not be negative", domain.ErrInvalidConfig)
	case c.QueueLimit < 0:
		return fmt.Errorf("%w: queue limit must not be negative", domain.ErrInvalidConfig)
	case c.HTTPTimeout < 0 || c.ConnectTimeout < 0:
		return fmt.Errorf("%w: timeouts must not be negative", domain.ErrInvalidConfig)
	case c.MaxConnsPerHost < 0:
		return fmt.Errorf("%w: max connections per host must not be negative", domain.ErrInvalidConfig)
	case c.MaxFlushRate < 0:
		return fmt.Errorf("%w: max flush rate must not be negative", domain.ErrInvalidConfig)
	case c.Retry.MaxAttempts < 0:
		return fmt.Errorf("%w: retry max attempts must not be negative", domain.ErrInvalidConfig)
	}

	switch c.FullPolicy {
	case Block, Reject, DropOldest:
	default:
		return fmt.Errorf("%w: unknown full policy %d", domain.ErrInvalidConfig, c.FullPolicy)
	}
	switch c.Mode {
	case ModeNormal, ModeChunked:
	default:
		return fmt.Errorf("%w: unknown mode %d", domain.ErrInvalidConfig, c.Mode)
	}
	if strings.ContainsAny(c.ContentType, "\r\n") {
		return fmt.Errorf("%w: content type must be a single header line", domain.ErrInvalidConfig)
	}

	return nil
}
