// Package httpbatch provides an embeddable dispatcher that batches byte
// events and POSTs them to an HTTP endpoint.
//
// Example usage:
//
//	cfg := httpbatch.DefaultConfig()
//	cfg.URL = "http://collector.local:8080/ingest"
//	h, err := httpbatch.New(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := h.Run(); err != nil {
//	    log.Fatal(err)
//	}
//	_ = h.Produce([]byte(`{"event":"login"}`))
//	if err := h.Terminate(); err != nil {
//	    log.Print(err)
//	}
//
// See package github.com/bft-labs/httpbatch/pkg/httpbatch for the full API.
package httpbatch

import "github.com/bft-labs/httpbatch/pkg/httpbatch"

// Config holds the configuration for a Handler.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = httpbatch.Config

// Handler batches produced events and POSTs them to one endpoint.
type Handler = httpbatch.Handler

// Option configures optional behavior of a Handler.
type Option = httpbatch.Option

// New creates a Handler. Call Run on it to start dispatching.
func New(cfg Config, opts ...Option) (*Handler, error) {
	return httpbatch.New(cfg, opts...)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set URL before calling New.
func DefaultConfig() Config {
	return httpbatch.DefaultConfig()
}
