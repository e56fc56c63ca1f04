package hostapi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// DefaultMaxMessages is the queue limit of a new handle.
const DefaultMaxMessages = 512

// Option keys accepted by SetOpt.
const (
	OptHTTPTimeout     = "HTTP_TIMEOUT"
	OptConnectTimeout  = "HTTP_CONNTTIMEOUT"
	OptVerbose         = "HTTP_VERBOSE"
	OptInsecure        = "HTTP_INSECURE"
	OptMaxMessages     = "RB_HTTP_MAX_MESSAGES"
	OptConnections     = "RB_HTTP_CONNECTIONS"
	OptMode            = "RB_HTTP_MODE"
	OptBatchBytes      = "RB_HTTP_BATCH_BYTES"
	OptIdleTimeout     = "RB_HTTP_IDLE_TIMEOUT"
	OptFullPolicy      = "RB_HTTP_FULL_POLICY"
	OptContentType     = "RB_HTTP_CONTENT_TYPE"
	OptShutdownTimeout = "RB_HTTP_SHUTDOWN_TIMEOUT"
)

// applyOpt sets one option on cfg. Durations are given in milliseconds.
func applyOpt(cfg *httpbatch.Config, key, value string) error {
	value = strings.TrimSpace(value)

	switch key {
	case OptHTTPTimeout:
		return setMillis(&cfg.HTTPTimeout, key, value)
	case OptConnectTimeout:
		return setMillis(&cfg.ConnectTimeout, key, value)
	case OptIdleTimeout:
		return setMillis(&cfg.IdleTimeout, key, value)
	case OptShutdownTimeout:
		return setMillis(&cfg.ShutdownTimeout, key, value)
	case OptVerbose:
		return setFlag(&cfg.Verbose, key, value)
	case OptInsecure:
		return setFlag(&cfg.Insecure, key, value)
	case OptMaxMessages:
		return setCount(&cfg.QueueLimit, key, value)
	case OptConnections:
		return setCount(&cfg.MaxConnsPerHost, key, value)
	case OptBatchBytes:
		return setCount(&cfg.BatchBytes, key, value)
	case OptMode:
		m, err := httpbatch.ParseMode(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.Mode = m
	case OptFullPolicy:
		p, err := httpbatch.ParseFullPolicy(value)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		cfg.FullPolicy = p
	case OptContentType:
		if value == "" {
			return fmt.Errorf("%s: empty value", key)
		}
		cfg.ContentType = value
	default:
		return fmt.Errorf("unknown option %q", key)
	}
	return nil
}

func setMillis(dst *time.Duration, key, value string) error {
	ms, err := strconv.ParseInt(value, 10, 64)
	if err != nil || ms <= 0 {
		return fmt.Errorf("%s: want a positive number of milliseconds, got %q", key, value)
	}
	*dst = time.Duration(ms) * time.Millisecond
	return nil
}

func setCount(dst *int, key, value string) error {
	n, err := strconv.Atoi(value)
	if err != nil || n < 0 {
		return fmt.Errorf("%s: want a non-negative integer, got %q", key, value)
	}
	*dst = n
	return nil
}

func setFlag(dst *bool, key, value string) error {
	switch value {
	case "0":
		*dst = false
	case "1":
		*dst = true
	default:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("%s: want 0 or 1, got %q", key, value)
		}
		*dst = b
	}
	return nil
}
