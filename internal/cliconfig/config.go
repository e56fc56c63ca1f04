package cliconfig

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bft-labs/httpbatch/pkg/httpbatch"
)

// Config holds CLI configuration for httpbatch.
type Config struct {
	URL string

	BatchBytes  int
	IdleTimeout time.Duration
	MaxBatchAge time.Duration

	HTTPTimeout     time.Duration
	ConnectTimeout  time.Duration
	ShutdownTimeout time.Duration

	QueueLimit int
	FullPolicy string

	Mode        string
	ContentType string
	Insecure    bool
	Verbose     bool

	Retry            bool
	RetryMaxAttempts int
	MaxFlushRate     float64

	MetricsAddr string

	// Separator is appended to every line read. Go escapes such as \n are
	// interpreted.
	Separator string
	SkipEmpty bool
	Follow    bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		BatchBytes:      httpbatch.DefaultBatchBytes,
		IdleTimeout:     httpbatch.DefaultIdleTimeout,
		HTTPTimeout:     httpbatch.DefaultHTTPTimeout,
		ConnectTimeout:  httpbatch.DefaultConnectTimeout,
		ShutdownTimeout: httpbatch.DefaultShutdownTimeout,
		FullPolicy:      "block",
		Mode:            "normal",
		ContentType:     httpbatch.DefaultContentType,
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	c.URL = strings.TrimSpace(c.URL)
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	if _, err := c.SeparatorBytes(); err != nil {
		return err
	}
	hc, err := c.HandlerConfig()
	if err != nil {
		return err
	}
	return hc.Validate()
}

// SeparatorBytes returns Separator with escape sequences interpreted.
func (c *Config) SeparatorBytes() ([]byte, error) {
	if c.Separator == "" {
		return nil, nil
	}
	s, err := strconv.Unquote(`"` + strings.ReplaceAll(c.Separator, `"`, `\"`) + `"`)
	if err != nil {
		return nil, fmt.Errorf("parse separator %q: %w", c.Separator, err)
	}
	return []byte(s), nil
}

// HandlerConfig converts the CLI configuration into a httpbatch.Config.
func (c *Config) HandlerConfig() (httpbatch.Config, error) {
	policy, err := httpbatch.ParseFullPolicy(c.FullPolicy)
	if err != nil {
		return httpbatch.Config{}, err
	}
	mode, err := httpbatch.ParseMode(c.Mode)
	if err != nil {
		return httpbatch.Config{}, err
	}

	hc := httpbatch.DefaultConfig()
	hc.URL = c.URL
	hc.BatchBytes = c.BatchBytes
	hc.IdleTimeout = c.IdleTimeout
	hc.MaxBatchAge = c.MaxBatchAge
	hc.HTTPTimeout = c.HTTPTimeout
	hc.ConnectTimeout = c.ConnectTimeout
	hc.ShutdownTimeout = c.ShutdownTimeout
	hc.QueueLimit = c.QueueLimit
	hc.FullPolicy = policy
	hc.Mode = mode
	hc.ContentType = c.ContentType
	hc.Insecure = c.Insecure
	hc.Verbose = c.Verbose
	hc.MaxFlushRate = c.MaxFlushRate
	hc.Retry.Enabled = c.Retry
	hc.Retry.MaxAttempts = c.RetryMaxAttempts
	hc.SetDefaults()
	return hc, nil
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setFloat sets a float64 value if positive and flag not changed.
func (s *configSetter) setFloat(flag string, value float64, dst *float64) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setFloatFromString parses a string to float64 and sets the destination if valid.
func (s *configSetter) setFloatFromString(flag, value string, dst *float64) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	if f <= 0 {
		return nil
	}
	*dst = f
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
