package cliconfig

import (
	"os"
	"path/filepath"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
type FileConfig struct {
	URL              string  `toml:"url"`
	BatchBytes       int     `toml:"batch_bytes"`
	IdleTimeout      string  `toml:"idle_timeout"`
	MaxBatchAge      string  `toml:"max_batch_age"`
	HTTPTimeout      string  `toml:"http_timeout"`
	ConnectTimeout   string  `toml:"connect_timeout"`
	ShutdownTimeout  string  `toml:"shutdown_timeout"`
	QueueLimit       int     `toml:"queue_limit"`
	FullPolicy       string  `toml:"full_policy"`
	Mode             string  `toml:"mode"`
	ContentType      string  `toml:"content_type"`
	Insecure         *bool   `toml:"insecure"`
	Verbose          *bool   `toml:"verbose"`
	Retry            *bool   `toml:"retry"`
	RetryMaxAttempts int     `toml:"retry_max_attempts"`
	MaxFlushRate     float64 `toml:"max_flush_rate"`
	MetricsAddr      string  `toml:"metrics_addr"`
	Separator        string  `toml:"separator"`
	SkipEmpty        *bool   `toml:"skip_empty"`
	Follow           *bool   `toml:"follow"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, err
	}
	return fc, nil
}

// DefaultConfigPath returns ~/.httpbatch/config.toml, or "" when the home
// directory is unknown.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".httpbatch", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("url", fc.URL, &cfg.URL)
	s.setString("full-policy", fc.FullPolicy, &cfg.FullPolicy)
	s.setString("mode", fc.Mode, &cfg.Mode)
	s.setString("content-type", fc.ContentType, &cfg.ContentType)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)
	s.setString("separator", fc.Separator, &cfg.Separator)

	durations := []struct {
		flag  string
		value string
		dst   *time.Duration
	}{
		{"idle-timeout", fc.IdleTimeout, &cfg.IdleTimeout},
		{"max-batch-age", fc.MaxBatchAge, &cfg.MaxBatchAge},
		{"timeout", fc.HTTPTimeout, &cfg.HTTPTimeout},
		{"connect-timeout", fc.ConnectTimeout, &cfg.ConnectTimeout},
		{"shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	}
	for _, d := range durations {
		if err := s.setDuration(d.flag, d.value, d.dst); err != nil {
			return err
		}
	}

	s.setInt("batch-bytes", fc.BatchBytes, &cfg.BatchBytes)
	s.setInt("queue-limit", fc.QueueLimit, &cfg.QueueLimit)
	s.setInt("retry-max-attempts", fc.RetryMaxAttempts, &cfg.RetryMaxAttempts)
	s.setFloat("max-flush-rate", fc.MaxFlushRate, &cfg.MaxFlushRate)

	s.setBool("insecure", fc.Insecure, &cfg.Insecure)
	s.setBool("verbose", fc.Verbose, &cfg.Verbose)
	s.setBool("retry", fc.Retry, &cfg.Retry)
	s.setBool("skip-empty", fc.SkipEmpty, &cfg.SkipEmpty)
	s.setBool("follow", fc.Follow, &cfg.Follow)

	return nil
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
