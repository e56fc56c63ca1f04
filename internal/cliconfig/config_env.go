package cliconfig

import "os"

// EnvPrefix prefixes every environment variable read by ApplyEnvConfig.
const EnvPrefix = "HTTPBATCH_"

func getenv(name string) string {
	return os.Getenv(EnvPrefix + name)
}

// ApplyEnvConfig applies configuration from environment variables (HTTPBATCH_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("url", getenv("URL"), &cfg.URL)
	s.setString("full-policy", getenv("FULL_POLICY"), &cfg.FullPolicy)
	s.setString("mode", getenv("MODE"), &cfg.Mode)
	s.setString("content-type", getenv("CONTENT_TYPE"), &cfg.ContentType)
	s.setString("metrics-addr", getenv("METRICS_ADDR"), &cfg.MetricsAddr)
	s.setString("separator", getenv("SEPARATOR"), &cfg.Separator)

	if err := s.setDuration("idle-timeout", getenv("IDLE_TIMEOUT"), &cfg.IdleTimeout); err != nil {
		return err
	}
	if err := s.setDuration("max-batch-age", getenv("MAX_BATCH_AGE"), &cfg.MaxBatchAge); err != nil {
		return err
	}
	if err := s.setDuration("timeout", getenv("HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("connect-timeout", getenv("CONNECT_TIMEOUT"), &cfg.ConnectTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", getenv("SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("batch-bytes", getenv("BATCH_BYTES"), &cfg.BatchBytes); err != nil {
		return err
	}
	if err := s.setIntFromString("queue-limit", getenv("QUEUE_LIMIT"), &cfg.QueueLimit); err != nil {
		return err
	}
	if err := s.setIntFromString("retry-max-attempts", getenv("RETRY_MAX_ATTEMPTS"), &cfg.RetryMaxAttempts); err != nil {
		return err
	}
	if err := s.setFloatFromString("max-flush-rate", getenv("MAX_FLUSH_RATE"), &cfg.MaxFlushRate); err != nil {
		return err
	}

	s.setBoolFromString("insecure", getenv("INSECURE"), &cfg.Insecure)
	s.setBoolFromString("verbose", getenv("VERBOSE"), &cfg.Verbose)
	s.setBoolFromString("retry", getenv("RETRY"), &cfg.Retry)
	s.setBoolFromString("skip-empty", getenv("SKIP_EMPTY"), &cfg.SkipEmpty)
	s.setBoolFromString("follow", getenv("FOLLOW"), &cfg.Follow)

	return nil
}
