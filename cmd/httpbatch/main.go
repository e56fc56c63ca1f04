package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/httpbatch/internal/cliconfig"
	"github.com/bft-labs/httpbatch/pkg/httpbatch"
	"github.com/bft-labs/httpbatch/pkg/log"
	"github.com/bft-labs/httpbatch/pkg/metrics"
	"github.com/bft-labs/httpbatch/pkg/source"
)

const helpDescription = `
Ship newline-delimited events to an HTTP endpoint in batches.

Every line read from stdin or FILE becomes one event. Events are appended to
a batch that is POSTed when it is full, when no new line arrives within the
idle timeout, or on shutdown.

Highlights:
  - Order is preserved and every event is sent at most once.
  - Configure via file ($HOME/.httpbatch/config.toml), HTTPBATCH_* env, or flags.
  - --follow tails FILE across rotation and truncation.
  - --metrics-addr exposes Prometheus metrics.
`

var longHelp = strings.TrimSpace(helpDescription)

var exampleUsage = strings.TrimSpace(`
  tail -F app.log | httpbatch --url http://collector:8080/ingest --separator '\n'
  httpbatch --url http://collector:8080/ingest --follow /var/log/app.json
  httpbatch --config $HOME/.httpbatch/config.toml events.ndjson
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:     "httpbatch [FILE]",
		Short:   "Ship newline-delimited events to an HTTP endpoint in batches",
		Long:    longHelp,
		Example: exampleUsage,
		Version: fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			// Build set of changed flags
			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}

			// Env overrides the file but not explicitly set flags.
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}

			if err := cfg.Validate(); err != nil {
				return err
			}

			var path string
			if len(args) == 1 && args[0] != "-" {
				path = args[0]
			}
			if cfg.Follow && path == "" {
				return errors.New("--follow requires FILE")
			}

			logger := cliconfig.Logger(cfg.Verbose)
			logger.Info().Interface("config", cfg).Msg("configuration")

			return run(cmd.Context(), cfg, path, logger)
		},
	}

	root.Flags().StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.httpbatch/config.toml)")
	root.Flags().StringVar(&cfg.URL, "url", cfg.URL, "endpoint every batch is POSTed to")
	root.Flags().IntVar(&cfg.BatchBytes, "batch-bytes", cfg.BatchBytes, "batch capacity in bytes")
	root.Flags().DurationVar(&cfg.IdleTimeout, "idle-timeout", cfg.IdleTimeout, "flush a batch when no event arrives for this long")
	root.Flags().DurationVar(&cfg.MaxBatchAge, "max-batch-age", cfg.MaxBatchAge, "flush a batch once its oldest event is this old (0 disables)")
	root.Flags().DurationVar(&cfg.HTTPTimeout, "timeout", cfg.HTTPTimeout, "HTTP request timeout")
	root.Flags().DurationVar(&cfg.ConnectTimeout, "connect-timeout", cfg.ConnectTimeout, "HTTP connect timeout")
	root.Flags().DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for the final drain (negative waits forever)")
	root.Flags().IntVar(&cfg.QueueLimit, "queue-limit", cfg.QueueLimit, "maximum queued events (0 is unbounded)")
	root.Flags().StringVar(&cfg.FullPolicy, "full-policy", cfg.FullPolicy, "behavior when the queue is full: block, reject or drop-oldest")
	root.Flags().StringVar(&cfg.Mode, "mode", cfg.Mode, "request body framing: normal or chunked")
	root.Flags().StringVar(&cfg.ContentType, "content-type", cfg.ContentType, "Content-Type header of every request")
	root.Flags().BoolVar(&cfg.Insecure, "insecure", cfg.Insecure, "skip TLS certificate verification")
	root.Flags().BoolVar(&cfg.Verbose, "verbose", cfg.Verbose, "log every request at debug level")
	root.Flags().BoolVar(&cfg.Retry, "retry", cfg.Retry, "retry failed flushes with exponential backoff")
	root.Flags().IntVar(&cfg.RetryMaxAttempts, "retry-max-attempts", cfg.RetryMaxAttempts, "attempts per batch when --retry is set (0 is bounded by time only)")
	root.Flags().Float64Var(&cfg.MaxFlushRate, "max-flush-rate", cfg.MaxFlushRate, "maximum flushes per second (0 is unlimited)")
	root.Flags().StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	root.Flags().StringVar(&cfg.Separator, "separator", cfg.Separator, `bytes appended to every event, Go escapes allowed (e.g. '\n')`)
	root.Flags().BoolVar(&cfg.SkipEmpty, "skip-empty", cfg.SkipEmpty, "drop blank lines")
	root.Flags().BoolVar(&cfg.Follow, "follow", cfg.Follow, "keep following FILE for appended lines")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		l := cliconfig.Logger(false)
		l.Error().Err(err).Msg("httpbatch")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg cliconfig.Config, path string, logger zerolog.Logger) error {
	hc, err := cfg.HandlerConfig()
	if err != nil {
		return err
	}
	sep, err := cfg.SeparatorBytes()
	if err != nil {
		return err
	}

	opts := []httpbatch.Option{
		httpbatch.WithLogger(log.NewZerologAdapterWithLogger(logger)),
	}

	var reg *prometheus.Registry
	if cfg.MetricsAddr != "" {
		reg = prometheus.NewRegistry()
		collector, err := metrics.New(metrics.DefaultNamespace, reg)
		if err != nil {
			return fmt.Errorf("create metrics: %w", err)
		}
		opts = append(opts, httpbatch.WithEventHandler(collector))
	}

	h, err := httpbatch.New(hc, opts...)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	if reg != nil {
		if err := metrics.RegisterQueueDepth(metrics.DefaultNamespace, reg, h); err != nil {
			return fmt.Errorf("register queue depth: %w", err)
		}
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Str("addr", cfg.MetricsAddr).Msg("metrics server")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		logger.Info().Str("addr", cfg.MetricsAddr).Msg("serving metrics")
	}

	if err := h.Run(); err != nil {
		return fmt.Errorf("run handler: %w", err)
	}

	readErr := read(ctx, cfg, path, sep, &sink{handler: h, logger: logger}, logger)
	if readErr != nil {
		logger.Error().Err(readErr).Msg("reading input")
	}

	logger.Info().Msg("draining")
	termErr := h.Terminate()
	stats := h.Stats()
	logger.Info().
		Int64("enqueued", stats.Enqueued).
		Int64("dropped", stats.Dropped).
		Int64("flushes", stats.Flushes).
		Int64("failed_flushes", stats.FailedFlushes).
		Int64("bytes_sent", stats.BytesSent).
		Msg("terminated")

	if termErr != nil {
		return fmt.Errorf("terminate: %w", termErr)
	}
	return readErr
}

// read feeds the input to s until EOF, cancellation or a producing error.
func read(ctx context.Context, cfg cliconfig.Config, path string, sep []byte, s source.Sink, logger zerolog.Logger) error {
	opts := source.Options{Separator: sep, SkipEmpty: cfg.SkipEmpty}

	if cfg.Follow {
		f := source.NewFollower(source.FollowConfig{
			Path:         path,
			PollInterval: time.Second,
			Options:      opts,
		}, s, log.NewZerologAdapterWithLogger(logger))
		return f.Run(ctx)
	}

	var r io.Reader = os.Stdin
	if path != "" {
		file, err := os.Open(path)
		if err != nil {
			return err
		}
		defer file.Close()
		r = file
	}

	// A read from stdin does not observe ctx, so wait on both.
	done := make(chan error, 1)
	go func() {
		n, err := source.ReadLines(ctx, r, s, opts)
		logger.Debug().Int("events", n).Msg("input finished")
		done <- err
	}()
	select {
	case err := <-done:
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	case <-ctx.Done():
		logger.Info().Msg("received signal, stopping...")
		return nil
	}
}

// sink produces into the handler. A full queue under the reject policy
// drops the line instead of stopping the input.
type sink struct {
	handler *httpbatch.Handler
	logger  zerolog.Logger
}

func (s *sink) Produce(data []byte) error {
	err := s.handler.Produce(data)
	if errors.Is(err, httpbatch.ErrQueueFull) {
		s.logger.Warn().Int("bytes", len(data)).Msg("queue full, event dropped")
		return nil
	}
	return err
}
