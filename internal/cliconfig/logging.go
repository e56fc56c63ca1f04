package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/httpbatch/pkg/log"
)

// Logger returns the CLI console logger. verbose lowers the level to debug.
func Logger(verbose bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	return log.NewConsoleLogger(os.Stderr, level)
}
