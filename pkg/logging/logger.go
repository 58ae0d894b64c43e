// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogLevel represents the logging level.
type LogLevel string

const (
	// LevelDebug logs debug messages and above.
	LevelDebug LogLevel = "debug"

	// LevelInfo logs info messages and above.
	LevelInfo LogLevel = "info"

	// LevelWarn logs warning messages and above.
	LevelWarn LogLevel = "warn"

	// LevelError logs error messages only.
	LevelError LogLevel = "error"
)

// Config holds logger configuration.
type Config struct {
	// Level is the minimum log level to output.
	Level LogLevel

	// Pretty enables human-readable console output (default: false for JSON).
	Pretty bool

	// Output is the writer to output logs to (default: os.Stderr).
	Output io.Writer
}

// DefaultConfig returns a default logger configuration.
func DefaultConfig() Config {
	return Config{
		Level:  LevelInfo,
		Pretty: false,
		Output: os.Stderr,
	}
}

// Setup configures the global zerolog logger.
func Setup(cfg Config) zerolog.Logger {
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	var output io.Writer = cfg.Output
	if output == nil {
		output = os.Stderr
	}
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: output}
	}

	logger := zerolog.New(output).With().Timestamp().Logger()
	log.Logger = logger

	return logger
}

// parseLevel converts LogLevel to zerolog.Level.
func parseLevel(level LogLevel) zerolog.Level {
	switch strings.ToLower(string(level)) {
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// NewLogger creates a new logger with the given component name.
func NewLogger(component string) zerolog.Logger {
	return log.With().Str("component", component).Logger()
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Rate gate waits and backoff sleeps
//   - Pagination hops during placeholder resolution
//   - Charset and compression decisions
//
// Info: Normal operation events
//   - Resolved chapter addresses
//   - Chapter downloads and catalog saves
//   - Fetches that succeeded after a retry
//
// Warn: Warning conditions that don't prevent operation
//   - 429 responses and retry attempts
//   - Content validation failures (non-HTML, empty body)
//   - Per-target resolution skips (no predecessor, cycle, hop budget)
//
// Error: Error conditions requiring attention
//   - Fetches failed after all retries
//   - Unwritable storage
//   - Configuration errors
//
// Context Fields:
//   - url: page address being fetched or resolved
//   - status: HTTP status code
//   - attempt: retry attempt number
//   - error_class: error classification (client, server, rate_limit, network)
//   - volume / title: catalog position of a resolution target
//   - hops: pagination hops consumed by a resolution walk
//   - reason: failure reason of a resolution walk
