// Package logging provides structured logging configuration using zerolog.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
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
	// Writers other than *os.File are serialised, so any io.Writer may be
	// shared by concurrent workers.
	Output io.Writer

	// File, when set, additionally receives every log line as JSON.
	File io.Writer

	// RunID is attached to every log line when set.
	RunID string
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
	// Set global log level
	level := parseLevel(cfg.Level)
	zerolog.SetGlobalLevel(level)

	// Configure output
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	out = syncWriter(out)
	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out}
	}
	if cfg.File != nil {
		output = zerolog.MultiLevelWriter(output, syncWriter(cfg.File))
	}

	// Create logger with timestamp
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.RunID != "" {
		ctx = ctx.Str("run_id", cfg.RunID)
	}
	logger := ctx.Logger()

	// Set as global logger
	log.Logger = logger

	return logger
}

// syncWriter guards w with a mutex. Files are left alone since each event
// is a single write(2).
func syncWriter(w io.Writer) io.Writer {
	if _, ok := w.(*os.File); ok {
		return w
	}
	return zerolog.SyncWriter(w)
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

// OpenFile opens path for appending, creating it and its directory.
func OpenFile(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// Log Level Guidelines:
//
// Debug: Detailed information for debugging
//   - Cache operations (hit/miss, key)
//   - Retry and congestion waits
//   - Worker start/finish
//
// Info: Normal operation events
//   - Query finished (state, records, pages)
//   - Harvest start and summary
//
// Warn: Warning conditions that don't prevent operation
//   - Malformed POI items skipped
//   - Cache errors (fallback to direct request)
//   - Query cancelled on shutdown
//
// Error: Error conditions requiring attention
//   - Query aborted (transport budget exhausted, API error)
//   - Result could not be stored
//   - Recovered worker panic
//
// Context Fields:
//   - run_id: Harvest run identifier
//   - component: Emitting component
//   - region, category: Query being harvested
//   - page: Page number
//   - worker: Worker index
//   - attempt: HTTP attempts for the page
//   - error_class: Transport error class (network, timeout, http_status, decode)
//   - infocode: API error code
