// Package log configures the process-wide zerolog logger used by every
// SparkQ component, following the component-logger convention of the
// teacher's logging package: one global Logger, and small With* helpers
// that attach structured fields.
//
// Unlike the teacher, whose node_id/service_id fields are always used
// standalone, SparkQ's task-lifecycle log lines consistently need two
// identifiers together — the opaque id used for store lookups and the
// human-friendly label an operator actually reads — so the helpers here
// take a base logger (usually one already tagged WithComponent) and
// attach one or more domain fields to it, rather than always starting
// fresh from the global Logger.
package log

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the global logger instance, configured by Init.
var Logger zerolog.Logger

// Level is a SparkQ-facing log level, decoupled from zerolog's type so
// config files don't need to import zerolog.
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration.
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer
}

// Init initializes the global logger. Call once at process start.
func Init(cfg Config) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stdout
	}

	if cfg.JSONOutput {
		Logger = zerolog.New(output).With().Timestamp().Logger()
	} else {
		Logger = zerolog.New(zerolog.ConsoleWriter{
			Out:        output,
			TimeFormat: time.RFC3339,
		}).With().Timestamp().Logger()
	}
}

// WithComponent creates a child logger tagged with a component name,
// e.g. log.WithComponent("supervisor").
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithSessionID attaches a session_id field to an existing logger.
func WithSessionID(logger zerolog.Logger, sessionID string) zerolog.Logger {
	return logger.With().Str("session_id", sessionID).Logger()
}

// WithQueueID attaches a queue_id field to an existing logger.
func WithQueueID(logger zerolog.Logger, queueID string) zerolog.Logger {
	return logger.With().Str("queue_id", queueID).Logger()
}

// WithTask attaches a task's opaque id and friendly label together to
// an existing logger. Supervisor's stale/auto-fail loop and the
// Runner's claim loop both always have both at hand and both always
// want both in the log line, so this is the one helper call sites
// reach for instead of chaining two separate .Str calls.
func WithTask(logger zerolog.Logger, taskID, friendlyID string) zerolog.Logger {
	return logger.With().Str("task_id", taskID).Str("friendly_id", friendlyID).Logger()
}
