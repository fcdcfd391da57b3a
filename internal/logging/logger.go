// Herald - Real-Time Message Center and Notification Fan-Out
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/herald

// Package logging is Herald's zerolog front door. Every component logs
// through the process-wide logger configured once from main:
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Int64("user_id", id).Msg("session admitted")
//
// Ctx derives a logger carrying the request and correlation IDs stored in a
// context, and NewSlogLogger bridges slog-based libraries (sutureslog) into
// the same output stream.
package logging

import (
	"io"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config controls the process-wide logger.
type Config struct {
	// Level is the minimum emitted level. One of trace, debug, info, warn,
	// error, fatal, panic, disabled. Unknown values fall back to info.
	Level string

	// Format selects json (default) or console output.
	Format string

	// Caller annotates each entry with the emitting file and line.
	Caller bool

	// Output defaults to os.Stderr.
	Output io.Writer
}

// DefaultConfig is json/info to stderr.
func DefaultConfig() Config {
	return Config{Level: "info", Format: "json", Output: os.Stderr}
}

var root atomic.Pointer[zerolog.Logger]

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
	Init(DefaultConfig())
}

// Init builds the process-wide logger. Callable any number of times; the
// latest call wins, so tests can redirect output freely.
func Init(cfg Config) {
	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: "15:04:05"}
	}

	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	lc := zerolog.New(out).With().Timestamp()
	if cfg.Caller {
		lc = lc.Caller()
	}
	l := lc.Logger()
	root.Store(&l)
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(s) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	case "disabled":
		return zerolog.Disabled
	default:
		return zerolog.InfoLevel
	}
}

// Logger returns the current process-wide logger. A pointer is returned so
// call chains like Logger().WithLevel(...) work, mirroring zerolog.Ctx.
func Logger() *zerolog.Logger {
	return root.Load()
}

// Debug starts a debug-level entry. Terminate the chain with Msg or Send.
func Debug() *zerolog.Event { return root.Load().Debug() }

// Info starts an info-level entry.
func Info() *zerolog.Event { return root.Load().Info() }

// Warn starts a warn-level entry.
func Warn() *zerolog.Event { return root.Load().Warn() }

// Error starts an error-level entry.
func Error() *zerolog.Event { return root.Load().Error() }

// Fatal starts a fatal-level entry. The process exits once it is emitted.
func Fatal() *zerolog.Event { return root.Load().Fatal() }

// With opens a child-logger context over the process-wide logger.
func With() zerolog.Context { return root.Load().With() }
