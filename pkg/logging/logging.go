// Package logging wires up DBFS's structured logger. It follows
// LeeNgari-RDBMS's internal/logging package: a single slog.Logger built
// from a text handler for interactive use, with a leveled verbosity knob,
// rather than a bespoke logging abstraction.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Options configures the process-wide logger.
type Options struct {
	// Level is the minimum level that is emitted ("debug", "info", "warn", "error").
	Level string
	// JSON switches the handler from human-readable text to JSON lines,
	// useful when log output feeds a collector instead of a terminal.
	JSON bool
	// Output is where log lines are written; defaults to os.Stderr.
	Output io.Writer
}

func (o Options) level() slog.Level {
	switch o.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a slog.Logger per opts and installs it as slog's default.
func New(opts Options) *slog.Logger {
	out := opts.Output
	if out == nil {
		out = os.Stderr
	}

	handlerOpts := &slog.HandlerOptions{Level: opts.level()}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(out, handlerOpts)
	} else {
		handler = slog.NewTextHandler(out, handlerOpts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
