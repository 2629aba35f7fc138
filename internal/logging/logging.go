// Package logging configures the process-wide structured logger, patterned
// on the simplestream-maintainer CLI's setDefaultLogger: a level and format
// selectable from flags, writing timestamped, leveled records to stdout.
package logging

import (
	"fmt"
	"log/slog"
	"os"
)

// Configure installs the default slog logger for the process. level is one
// of "debug", "info", "warn", "error"; format is "text" or "json".
func Configure(level, format string) error {
	opts := slog.HandlerOptions{}

	switch level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "info":
		opts.Level = slog.LevelInfo
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q, valid levels are: [debug, info, warn, error]", level)
	}

	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stdout, &opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, &opts)
	default:
		return fmt.Errorf("invalid log format %q, valid formats are: [text, json]", format)
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Fatal logs msg at error level with the given attrs and terminates the
// process with exit code 1. Used by main's top-level recover handler as the
// Go-idiomatic expression of the original panic-hook contract: a custom
// handler that prints location+message via the logger, then exits non-zero
// (Go has no global panic hook, so this is invoked from a deferred recover
// in main instead of a process-wide hook).
func Fatal(msg string, args ...any) {
	slog.Error(msg, args...)
	os.Exit(1)
}
