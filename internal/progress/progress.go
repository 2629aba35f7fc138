// Package progress defines the advisory progress-reporter interface the core
// consumes (spec treats terminal progress rendering as an external
// collaborator) and a minimal logging-backed implementation.
package progress

import (
	"fmt"
	"log/slog"
	"sync/atomic"
)

// Reporter receives advisory progress updates. Implementations must be safe
// for concurrent use by multiple goroutines: the walker, mover and script
// engine all call Tick from worker goroutines.
type Reporter interface {
	// Tick reports that one unit of work (a file found, a file migrated, a
	// script executed, a CSV written) has completed.
	Tick()
	// Done marks the reporter's work as finished, for implementations that
	// render a terminal spinner or bar and need a final message.
	Done(message string)
}

// Noop discards every update; the zero value is ready to use.
type Noop struct{}

func (Noop) Tick()           {}
func (Noop) Done(string)     {}

// Spinner reports progress by periodically logging a running count, mirroring
// the "Found: N" spinner message the original implementation prints, at a
// level that won't flood a real terminal (every 500th tick, and once at Done).
type Spinner struct {
	label string
	every uint64
	count uint64
}

// NewSpinner returns a Spinner labeled for log output, logging every N ticks.
// N defaults to 500 if zero.
func NewSpinner(label string, every uint64) *Spinner {
	if every == 0 {
		every = 500
	}
	return &Spinner{label: label, every: every}
}

func (s *Spinner) Tick() {
	n := atomic.AddUint64(&s.count, 1)
	if n%s.every == 0 {
		slog.Info(fmt.Sprintf("%s: %d", s.label, n))
	}
}

func (s *Spinner) Done(message string) {
	slog.Info(fmt.Sprintf("%s: %s (%d total)", s.label, message, atomic.LoadUint64(&s.count)))
}
