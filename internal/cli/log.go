// Package cli implements the patchfill command-line interface.
//
// This package provides commands for filling masked image regions, one at a
// time or in concurrent batches, serving the same pipeline over HTTP, and
// managing the result cache and config file. The CLI is built using cobra
// and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - fill: Fill the masked region of one image
//   - batch: Fill many images, pairing each with its mask by suffix
//   - serve: Run the HTTP API
//   - cache: Manage the result cache
//   - config: Inspect or initialize the config file
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which
// includes per-pyramid-level search statistics. Loggers are passed through
// context.Context to the commands.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger returns a logger writing to w with "15:04:05.00" timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress logs the duration of each stage of a command and the total.
// Not safe for concurrent use.
type progress struct {
	logger *log.Logger
	start  time.Time
	last   time.Time
}

func newProgress(l *log.Logger) *progress {
	now := time.Now()
	return &progress{logger: l, start: now, last: now}
}

// step logs msg at debug level with the time since the previous step.
func (p *progress) step(msg string) {
	now := time.Now()
	p.logger.Debugf("%s (%s)", msg, now.Sub(p.last).Round(time.Millisecond))
	p.last = now
}

// done logs msg with the total elapsed time, e.g. "filled photo.png (1.234s)".
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}

type ctxKey int

const loggerKey ctxKey = 0

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the command logger, or log.Default() when the
// command runs without the root's PersistentPreRunE (as in tests).
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
