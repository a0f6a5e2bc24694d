// Package cli implements the bnfold command-line interface.
//
// This package provides commands for folding batch normalization layers
// out of inference graphs, inspecting what a fold would do, drawing graphs
// and serving the fold over HTTP. The CLI is built using cobra and logs
// via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - fold: Fold one or more model files and write <name>.folded.<ext>
//   - inspect: Show the fold plan and the reasons nodes stay unfolded
//   - dot: Write a Graphviz diagram of a model, before or after folding
//   - serve: Run the fold HTTP server
//   - cache: Manage the result cache
//   - version: Print build information
//
// # Configuration
//
// Defaults come from $XDG_CONFIG_HOME/bnfold/config.toml (or --config).
// Flags override file values.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging, which
// includes one line per folded or unfolded normalization node.
package cli

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a new logger with timestamp formatting.
// The logger writes to w and filters messages at the specified level.
// Timestamps are formatted as "HH:MM:SS.ms" (e.g., "14:32:01.45").
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress tracks the start time of an operation and logs completion with elapsed duration.
type progress struct {
	logger *log.Logger
	start  time.Time
}

func newProgress(l *log.Logger) *progress {
	return &progress{logger: l, start: time.Now()}
}

// done logs msg along with the elapsed time, rounded to the millisecond.
// Example output: "Folded 12 models (1.234s)"
func (p *progress) done(msg string) {
	p.logger.Infof("%s (%s)", msg, time.Since(p.start).Round(time.Millisecond))
}
