// Package bridgelog is the module's logging seam. Library code never calls
// log or fmt.Println and does not log at all; the CLI is the only caller,
// and it wires the colorized tint handler built by New, starting from the
// discarding logger returned by Discard.
package bridgelog

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// Discard returns a logger that drops every record. The CLI package uses it
// as its initial logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// Options configures New.
type Options struct {
	// Level sets the minimum level records must meet to be emitted.
	// Defaults to slog.LevelInfo.
	Level slog.Level
	// NoColor disables ANSI color codes, e.g. when output isn't a TTY.
	NoColor bool
	// AddSource includes the source file and line of each log call.
	AddSource bool
}

// New builds the logger the CLI installs at startup: tint's handler over
// stderr, timestamped and colorized the way an interactive terminal session
// expects.
func New(opts Options) *slog.Logger {
	return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
		Level:      opts.Level,
		TimeFormat: time.Kitchen,
		NoColor:    opts.NoColor,
		AddSource:  opts.AddSource,
	}))
}
