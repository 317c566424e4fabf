// Package logger constructs the application's root logger. Components
// receive named children via hclog.Logger.Named.
package logger

import (
	"os"

	"github.com/hashicorp/go-hclog"
)

// Options controls root logger construction.
type Options struct {
	Level string // trace, debug, info, warn, error
	JSON  bool
}

// New creates the root logger for the application.
func New(opts Options) hclog.Logger {
	level := hclog.LevelFromString(opts.Level)
	if level == hclog.NoLevel {
		level = hclog.Info
	}

	return hclog.New(&hclog.LoggerOptions{
		Name:       "tuneport",
		Level:      level,
		Output:     os.Stderr,
		JSONFormat: opts.JSON,
	})
}
