// Package logging provides the core's structured logger: a thin
// component-scoped wrapper over zerolog, in the spirit of the teacher
// corpus's small per-concern wrapper packages.
package logging

import (
	"os"
	"sync"

	"github.com/rs/zerolog"
)

var (
	baseOnce   sync.Once
	baseLogger zerolog.Logger
)

func base() zerolog.Logger {
	baseOnce.Do(func() {
		baseLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05.000"}).
			With().Timestamp().Logger()
	})
	return baseLogger
}

// SetLevel adjusts the global minimum level (defaults to zerolog's
// default global level, DebugLevel).
func SetLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

// For returns a logger scoped to component, e.g. "reactor", "pipeline",
// "bootstrap".
func For(component string) zerolog.Logger {
	return base().With().Str("component", component).Logger()
}
