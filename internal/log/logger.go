// SPDX-License-Identifier: MIT

package log

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options controls the process-wide logger construction.
type Options struct {
	Level  string // debug, info, warn, error
	Pretty bool   // human-readable console writer instead of JSON
	Output io.Writer
}

// New builds a zerolog.Logger per Options. Unknown levels fall back to info
// rather than failing construction, a bad config value should degrade
// logging verbosity, not crash the manager.
func New(opts Options) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil {
		level = zerolog.InfoLevel
	}

	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}
