// Package logger builds the zerolog loggers used across readq.
package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// New returns a console logger on stderr. Stdout is left to command output
// and the MCP transport.
func New(level, service string) zerolog.Logger {
	return NewWithWriter(os.Stderr, level, service)
}

// NewWithWriter returns a console logger writing to w.
func NewWithWriter(w io.Writer, level, service string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    w != os.Stderr && w != os.Stdout,
	}
	return zerolog.New(output).
		With().
		Timestamp().
		Str("service", service).
		Logger().
		Level(parseLevel(level))
}

func parseLevel(raw string) zerolog.Level {
	if raw == "" {
		return zerolog.InfoLevel
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw)))
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}
