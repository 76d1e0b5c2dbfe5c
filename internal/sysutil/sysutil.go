// Package sysutil configures process-wide concerns: the global zerolog
// logger and its level.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ParseLogLevel maps a LOG_LEVEL value to a zerolog level. Unknown or empty
// values mean info; "warning" is accepted for warn.
func ParseLogLevel(s string) zerolog.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zerolog.ParseLevel(s)
	if err != nil || s == "" || lvl == zerolog.NoLevel {
		return zerolog.InfoLevel
	}
	return lvl
}

// SetLogLevel sets the global zerolog level from a LOG_LEVEL value.
func SetLogLevel(s string) { zerolog.SetGlobalLevel(ParseLogLevel(s)) }

// ConfigureLogging sets the global level and replaces log.Logger with one
// writing to w (stderr when nil), as console text when pretty is set and
// JSON otherwise. It returns the installed logger.
func ConfigureLogging(level string, pretty bool, w io.Writer) zerolog.Logger {
	SetLogLevel(level)
	if w == nil {
		w = os.Stderr
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	log.Logger = zerolog.New(w).With().Timestamp().Logger()
	return log.Logger
}
