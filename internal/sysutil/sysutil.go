// Package sysutil holds process-level helpers for the server binary:
// global logger setup and small value utilities.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// SetLogLevel sets the global zerolog level from LOG_LEVEL. Names are
// zerolog's (trace..panic, case-insensitive) plus "warning"; blank or
// unknown values mean info.
func SetLogLevel(lvl string) {
	lvl = strings.ToLower(strings.TrimSpace(lvl))
	if lvl == "warning" {
		lvl = "warn"
	}
	l, err := zerolog.ParseLevel(lvl)
	if err != nil || l == zerolog.NoLevel {
		l = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(l)
}

// NewLogger builds the process logger. pretty selects a human-readable
// console writer; otherwise one JSON object per line is written to w.
// Every entry carries the service name and version.
func NewLogger(w io.Writer, pretty bool, service, version string) zerolog.Logger {
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().
		Timestamp().
		Str("service", service).
		Str("version", version).
		Logger()
}

// SetupLogging installs NewLogger(os.Stderr, ...) as the global logger and
// as the fallback for zerolog.Ctx on contexts without a logger.
func SetupLogging(level string, pretty bool, service, version string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(level)
	l := NewLogger(os.Stderr, pretty, service, version)
	log.Logger = l
	zerolog.DefaultContextLogger = &log.Logger
	return l
}

// FirstNonEmpty returns the first non-blank string from a variadic list.
// If all values are blank, it returns "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
