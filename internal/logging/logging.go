// Package logging builds the zerolog logger shared by the server and the
// editor sessions.
//
// Logs always go to stderr in the binary: stdout carries the MCP protocol.
package logging

import (
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Supported output formats.
const (
	FormatConsole = "console"
	FormatJSON    = "json"
)

// New returns a logger writing to w. An unparsable level falls back to info;
// any format other than "json" produces human-readable console output.
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if strings.EqualFold(format, FormatJSON) {
		return zerolog.New(w).With().Timestamp().Logger().Level(lvl)
	}
	return zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    true,
	}).With().Timestamp().Logger().Level(lvl)
}

// Init builds a logger with New and installs it as the zerolog global.
func Init(w io.Writer, level, format string) zerolog.Logger {
	logger := New(w, level, format)
	zlog.Logger = logger
	return logger
}

// Nop returns a logger that discards everything. Used as the default when a
// caller supplies none.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
