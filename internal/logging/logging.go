// Package logging configures the process-wide structured logger.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds a zerolog.Logger writing JSON to stdout, or a human-readable
// console writer when pretty is true (for local runs).
func New(pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	if pretty {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

// ForConn returns a logger scoped to one connection, carrying the fields
// every session log line needs: which protocol, which remote address, and
// (once known) which device IMEI.
func ForConn(base zerolog.Logger, protocol, remoteAddr string) zerolog.Logger {
	return base.With().Str("protocol", protocol).Str("remote_addr", remoteAddr).Logger()
}

// WithIMEI returns a derived logger carrying the device IMEI, once login
// has identified the connection.
func WithIMEI(l zerolog.Logger, imei string) zerolog.Logger {
	return l.With().Str("imei", imei).Logger()
}
