// Package logging configures the zerolog logger shared by all services.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger tagged with the service name. Development gets a
// human-readable console writer, everything else structured JSON.
func New(service, env string) zerolog.Logger {
	level := zerolog.InfoLevel
	if parsed, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil && parsed != zerolog.NoLevel {
		level = parsed
	}

	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}).Level(level).With().
			Timestamp().
			Str("service", service).
			Logger()
	}

	return zerolog.New(os.Stdout).Level(level).With().
		Timestamp().
		Str("service", service).
		Logger()
}
