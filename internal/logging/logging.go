package logging

import (
	"os"

	"github.com/rs/zerolog"
)

// Setup configures zerolog for the process. Local runs get a human-readable
// console writer; everything else emits JSON.
func Setup(environment string) zerolog.Logger {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	level := zerolog.InfoLevel
	if environment == "local" {
		level = zerolog.DebugLevel
	}

	if environment == "local" {
		writer := zerolog.ConsoleWriter{Out: os.Stdout}
		return zerolog.New(writer).With().Timestamp().Logger().Level(level)
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger().Level(level)
}
