// Package logging configura o zerolog compartilhado pelos binários.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New devolve um logger estruturado escrevendo em stderr.
//
// Level desconhecido cai em info. Com pretty=true a saída vira console
// colorido, pensado para rodar local.
func New(level string, pretty bool) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if pretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	return logger.Level(lvl).With().Timestamp().Logger()
}
