package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"quiz-session-engine/internal/config"
)

// New builds the root logger from the log section. Unknown levels fall back to info.
func New(cfg config.Config) zerolog.Logger {
	return newLogger(os.Stderr, cfg.Log.Level, cfg.Log.Pretty)
}

func newLogger(w io.Writer, level string, pretty bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	if pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(lvl).With().Timestamp().Str("service", "quiz-engine").Logger()
}
