package logger

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/ppiankov/claimvault/internal/model"
)

// New creates a zerolog logger writing to w. Any format other than
// "json" gets the human readable console writer.
func New(w io.Writer, level zerolog.Level, format string) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        w,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Logger()
}

// Init builds the logger described by cfg, writing to stderr so command
// output on stdout stays machine readable
func Init(cfg model.LogConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}
	return New(os.Stderr, level, cfg.Format), nil
}
