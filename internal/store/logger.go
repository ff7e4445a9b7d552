package store

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// badgerLogger adapts zerolog to badger.Logger
type badgerLogger struct {
	logger zerolog.Logger
}

func newBadgerLogger(logger zerolog.Logger) *badgerLogger {
	return &badgerLogger{
		logger: logger.With().Str("component", "badger").Logger(),
	}
}

func (l *badgerLogger) Errorf(format string, args ...any) {
	l.logger.Error().Msg(trimMsg(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...any) {
	l.logger.Warn().Msg(trimMsg(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...any) {
	l.logger.Info().Msg(trimMsg(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...any) {
	l.logger.Debug().Msg(trimMsg(format, args...))
}

// badger terminates most messages with a newline
func trimMsg(format string, args ...any) string {
	return strings.TrimRight(fmt.Sprintf(format, args...), "\n")
}
