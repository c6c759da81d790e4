package jobs

import (
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// cronLogger routes robfig/cron's own messages (panics, skipped ticks) to zerolog.
type cronLogger struct {
	logger zerolog.Logger
}

var _ cron.Logger = cronLogger{}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
