package logx

import (
	"github.com/parceldesk/core/internal/core"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var DefaultLoggerOpts = &LoggerOpts{
	Environment: core.Development,
}

type LoggerOpts struct {
	Environment core.Environment
}

func safe(otps ...LoggerOpts) *LoggerOpts {
	if len(otps) == 0 {
		return DefaultLoggerOpts
	}
	return &otps[0]
}

func Init(otps ...LoggerOpts) {
	if safe(otps...).Environment == core.Production {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	} else {
		log.Logger = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Caller().Logger()
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	}
}

func Debug() *zerolog.Event {
	return log.Debug()
}

func Info() *zerolog.Event {
	return log.Info()
}

func Warn() *zerolog.Event {
	return log.Warn()
}

func Error() *zerolog.Event {
	return log.Error()
}

func Panic() *zerolog.Event {
	return log.Panic()
}

func Fatal() *zerolog.Event {
	return log.Fatal()
}

// Ticket-scoped helpers. Most log lines in the reply pipeline carry the
// ticket id, so the common tagging lives here.

func TicketDebug(ticketID string) *zerolog.Event {
	return log.Debug().Str("ticket_id", ticketID)
}

func TicketWarn(ticketID string) *zerolog.Event {
	return log.Warn().Str("ticket_id", ticketID)
}

func TicketError(ticketID string) *zerolog.Event {
	return log.Error().Str("ticket_id", ticketID)
}
