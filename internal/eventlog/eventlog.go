package eventlog

import (
	"context"

	"go.uber.org/zap"
)

const (
	LevelInfo = "INFO"
	LevelWarn = "WARN"
)

// Entry is a notable guild event: a level-up, an attributed join, a giveaway
// or ticket transition. Entries always go to the structured log; a notifier,
// when set, mirrors them to the guild's configured log channel.
type Entry struct {
	GuildID string
	UserID  string
	Level   string
	Event   string
	Details string
}

type Logger struct {
	logger *zap.Logger
	notify func(context.Context, Entry)
}

func New(logger *zap.Logger) *Logger {
	return &Logger{logger: logger}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry)) {
	l.notify = notify
}

func (l *Logger) Log(ctx context.Context, level, guildID, userID, event, details string) {
	entry := Entry{
		GuildID: guildID,
		UserID:  userID,
		Level:   level,
		Event:   event,
		Details: details,
	}
	if l.notify != nil {
		l.notify(ctx, entry)
	}
	l.logger.Info("event",
		zap.String("level", level),
		zap.String("guild_id", guildID),
		zap.String("user_id", userID),
		zap.String("event", event),
		zap.String("details", details))
}
