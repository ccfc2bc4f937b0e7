package services

import (
	"context"
	"time"

	"telegram-library/configs"
	"telegram-library/models"
	"telegram-library/store"

	"github.com/rs/zerolog"
)

const RecentLogLimit = 10

// Audit appends operational events to the log collection and mirrors them to
// the process log. A failed write is logged and never returned.
type Audit struct {
	logs store.LogStore
	now  func() time.Time
	log  zerolog.Logger
}

func NewAudit(logs store.LogStore) *Audit {
	return &Audit{logs: logs, now: time.Now, log: configs.Logger("audit")}
}

func (a *Audit) Record(ctx context.Context, event string, userID int64, detail map[string]string) {
	entry := models.LogEntry{Event: event, UserID: userID, Detail: detail, Time: a.now().UTC()}

	ev := a.log.Info().Str("event", event)
	if userID != 0 {
		ev = ev.Int64("user_id", userID)
	}
	for k, v := range detail {
		ev = ev.Str(k, v)
	}
	ev.Msg("audit")

	if err := a.logs.AppendLog(ctx, entry); err != nil {
		a.log.Error().Err(err).Str("event", event).Msg("Failed to persist audit entry")
	}
}

func (a *Audit) Recent(ctx context.Context) ([]models.LogEntry, error) {
	return a.logs.RecentLogs(ctx, RecentLogLimit)
}
