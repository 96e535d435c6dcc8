package worker

import (
	"context"
	"time"

	"todone/internal/database"
	"todone/internal/domain"
	"todone/internal/models"

	"github.com/rs/zerolog"
)

// ReminderWorker sends a daily digest of due and overdue tasks through the
// notifier. Runs once per day at models.ReminderHour local time.
type ReminderWorker struct {
	db       *database.DB
	notifier domain.Notifier
	logger   zerolog.Logger
}

func NewReminderWorker(db *database.DB, notifier domain.Notifier, logger *zerolog.Logger) *ReminderWorker {
	var log zerolog.Logger
	if logger != nil {
		log = logger.With().Str("component", "reminder").Logger()
	}
	return &ReminderWorker{
		db:       db,
		notifier: notifier,
		logger:   log,
	}
}

func (w *ReminderWorker) Start(ctx context.Context) {
	for {
		next := nextReminderTime(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			w.sendDigest(ctx)
		}
	}
}

func (w *ReminderWorker) sendDigest(ctx context.Context) {
	// End of today; due dates up to midnight count as "today".
	now := time.Now()
	cutoff := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 0, now.Location())

	tasks, err := w.db.GetDueTasks(ctx, cutoff)
	if err != nil {
		w.logger.Error().Err(err).Msg("fetch due tasks")
		return
	}
	if len(tasks) == 0 {
		return
	}

	if err := w.notifier.NotifyDueTasks(tasks); err != nil {
		w.logger.Error().Err(err).Msg("send due digest")
		return
	}
	w.logger.Info().Int("count", len(tasks)).Msg("due digest sent")
}

func nextReminderTime(now time.Time) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), models.ReminderHour, 0, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}
