package notification

import (
	"context"
	"time"
)

// Repository stores reminder and result notification records. Inserts are
// insert-or-ignore on the uniqueness key; marking sent is conditional on the
// record still being pending, which is what makes delivery exactly-once.
type Repository interface {
	InsertReminder(ctx context.Context, r Reminder) (created bool, err error)
	ListPendingReminders(ctx context.Context) ([]Reminder, error)
	ListRemindersByMatch(ctx context.Context, guildID string, matchID int64) ([]Reminder, error)
	MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) (updated bool, err error)

	InsertResult(ctx context.Context, r Result) (created bool, err error)
	ListPendingResults(ctx context.Context) ([]Result, error)
	MarkResultSent(ctx context.Context, id int64, sentAt time.Time) (updated bool, err error)

	// CountPendingOlderThan counts pending records created before the cutoff;
	// it backs the stuck-delivery gauge on the ops surface.
	CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	PurgeSentBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
