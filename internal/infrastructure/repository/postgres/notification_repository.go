package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	qb "github.com/arfandy/cs-match-notify/internal/platform/querybuilder"
)

type NotificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// InsertReminder is insert-or-ignore on (guild_id, match_id, offset_minutes).
// A zero rows-affected count means the tuple already existed.
func (r *NotificationRepository) InsertReminder(ctx context.Context, rec notification.Reminder) (bool, error) {
	if rec.GuildID == "" || rec.MatchID <= 0 {
		return false, fmt.Errorf("reminder requires guild and match")
	}

	model := reminderInsertModel{
		PublicID:      rec.PublicID,
		GuildID:       rec.GuildID,
		MatchID:       rec.MatchID,
		OffsetMinutes: rec.OffsetMinutes,
		ScheduledAt:   rec.ScheduledAt.UTC(),
		CreatedAt:     rec.CreatedAt.UTC(),
	}

	query, args, err := qb.InsertModel("reminders", model,
		"ON CONFLICT (guild_id, match_id, offset_minutes) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("build insert reminder query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert reminder guild=%s match=%d offset=%d: %w",
			rec.GuildID, rec.MatchID, rec.OffsetMinutes, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert reminder rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NotificationRepository) ListPendingReminders(ctx context.Context) ([]notification.Reminder, error) {
	query, args, err := qb.Select("*").From("reminders").
		Where(qb.Eq("sent", false)).
		OrderBy("scheduled_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select pending reminders query: %w", err)
	}

	var rows []reminderTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select pending reminders: %w", err)
	}

	out := make([]notification.Reminder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *NotificationRepository) ListRemindersByMatch(ctx context.Context, guildID string, matchID int64) ([]notification.Reminder, error) {
	query, args, err := qb.Select("*").From("reminders").
		Where(
			qb.Eq("guild_id", guildID),
			qb.Eq("match_id", matchID),
		).
		OrderBy("offset_minutes DESC").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select reminders by match query: %w", err)
	}

	var rows []reminderTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select reminders guild=%s match=%d: %w", guildID, matchID, err)
	}

	out := make([]notification.Reminder, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

// MarkReminderSent flips the sent flag only when the row is still pending.
// The sent = false guard is what keeps delivery exactly-once under a crash
// between send and mark.
func (r *NotificationRepository) MarkReminderSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	query, args, err := qb.Update("reminders").
		Set("sent", true).
		Set("sent_at", sentAt.UTC()).
		Where(
			qb.Eq("id", id),
			qb.Eq("sent", false),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark reminder sent query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark reminder sent id=%d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark reminder sent rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NotificationRepository) InsertResult(ctx context.Context, rec notification.Result) (bool, error) {
	if rec.GuildID == "" || rec.MatchID <= 0 {
		return false, fmt.Errorf("result notification requires guild and match")
	}

	model := resultInsertModel{
		PublicID:  rec.PublicID,
		GuildID:   rec.GuildID,
		MatchID:   rec.MatchID,
		CreatedAt: rec.CreatedAt.UTC(),
	}

	query, args, err := qb.InsertModel("result_notifications", model,
		"ON CONFLICT (guild_id, match_id) DO NOTHING")
	if err != nil {
		return false, fmt.Errorf("build insert result notification query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("insert result notification guild=%s match=%d: %w", rec.GuildID, rec.MatchID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("insert result notification rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NotificationRepository) ListPendingResults(ctx context.Context) ([]notification.Result, error) {
	query, args, err := qb.Select("*").From("result_notifications").
		Where(qb.Eq("sent", false)).
		OrderBy("created_at", "id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select pending results query: %w", err)
	}

	var rows []resultTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select pending results: %w", err)
	}

	out := make([]notification.Result, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *NotificationRepository) MarkResultSent(ctx context.Context, id int64, sentAt time.Time) (bool, error) {
	query, args, err := qb.Update("result_notifications").
		Set("sent", true).
		Set("sent_at", sentAt.UTC()).
		Where(
			qb.Eq("id", id),
			qb.Eq("sent", false),
		).
		ToSQL()
	if err != nil {
		return false, fmt.Errorf("build mark result sent query: %w", err)
	}

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("mark result sent id=%d: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("mark result sent rows affected: %w", err)
	}
	return affected > 0, nil
}

func (r *NotificationRepository) CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	total := 0
	for _, table := range []string{"reminders", "result_notifications"} {
		query, args, err := qb.Select("COUNT(*)").From(table).
			Where(
				qb.Eq("sent", false),
				qb.Lt("created_at", cutoff.UTC()),
			).
			ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build count pending query for %s: %w", table, err)
		}

		var count int
		if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
			return 0, fmt.Errorf("count pending %s: %w", table, err)
		}
		total += count
	}
	return total, nil
}

func (r *NotificationRepository) PurgeSentBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	var purged int64
	for _, table := range []string{"reminders", "result_notifications"} {
		query, args, err := qb.DeleteFrom(table).
			Where(
				qb.Eq("sent", true),
				qb.Lt("sent_at", cutoff.UTC()),
			).
			ToSQL()
		if err != nil {
			return purged, fmt.Errorf("build purge query for %s: %w", table, err)
		}

		result, err := r.db.ExecContext(ctx, query, args...)
		if err != nil {
			return purged, fmt.Errorf("purge sent %s: %w", table, err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return purged, fmt.Errorf("purge sent %s rows affected: %w", table, err)
		}
		purged += affected
	}
	return purged, nil
}
