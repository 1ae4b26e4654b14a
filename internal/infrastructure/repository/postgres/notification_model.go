package postgres

import (
	"database/sql"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/notification"
)

type reminderTableModel struct {
	ID            int64        `db:"id"`
	PublicID      string       `db:"public_id"`
	GuildID       string       `db:"guild_id"`
	MatchID       int64        `db:"match_id"`
	OffsetMinutes int          `db:"offset_minutes"`
	ScheduledAt   time.Time    `db:"scheduled_at"`
	Sent          bool         `db:"sent"`
	SentAt        sql.NullTime `db:"sent_at"`
	CreatedAt     time.Time    `db:"created_at"`
}

func (row reminderTableModel) toDomain() notification.Reminder {
	return notification.Reminder{
		ID:            row.ID,
		PublicID:      row.PublicID,
		GuildID:       row.GuildID,
		MatchID:       row.MatchID,
		OffsetMinutes: row.OffsetMinutes,
		ScheduledAt:   row.ScheduledAt.UTC(),
		Sent:          row.Sent,
		SentAt:        nullTimeToPtr(row.SentAt),
		CreatedAt:     row.CreatedAt.UTC(),
	}
}

// reminderInsertModel omits id so the sequence assigns it.
type reminderInsertModel struct {
	PublicID      string    `db:"public_id"`
	GuildID       string    `db:"guild_id"`
	MatchID       int64     `db:"match_id"`
	OffsetMinutes int       `db:"offset_minutes"`
	ScheduledAt   time.Time `db:"scheduled_at"`
	CreatedAt     time.Time `db:"created_at"`
}

type resultTableModel struct {
	ID        int64        `db:"id"`
	PublicID  string       `db:"public_id"`
	GuildID   string       `db:"guild_id"`
	MatchID   int64        `db:"match_id"`
	Sent      bool         `db:"sent"`
	SentAt    sql.NullTime `db:"sent_at"`
	CreatedAt time.Time    `db:"created_at"`
}

func (row resultTableModel) toDomain() notification.Result {
	return notification.Result{
		ID:        row.ID,
		PublicID:  row.PublicID,
		GuildID:   row.GuildID,
		MatchID:   row.MatchID,
		Sent:      row.Sent,
		SentAt:    nullTimeToPtr(row.SentAt),
		CreatedAt: row.CreatedAt.UTC(),
	}
}

type resultInsertModel struct {
	PublicID  string    `db:"public_id"`
	GuildID   string    `db:"guild_id"`
	MatchID   int64     `db:"match_id"`
	CreatedAt time.Time `db:"created_at"`
}
