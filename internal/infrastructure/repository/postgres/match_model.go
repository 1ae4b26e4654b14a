package postgres

import (
	"database/sql"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
)

type matchTableModel struct {
	MatchID   int64        `db:"match_id"`
	Status    string       `db:"status"`
	Snapshot  string       `db:"snapshot"`
	BeginAt   sql.NullTime `db:"begin_at"`
	EndAt     sql.NullTime `db:"end_at"`
	UpdatedAt time.Time    `db:"updated_at"`
}

func (row matchTableModel) toDomain() match.Match {
	return match.Match{
		ID:        row.MatchID,
		Status:    row.Status,
		Snapshot:  []byte(row.Snapshot),
		BeginAt:   nullTimeToPtr(row.BeginAt),
		EndAt:     nullTimeToPtr(row.EndAt),
		UpdatedAt: row.UpdatedAt.UTC(),
	}
}

func matchTableModelFromDomain(m match.Match) matchTableModel {
	snapshot := string(m.Snapshot)
	if snapshot == "" {
		snapshot = "{}"
	}
	return matchTableModel{
		MatchID:   m.ID,
		Status:    match.NormalizeStatus(m.Status),
		Snapshot:  snapshot,
		BeginAt:   ptrToNullTime(m.BeginAt),
		EndAt:     ptrToNullTime(m.EndAt),
		UpdatedAt: m.UpdatedAt.UTC(),
	}
}
