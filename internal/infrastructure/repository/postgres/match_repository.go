package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	qb "github.com/arfandy/cs-match-notify/internal/platform/querybuilder"
)

type MatchRepository struct {
	db *sqlx.DB
}

func NewMatchRepository(db *sqlx.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) Get(ctx context.Context, id int64) (match.Match, bool, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(qb.Eq("match_id", id)).
		ToSQL()
	if err != nil {
		return match.Match{}, false, fmt.Errorf("build select match query: %w", err)
	}

	var row matchTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return match.Match{}, false, nil
		}
		return match.Match{}, false, fmt.Errorf("select match id=%d: %w", id, err)
	}

	return row.toDomain(), true, nil
}

// Save upserts one match keyed on match_id. The xmax trick distinguishes a
// fresh insert from a conflict update without a second round trip.
func (r *MatchRepository) Save(ctx context.Context, m match.Match) (bool, error) {
	if m.ID <= 0 {
		return false, fmt.Errorf("match id is required")
	}

	row := matchTableModelFromDomain(m)
	query, args, err := qb.InsertModel("matches", row, `ON CONFLICT (match_id)
DO UPDATE SET
    status = EXCLUDED.status,
    snapshot = EXCLUDED.snapshot,
    begin_at = EXCLUDED.begin_at,
    end_at = EXCLUDED.end_at,
    updated_at = EXCLUDED.updated_at
RETURNING (xmax = 0) AS inserted`)
	if err != nil {
		return false, fmt.Errorf("build upsert match query: %w", err)
	}

	var inserted bool
	if err := r.db.GetContext(ctx, &inserted, query, args...); err != nil {
		return false, fmt.Errorf("upsert match id=%d: %w", m.ID, err)
	}

	return inserted, nil
}

func (r *MatchRepository) List(ctx context.Context, filter match.QueryFilter) ([]match.Match, error) {
	builder := qb.Select("*").From("matches").
		OrderBy("begin_at ASC NULLS FIRST", "match_id")

	if len(filter.Statuses) > 0 {
		statuses := make([]any, 0, len(filter.Statuses))
		for _, status := range filter.Statuses {
			statuses = append(statuses, match.NormalizeStatus(status))
		}
		builder = builder.Where(qb.In("status", statuses))
	}
	if filter.Since != nil {
		builder = builder.Where(qb.Gte("updated_at", filter.Since.UTC()))
	}
	if filter.Limit > 0 {
		builder = builder.Limit(filter.Limit)
	}

	query, args, err := builder.ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select matches: %w", err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *MatchRepository) ListAll(ctx context.Context) ([]match.Match, error) {
	return r.List(ctx, match.QueryFilter{})
}

func (r *MatchRepository) ListRunningUpdatedBefore(ctx context.Context, cutoff time.Time) ([]match.Match, error) {
	query, args, err := qb.Select("*").From("matches").
		Where(
			qb.Eq("status", match.StatusRunning),
			qb.Lt("updated_at", cutoff.UTC()),
		).
		OrderBy("match_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select stale running matches query: %w", err)
	}

	var rows []matchTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select stale running matches: %w", err)
	}

	out := make([]match.Match, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}

func (r *MatchRepository) Delete(ctx context.Context, id int64) error {
	query, args, err := qb.DeleteFrom("matches").
		Where(qb.Eq("match_id", id)).
		ToSQL()
	if err != nil {
		return fmt.Errorf("build delete match query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete match id=%d: %w", id, err)
	}
	return nil
}

func (r *MatchRepository) AnchorBounds(ctx context.Context) (time.Time, time.Time, bool, error) {
	query, _, err := qb.Select(
		"MIN(COALESCE(end_at, begin_at, updated_at)) AS oldest",
		"MAX(COALESCE(end_at, begin_at, updated_at)) AS newest",
	).From("matches").ToSQL()
	if err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("build anchor bounds query: %w", err)
	}

	var oldest, newest sql.NullTime
	if err := r.db.QueryRowxContext(ctx, query).Scan(&oldest, &newest); err != nil {
		return time.Time{}, time.Time{}, false, fmt.Errorf("select anchor bounds: %w", err)
	}
	if !oldest.Valid || !newest.Valid {
		return time.Time{}, time.Time{}, false, nil
	}

	return oldest.Time.UTC(), newest.Time.UTC(), true, nil
}
