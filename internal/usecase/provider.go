package usecase

import (
	"context"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
)

// MatchDataProvider is the upstream esports data collaborator. Finished
// matches are paginated most-recent-first by end time.
type MatchDataProvider interface {
	FetchUpcoming(ctx context.Context, pageSize int) ([]ExternalMatch, error)
	FetchRunning(ctx context.Context) ([]ExternalMatch, error)
	FetchFinished(ctx context.Context, pageSize, page int) ([]ExternalMatch, error)
	FetchCanceled(ctx context.Context, pageSize int) ([]ExternalMatch, error)
}

// ExternalMatch is one provider match with the fields the cache indexes plus
// the untouched payload.
type ExternalMatch struct {
	ID       int64
	Status   string
	BeginAt  *time.Time
	EndAt    *time.Time
	Snapshot []byte
}

// ToMatch converts a provider record into a cache row stamped with the given
// write time. Timestamps are pinned to UTC at this boundary; nothing past it
// may carry another zone.
func (e ExternalMatch) ToMatch(now time.Time) match.Match {
	m := match.Match{
		ID:        e.ID,
		Status:    match.NormalizeStatus(e.Status),
		Snapshot:  e.Snapshot,
		UpdatedAt: match.NormalizeUTC(now),
	}
	if e.BeginAt != nil && !e.BeginAt.IsZero() {
		begin := match.NormalizeUTC(*e.BeginAt)
		m.BeginAt = &begin
	}
	if e.EndAt != nil && !e.EndAt.IsZero() {
		end := match.NormalizeUTC(*e.EndAt)
		m.EndAt = &end
	}
	return m
}
