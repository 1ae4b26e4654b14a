package match

import (
	"context"
	"time"
)

// QueryFilter narrows List results. An empty Statuses slice means any status.
type QueryFilter struct {
	Statuses []string
	Since    *time.Time
	Limit    int
}

// Repository exposes durable match snapshot storage. Save is a last-write-wins
// upsert keyed on the match ID.
type Repository interface {
	Get(ctx context.Context, id int64) (Match, bool, error)
	Save(ctx context.Context, m Match) (created bool, err error)
	List(ctx context.Context, filter QueryFilter) ([]Match, error)
	ListAll(ctx context.Context) ([]Match, error)
	ListRunningUpdatedBefore(ctx context.Context, cutoff time.Time) ([]Match, error)
	Delete(ctx context.Context, id int64) error
	// AnchorBounds returns the oldest and newest temporal anchors currently
	// stored, in UTC. ok is false when the store is empty.
	AnchorBounds(ctx context.Context) (oldest, newest time.Time, ok bool, err error)
}
