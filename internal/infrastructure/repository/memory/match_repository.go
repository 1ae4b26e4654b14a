package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
)

type MatchRepository struct {
	mu      sync.RWMutex
	matches map[int64]match.Match
}

func NewMatchRepository() *MatchRepository {
	return &MatchRepository{matches: make(map[int64]match.Match)}
}

func (r *MatchRepository) Get(_ context.Context, id int64) (match.Match, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.matches[id]
	return m, ok, nil
}

func (r *MatchRepository) Save(_ context.Context, m match.Match) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, exists := r.matches[m.ID]
	r.matches[m.ID] = m
	return !exists, nil
}

func (r *MatchRepository) List(ctx context.Context, filter match.QueryFilter) ([]match.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	statuses := make(map[string]bool, len(filter.Statuses))
	for _, s := range filter.Statuses {
		statuses[match.NormalizeStatus(s)] = true
	}

	out := make([]match.Match, 0, len(r.matches))
	for _, m := range r.matches {
		if len(statuses) > 0 && !statuses[m.Status] {
			continue
		}
		if filter.Since != nil && m.UpdatedAt.Before(*filter.Since) {
			continue
		}
		out = append(out, m)
	}

	sort.Slice(out, func(i, j int) bool {
		return beginOrZero(out[i]).Before(beginOrZero(out[j]))
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (r *MatchRepository) ListAll(ctx context.Context) ([]match.Match, error) {
	return r.List(ctx, match.QueryFilter{})
}

func (r *MatchRepository) ListRunningUpdatedBefore(_ context.Context, cutoff time.Time) ([]match.Match, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]match.Match, 0)
	for _, m := range r.matches {
		if m.Status == match.StatusRunning && m.UpdatedAt.Before(cutoff) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *MatchRepository) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.matches, id)
	return nil
}

func (r *MatchRepository) AnchorBounds(_ context.Context) (time.Time, time.Time, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var oldest, newest time.Time
	found := false
	for _, m := range r.matches {
		anchor, ok := m.TemporalAnchor()
		if !ok {
			continue
		}
		if !found {
			oldest, newest = anchor, anchor
			found = true
			continue
		}
		if anchor.Before(oldest) {
			oldest = anchor
		}
		if anchor.After(newest) {
			newest = anchor
		}
	}
	return oldest, newest, found, nil
}

func beginOrZero(m match.Match) time.Time {
	if m.BeginAt != nil {
		return *m.BeginAt
	}
	return time.Time{}
}
