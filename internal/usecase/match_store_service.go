package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/cache"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

const (
	cacheKeyUpcoming = "matches:upcoming"
	cacheKeyRunning  = "matches:running"
	cacheKeyResults  = "matches:results"

	defaultQueryTimeout = 3 * time.Second
	defaultCacheLimit   = 50
)

// UpsertStats summarizes one batch write. Skipped counts records rejected by
// the status monotonicity guard; they are anomalies, not errors.
type UpsertStats struct {
	Added   int `json:"added"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// QueryInput selects cached matches. Filter accepts a single status or the
// synthetic "results" filter covering all decided statuses.
type QueryInput struct {
	Filter string
	Since  *time.Time
	Limit  int
}

// MatchStoreService owns the durable match snapshot table and the derived
// read cache on top of it.
type MatchStoreService struct {
	matchRepo    match.Repository
	readCache    *cache.Store
	queryTimeout time.Duration
	cacheLimit   int
	logger       *logging.Logger
	now          func() time.Time
}

func NewMatchStoreService(
	matchRepo match.Repository,
	readCache *cache.Store,
	queryTimeout time.Duration,
	cacheLimit int,
	logger *logging.Logger,
) *MatchStoreService {
	if logger == nil {
		logger = logging.Default()
	}
	if queryTimeout <= 0 {
		queryTimeout = defaultQueryTimeout
	}
	if cacheLimit <= 0 {
		cacheLimit = defaultCacheLimit
	}

	return &MatchStoreService{
		matchRepo:    matchRepo,
		readCache:    readCache,
		queryTimeout: queryTimeout,
		cacheLimit:   cacheLimit,
		logger:       logger,
		now:          time.Now,
	}
}

// UpsertMatches writes a batch of records with last-write-wins semantics per
// match ID. One record failing never aborts the rest; failures are counted
// and reported, not raised.
func (s *MatchStoreService) UpsertMatches(ctx context.Context, matches []match.Match) UpsertStats {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchStoreService.UpsertMatches")
	defer span.End()

	var stats UpsertStats
	for _, m := range matches {
		if m.ID <= 0 {
			stats.Errors++
			continue
		}

		m.Status = match.NormalizeStatus(m.Status)
		if m.UpdatedAt.IsZero() {
			m.UpdatedAt = match.NormalizeUTC(s.now())
		}

		existing, found, err := s.matchRepo.Get(ctx, m.ID)
		if err != nil {
			s.logger.WarnContext(ctx, "read existing match failed", "match_id", m.ID, "error", err)
			stats.Errors++
			continue
		}
		if found && !match.CanTransition(existing.Status, m.Status) {
			// Upstream occasionally reports a decided match as live again;
			// status never moves backward, so the write is rejected.
			s.logger.WarnContext(ctx, "rejected status regression",
				"match_id", m.ID,
				"stored_status", existing.Status,
				"incoming_status", m.Status,
			)
			stats.Skipped++
			continue
		}

		created, err := s.matchRepo.Save(ctx, m)
		if err != nil {
			s.logger.WarnContext(ctx, "upsert match failed", "match_id", m.ID, "error", err)
			stats.Errors++
			continue
		}
		if created {
			stats.Added++
		} else {
			stats.Updated++
		}
	}

	if stats.Added+stats.Updated > 0 {
		s.rebuildReadCache(ctx)
	}

	return stats
}

// Query reads matches with a bounded timeout. Interactive callers sit on a
// strict response deadline, so a slow or failing read degrades to an empty
// result instead of blocking or erroring.
func (s *MatchStoreService) Query(ctx context.Context, input QueryInput) []match.Match {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchStoreService.Query")
	defer span.End()

	filter, err := s.resolveFilter(input)
	if err != nil {
		s.logger.WarnContext(ctx, "invalid match query", "filter", input.Filter, "error", err)
		return []match.Match{}
	}

	queryCtx, cancel := context.WithTimeout(ctx, s.queryTimeout)
	defer cancel()

	matches, err := s.matchRepo.List(queryCtx, filter)
	if err != nil {
		s.logger.WarnContext(ctx, "match query degraded to empty", "filter", input.Filter, "error", err)
		return []match.Match{}
	}
	return matches
}

func (s *MatchStoreService) resolveFilter(input QueryInput) (match.QueryFilter, error) {
	filter := match.QueryFilter{Since: input.Since, Limit: input.Limit}
	if filter.Limit <= 0 {
		filter.Limit = s.cacheLimit
	}

	switch match.NormalizeStatus(input.Filter) {
	case match.StatusNotStarted:
		filter.Statuses = []string{match.StatusNotStarted}
	case match.StatusRunning:
		filter.Statuses = []string{match.StatusRunning}
	case match.FilterResults:
		filter.Statuses = match.ResultStatuses()
	default:
		if input.Filter != "" && !match.IsKnownStatus(input.Filter) {
			return match.QueryFilter{}, fmt.Errorf("%w: unknown status filter %q", ErrInvalidInput, input.Filter)
		}
		if input.Filter != "" {
			filter.Statuses = []string{match.NormalizeStatus(input.Filter)}
		}
	}

	return filter, nil
}

// CachedUpcoming returns the cached not_started bucket. The cache is derived
// and best-effort; an empty result means "fall back to Query".
func (s *MatchStoreService) CachedUpcoming(ctx context.Context) []match.Match {
	return s.cachedBucket(ctx, cacheKeyUpcoming)
}

func (s *MatchStoreService) CachedRunning(ctx context.Context) []match.Match {
	return s.cachedBucket(ctx, cacheKeyRunning)
}

func (s *MatchStoreService) CachedResults(ctx context.Context) []match.Match {
	return s.cachedBucket(ctx, cacheKeyResults)
}

func (s *MatchStoreService) cachedBucket(ctx context.Context, key string) []match.Match {
	if s.readCache == nil {
		return nil
	}
	value, ok := s.readCache.Get(ctx, key)
	if !ok {
		return nil
	}
	matches, ok := value.([]match.Match)
	if !ok {
		return nil
	}
	return matches
}

// rebuildReadCache swaps all three status buckets wholesale. Incremental
// mutation of the cache is not permitted.
func (s *MatchStoreService) rebuildReadCache(ctx context.Context) {
	if s.readCache == nil {
		return
	}

	buckets := map[string][]string{
		cacheKeyUpcoming: {match.StatusNotStarted},
		cacheKeyRunning:  {match.StatusRunning},
		cacheKeyResults:  match.ResultStatuses(),
	}

	values := make(map[string]any, len(buckets))
	for key, statuses := range buckets {
		matches, err := s.matchRepo.List(ctx, match.QueryFilter{Statuses: statuses, Limit: s.cacheLimit})
		if err != nil {
			s.logger.WarnContext(ctx, "read cache rebuild skipped", "bucket", key, "error", err)
			return
		}
		values[key] = matches
	}

	s.readCache.Replace(ctx, values)
}

// DeleteOutsideWindow removes matches whose temporal anchor predates the
// cutoff. Records without a derivable anchor are kept.
func (s *MatchStoreService) DeleteOutsideWindow(ctx context.Context, cutoff time.Time) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.MatchStoreService.DeleteOutsideWindow")
	defer span.End()

	matches, err := s.matchRepo.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("list matches for window delete: %w", err)
	}

	cutoff = match.NormalizeUTC(cutoff)
	deleted := 0
	for _, m := range matches {
		anchor, ok := m.TemporalAnchor()
		if !ok || !anchor.Before(cutoff) {
			continue
		}
		if err := s.matchRepo.Delete(ctx, m.ID); err != nil {
			s.logger.WarnContext(ctx, "delete match outside window failed", "match_id", m.ID, "error", err)
			continue
		}
		deleted++
	}

	return deleted, nil
}
