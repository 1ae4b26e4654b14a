package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

const (
	defaultWindow           = 42 * time.Hour
	defaultBackfillPageSize = 50
	defaultBackfillMaxPages = 10
)

const (
	CoverageSufficient   = "sufficient"
	CoverageInsufficient = "insufficient"
	CoveragePageLimit    = "page_limit"
)

type CleanupResult struct {
	Deleted  int            `json:"deleted"`
	Kept     int            `json:"kept"`
	ByStatus map[string]int `json:"by_status"`
}

type CoverageResult struct {
	Status        string  `json:"status"`
	CoverageHours float64 `json:"coverage_hours"`
	PagesFetched  int     `json:"pages_fetched"`
	Added         int     `json:"added"`
}

type WindowConfig struct {
	Window           time.Duration
	BackfillPageSize int
	BackfillMaxPages int
}

// WindowService keeps the match store at an approximately constant temporal
// depth: old anchors are trimmed, and thin coverage is backfilled from the
// provider's finished history.
type WindowService struct {
	matchRepo match.Repository
	store     *MatchStoreService
	provider  MatchDataProvider
	cfg       WindowConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewWindowService(
	matchRepo match.Repository,
	store *MatchStoreService,
	provider MatchDataProvider,
	cfg WindowConfig,
	logger *logging.Logger,
) *WindowService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultWindow
	}
	if cfg.BackfillPageSize <= 0 {
		cfg.BackfillPageSize = defaultBackfillPageSize
	}
	if cfg.BackfillMaxPages <= 0 {
		cfg.BackfillMaxPages = defaultBackfillMaxPages
	}

	return &WindowService{
		matchRepo: matchRepo,
		store:     store,
		provider:  provider,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *WindowService) Window() time.Duration {
	return s.cfg.Window
}

// Cleanup walks the full store and deletes every match whose temporal anchor
// fell out of the window. Anchorless records are kept; a record we cannot
// place in time is never guessed out of existence. The walk is unpaginated,
// which is fine at the documented cache size.
func (s *WindowService) Cleanup(ctx context.Context) (CleanupResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WindowService.Cleanup")
	defer span.End()

	matches, err := s.matchRepo.ListAll(ctx)
	if err != nil {
		return CleanupResult{}, fmt.Errorf("list matches for cleanup: %w", err)
	}

	now := match.NormalizeUTC(s.now())
	cutoff := now.Add(-s.cfg.Window)
	result := CleanupResult{ByStatus: make(map[string]int)}

	for _, m := range matches {
		anchor, ok := m.TemporalAnchor()
		if !ok || !anchor.Before(cutoff) {
			result.Kept++
			continue
		}
		if err := s.matchRepo.Delete(ctx, m.ID); err != nil {
			s.logger.WarnContext(ctx, "cleanup delete failed", "match_id", m.ID, "error", err)
			result.Kept++
			continue
		}
		result.Deleted++
		result.ByStatus[m.Status]++
	}

	s.logger.InfoContext(ctx, "window cleanup finished",
		"deleted", result.Deleted,
		"kept", result.Kept,
		"cutoff", cutoff,
	)
	return result, nil
}

// EnsureCoverage backfills finished history until the anchor spread reaches
// the minimum. This is a feedback loop on ingested timestamps, not a fixed
// page count: page density varies with the event calendar, so quiet weekends
// need more pages for the same hour coverage. It terminates on coverage
// reached, an empty provider page, or the page ceiling.
func (s *WindowService) EnsureCoverage(ctx context.Context, minimum time.Duration) (CoverageResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.WindowService.EnsureCoverage")
	defer span.End()

	if minimum <= 0 {
		minimum = s.cfg.Window
	}
	if s.provider == nil {
		return CoverageResult{}, fmt.Errorf("%w: match data provider is not configured", ErrDependencyUnavailable)
	}

	result := CoverageResult{Status: CoverageInsufficient}

	coverage, err := s.currentCoverage(ctx)
	if err != nil {
		return result, err
	}
	result.CoverageHours = coverage.Hours()

	for coverage < minimum {
		if result.PagesFetched >= s.cfg.BackfillMaxPages {
			result.Status = CoveragePageLimit
			s.logger.WarnContext(ctx, "coverage backfill hit page ceiling",
				"pages", result.PagesFetched,
				"coverage_hours", coverage.Hours(),
				"minimum_hours", minimum.Hours(),
			)
			return result, nil
		}

		page := result.PagesFetched + 1
		fetched, err := s.provider.FetchFinished(ctx, s.cfg.BackfillPageSize, page)
		if err != nil {
			return result, fmt.Errorf("fetch finished page %d: %w", page, err)
		}
		result.PagesFetched++

		if len(fetched) == 0 {
			// The provider has no more history; looping further would never
			// add coverage.
			return result, nil
		}

		now := s.now()
		batch := make([]match.Match, 0, len(fetched))
		for _, item := range fetched {
			batch = append(batch, item.ToMatch(now))
		}
		stats := s.store.UpsertMatches(ctx, batch)
		result.Added += stats.Added

		coverage, err = s.currentCoverage(ctx)
		if err != nil {
			return result, err
		}
		result.CoverageHours = coverage.Hours()
	}

	result.Status = CoverageSufficient
	return result, nil
}

func (s *WindowService) currentCoverage(ctx context.Context) (time.Duration, error) {
	oldest, newest, ok, err := s.matchRepo.AnchorBounds(ctx)
	if err != nil {
		return 0, fmt.Errorf("read anchor bounds: %w", err)
	}
	if !ok {
		return 0, nil
	}
	return match.NormalizeUTC(newest).Sub(match.NormalizeUTC(oldest)), nil
}
