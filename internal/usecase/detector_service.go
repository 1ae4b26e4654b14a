package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/platform/id"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

const (
	defaultStaleAfter   = time.Minute
	defaultConfirmPages = 3
	defaultConfirmSize  = 50
)

type DetectionResult struct {
	Suspects    int `json:"suspects"`
	Confirmed   int `json:"confirmed"`
	StillOpen   int `json:"still_open"`
	Enqueued    int `json:"enqueued"`
	PagesLoaded int `json:"pages_loaded"`
}

type DetectorConfig struct {
	StaleAfter      time.Duration
	ConfirmPages    int
	ConfirmPageSize int
}

// DetectorService notices matches whose true status has advanced even though
// the only signal is absence from the running list. Staleness alone is never
// treated as evidence: a suspect is only transitioned on a positive,
// successful confirmation fetched from the provider.
type DetectorService struct {
	matchRepo match.Repository
	store     *MatchStoreService
	notifRepo notification.Repository
	guildRepo guild.Repository
	provider  MatchDataProvider
	idGen     id.Generator
	cfg       DetectorConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewDetectorService(
	matchRepo match.Repository,
	store *MatchStoreService,
	notifRepo notification.Repository,
	guildRepo guild.Repository,
	provider MatchDataProvider,
	idGen id.Generator,
	cfg DetectorConfig,
	logger *logging.Logger,
) *DetectorService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewRandomGenerator()
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = defaultStaleAfter
	}
	if cfg.ConfirmPages <= 0 {
		cfg.ConfirmPages = defaultConfirmPages
	}
	if cfg.ConfirmPageSize <= 0 {
		cfg.ConfirmPageSize = defaultConfirmSize
	}

	return &DetectorService{
		matchRepo: matchRepo,
		store:     store,
		notifRepo: notifRepo,
		guildRepo: guildRepo,
		provider:  provider,
		idGen:     idGen,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// DetectTransitions is the fast path, run every short cycle. Finding zero
// suspects must stay cheap; the provider is only contacted when there is
// something to confirm.
func (s *DetectorService) DetectTransitions(ctx context.Context) (DetectionResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DetectorService.DetectTransitions")
	defer span.End()

	cutoff := match.NormalizeUTC(s.now()).Add(-s.cfg.StaleAfter)
	suspects, err := s.matchRepo.ListRunningUpdatedBefore(ctx, cutoff)
	if err != nil {
		return DetectionResult{}, fmt.Errorf("list stale running matches: %w", err)
	}

	result := DetectionResult{Suspects: len(suspects)}
	if len(suspects) == 0 {
		return result, nil
	}

	// Several pages, not one: a recent finish can be pushed past page 1 by
	// unrelated finishes, and under-fetching here turns into a missed
	// transition.
	lookup := make(map[int64]ExternalMatch, s.cfg.ConfirmPages*s.cfg.ConfirmPageSize)
	for page := 1; page <= s.cfg.ConfirmPages; page++ {
		fetched, err := s.provider.FetchFinished(ctx, s.cfg.ConfirmPageSize, page)
		if err != nil {
			// No positive confirmation, no mutation. The next cycle retries.
			return result, fmt.Errorf("fetch finished page %d for confirmation: %w", page, err)
		}
		result.PagesLoaded++
		for _, item := range fetched {
			lookup[item.ID] = item
		}
		if len(fetched) < s.cfg.ConfirmPageSize {
			break
		}
	}

	for _, suspect := range suspects {
		confirmed, ok := lookup[suspect.ID]
		if !ok {
			// Not re-confirmed as running, but not confirmed finished either.
			// Staleness by itself proves nothing; leave the row untouched.
			result.StillOpen++
			continue
		}
		enqueued, err := s.applyTransition(ctx, suspect, confirmed)
		if err != nil {
			s.logger.WarnContext(ctx, "apply transition failed", "match_id", suspect.ID, "error", err)
			continue
		}
		result.Confirmed++
		result.Enqueued += enqueued
	}

	return result, nil
}

// ReconcileSnapshot is the slow path, run on the coarse refresh cycle. It
// applies the same suspect/confirm logic against a full freshly fetched match
// set, catching anything the fast path's page depth missed.
func (s *DetectorService) ReconcileSnapshot(ctx context.Context, fresh []ExternalMatch) (DetectionResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DetectorService.ReconcileSnapshot")
	defer span.End()

	lookup := make(map[int64]ExternalMatch, len(fresh))
	for _, item := range fresh {
		if match.IsResultStatus(item.Status) {
			lookup[item.ID] = item
		}
	}

	running, err := s.matchRepo.List(ctx, match.QueryFilter{Statuses: []string{match.StatusRunning}})
	if err != nil {
		return DetectionResult{}, fmt.Errorf("list running matches: %w", err)
	}

	result := DetectionResult{Suspects: len(running)}
	for _, stored := range running {
		confirmed, ok := lookup[stored.ID]
		if !ok {
			result.StillOpen++
			continue
		}
		enqueued, err := s.applyTransition(ctx, stored, confirmed)
		if err != nil {
			s.logger.WarnContext(ctx, "apply reconciled transition failed", "match_id", stored.ID, "error", err)
			continue
		}
		result.Confirmed++
		result.Enqueued += enqueued
	}

	return result, nil
}

// applyTransition overwrites the stored row with the authoritative decided
// snapshot and enqueues one result notification per guild with result
// notifications enabled.
func (s *DetectorService) applyTransition(ctx context.Context, stored match.Match, confirmed ExternalMatch) (int, error) {
	newStatus := match.NormalizeStatus(confirmed.Status)
	if !match.CanTransition(stored.Status, newStatus) {
		s.logger.WarnContext(ctx, "ignoring regressive transition",
			"match_id", stored.ID,
			"stored_status", stored.Status,
			"incoming_status", newStatus,
		)
		return 0, nil
	}

	stats := s.store.UpsertMatches(ctx, []match.Match{confirmed.ToMatch(s.now())})
	if stats.Errors > 0 {
		return 0, fmt.Errorf("persist confirmed transition for match %d", stored.ID)
	}

	s.logger.InfoContext(ctx, "match transition confirmed",
		"match_id", stored.ID,
		"from", stored.Status,
		"to", newStatus,
	)

	if newStatus != match.StatusFinished {
		return 0, nil
	}
	return s.enqueueResultNotifications(ctx, stored.ID)
}

func (s *DetectorService) enqueueResultNotifications(ctx context.Context, matchID int64) (int, error) {
	guilds, err := s.guildRepo.ListResultsEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list result-enabled guilds: %w", err)
	}

	enqueued := 0
	for _, g := range guilds {
		publicID, err := s.idGen.NewID()
		if err != nil {
			s.logger.WarnContext(ctx, "generate result notification id failed", "guild_id", g.GuildID, "error", err)
			continue
		}
		created, err := s.notifRepo.InsertResult(ctx, notification.Result{
			PublicID:  publicID,
			GuildID:   g.GuildID,
			MatchID:   matchID,
			CreatedAt: match.NormalizeUTC(s.now()),
		})
		if err != nil {
			s.logger.WarnContext(ctx, "enqueue result notification failed",
				"guild_id", g.GuildID,
				"match_id", matchID,
				"error", err,
			)
			continue
		}
		if created {
			enqueued++
		}
	}

	return enqueued, nil
}
