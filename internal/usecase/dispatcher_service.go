package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

const (
	defaultDispatchWorkers = 4
	stuckPendingAge        = 24 * time.Hour
)

// Messenger is the outbound chat collaborator. Failures must surface as
// errors; a swallowed failure would break the retry-until-success policy.
type Messenger interface {
	SendReminder(ctx context.Context, channelID string, m match.Match, offsetMinutes int) error
	SendResult(ctx context.Context, channelID string, m match.Match) error
}

type DispatchResult struct {
	RemindersSent int `json:"reminders_sent"`
	ResultsSent   int `json:"results_sent"`
	NotDue        int `json:"not_due"`
	Unresolved    int `json:"unresolved"`
	Failed        int `json:"failed"`
}

type DispatcherConfig struct {
	MaxWorkers int
}

// DispatcherService is the single writer of the sent flag: nothing else in
// the system may flip it, which is what makes delivery exactly-once per
// record. Anything that cannot be delivered right now stays pending and is
// retried on the next cycle.
type DispatcherService struct {
	notifRepo notification.Repository
	matchRepo match.Repository
	guildRepo guild.Repository
	messenger Messenger
	cfg       DispatcherConfig
	logger    *logging.Logger
	now       func() time.Time
}

func NewDispatcherService(
	notifRepo notification.Repository,
	matchRepo match.Repository,
	guildRepo guild.Repository,
	messenger Messenger,
	cfg DispatcherConfig,
	logger *logging.Logger,
) *DispatcherService {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = defaultDispatchWorkers
	}

	return &DispatcherService{
		notifRepo: notifRepo,
		matchRepo: matchRepo,
		guildRepo: guildRepo,
		messenger: messenger,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
	}
}

// DispatchDue attempts delivery for every due pending record: reminders
// first, then results, in the same tick. The two passes are independent; one
// failing never blocks the other.
func (s *DispatcherService) DispatchDue(ctx context.Context) (DispatchResult, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.DispatcherService.DispatchDue")
	defer span.End()

	if s.messenger == nil {
		return DispatchResult{}, fmt.Errorf("%w: messenger is not configured", ErrDependencyUnavailable)
	}

	pool, err := ants.NewPool(s.cfg.MaxWorkers)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("create dispatch worker pool: %w", err)
	}
	defer pool.Release()

	var remindersSent, resultsSent, notDue, unresolved, failed atomic.Int32
	var workers sync.WaitGroup
	now := match.NormalizeUTC(s.now())

	reminders, err := s.notifRepo.ListPendingReminders(ctx)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("list pending reminders: %w", err)
	}
	for _, r := range reminders {
		if match.NormalizeUTC(r.ScheduledAt).After(now) {
			notDue.Add(1)
			continue
		}

		channelID, m, ok := s.resolveDelivery(ctx, r.GuildID, r.MatchID, func(cfg guild.Config) bool {
			return cfg.RemindersEnabled
		})
		if !ok {
			unresolved.Add(1)
			continue
		}

		r := r
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := s.messenger.SendReminder(ctx, channelID, m, r.OffsetMinutes); err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "reminder delivery failed",
					"guild_id", r.GuildID,
					"match_id", r.MatchID,
					"offset_minutes", r.OffsetMinutes,
					"error", err,
				)
				return
			}
			updated, err := s.notifRepo.MarkReminderSent(ctx, r.ID, match.NormalizeUTC(s.now()))
			if err != nil {
				failed.Add(1)
				s.logger.ErrorContext(ctx, "mark reminder sent failed", "reminder_id", r.ID, "error", err)
				return
			}
			if updated {
				remindersSent.Add(1)
			}
		}); err != nil {
			workers.Done()
			failed.Add(1)
		}
	}
	workers.Wait()

	results, err := s.notifRepo.ListPendingResults(ctx)
	if err != nil {
		// The reminder pass already ran; report what it did alongside the error.
		return s.collect(&remindersSent, &resultsSent, &notDue, &unresolved, &failed),
			fmt.Errorf("list pending results: %w", err)
	}
	for _, r := range results {
		channelID, m, ok := s.resolveDelivery(ctx, r.GuildID, r.MatchID, func(cfg guild.Config) bool {
			return cfg.ResultsEnabled
		})
		if !ok {
			unresolved.Add(1)
			continue
		}

		r := r
		workers.Add(1)
		if err := pool.Submit(func() {
			defer workers.Done()
			if err := s.messenger.SendResult(ctx, channelID, m); err != nil {
				failed.Add(1)
				s.logger.WarnContext(ctx, "result delivery failed",
					"guild_id", r.GuildID,
					"match_id", r.MatchID,
					"error", err,
				)
				return
			}
			updated, err := s.notifRepo.MarkResultSent(ctx, r.ID, match.NormalizeUTC(s.now()))
			if err != nil {
				failed.Add(1)
				s.logger.ErrorContext(ctx, "mark result sent failed", "result_id", r.ID, "error", err)
				return
			}
			if updated {
				resultsSent.Add(1)
			}
		}); err != nil {
			workers.Done()
			failed.Add(1)
		}
	}
	workers.Wait()

	return s.collect(&remindersSent, &resultsSent, &notDue, &unresolved, &failed), nil
}

// resolveDelivery maps a guild to its configured channel and loads the match
// the record points at. Any miss leaves the record pending: an unknown guild
// may reconnect and an unset channel may be configured later, so no
// automatic abandonment happens here.
func (s *DispatcherService) resolveDelivery(
	ctx context.Context,
	guildID string,
	matchID int64,
	enabled func(guild.Config) bool,
) (string, match.Match, bool) {
	cfg, found, err := s.guildRepo.Get(ctx, guildID)
	if err != nil || !found {
		s.logger.WarnContext(ctx, "destination guild not resolvable", "guild_id", guildID, "error", err)
		return "", match.Match{}, false
	}
	if !enabled(cfg) || cfg.ChannelID == "" {
		s.logger.DebugContext(ctx, "guild has no usable destination", "guild_id", guildID)
		return "", match.Match{}, false
	}

	m, found, err := s.matchRepo.Get(ctx, matchID)
	if err != nil || !found {
		s.logger.WarnContext(ctx, "match for pending notification not in store",
			"guild_id", guildID,
			"match_id", matchID,
			"error", err,
		)
		return "", match.Match{}, false
	}

	return cfg.ChannelID, m, true
}

// StuckPendingCount reports pending records older than a day, so operators
// can see buildup from permanently misconfigured guilds. Retry itself is
// unbounded by design.
func (s *DispatcherService) StuckPendingCount(ctx context.Context) (int, error) {
	cutoff := match.NormalizeUTC(s.now()).Add(-stuckPendingAge)
	return s.notifRepo.CountPendingOlderThan(ctx, cutoff)
}

func (s *DispatcherService) collect(remindersSent, resultsSent, notDue, unresolved, failed *atomic.Int32) DispatchResult {
	return DispatchResult{
		RemindersSent: int(remindersSent.Load()),
		ResultsSent:   int(resultsSent.Load()),
		NotDue:        int(notDue.Load()),
		Unresolved:    int(unresolved.Load()),
		Failed:        int(failed.Load()),
	}
}
