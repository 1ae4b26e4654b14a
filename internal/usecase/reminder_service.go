package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/platform/id"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

// ReminderService derives the fixed ladder of pre-match reminders for a
// guild without ever duplicating a (guild, match, offset) tuple.
type ReminderService struct {
	matchRepo match.Repository
	notifRepo notification.Repository
	guildRepo guild.Repository
	idGen     id.Generator
	offsets   []int
	logger    *logging.Logger
	now       func() time.Time
}

func NewReminderService(
	matchRepo match.Repository,
	notifRepo notification.Repository,
	guildRepo guild.Repository,
	idGen id.Generator,
	logger *logging.Logger,
) *ReminderService {
	if logger == nil {
		logger = logging.Default()
	}
	if idGen == nil {
		idGen = id.NewRandomGenerator()
	}

	return &ReminderService{
		matchRepo: matchRepo,
		notifRepo: notifRepo,
		guildRepo: guildRepo,
		idGen:     idGen,
		offsets:   notification.ReminderOffsetsMinutes,
		logger:    logger,
		now:       time.Now,
	}
}

// ScheduleForMatch ensures the reminder rows for one guild and match. Offsets
// whose trigger time already passed are skipped individually; later offsets
// still in the future are still created. Returns true when the match ends up
// with at least one reminder row (created now or already present).
func (s *ReminderService) ScheduleForMatch(ctx context.Context, guildID string, m match.Match) (bool, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReminderService.ScheduleForMatch")
	defer span.End()

	guildID = strings.TrimSpace(guildID)
	if guildID == "" {
		return false, fmt.Errorf("%w: guild id is required", ErrInvalidInput)
	}

	// A decided match has no future to remind about; skipping silently is
	// the contract, not an error.
	if !match.IsReminderEligible(m.Status) || m.BeginAt == nil || m.BeginAt.IsZero() {
		return false, nil
	}

	now := match.NormalizeUTC(s.now())
	begin := match.NormalizeUTC(*m.BeginAt)
	scheduled := false

	for _, offset := range s.offsets {
		triggerAt := begin.Add(-time.Duration(offset) * time.Minute)
		if triggerAt.Before(now) {
			// No retroactive firing of missed early warnings.
			continue
		}

		publicID, err := s.idGen.NewID()
		if err != nil {
			s.logger.WarnContext(ctx, "generate reminder id failed", "guild_id", guildID, "match_id", m.ID, "error", err)
			continue
		}

		created, err := s.notifRepo.InsertReminder(ctx, notification.Reminder{
			PublicID:      publicID,
			GuildID:       guildID,
			MatchID:       m.ID,
			OffsetMinutes: offset,
			ScheduledAt:   triggerAt,
			CreatedAt:     now,
		})
		if err != nil {
			s.logger.WarnContext(ctx, "insert reminder failed",
				"guild_id", guildID,
				"match_id", m.ID,
				"offset_minutes", offset,
				"error", err,
			)
			continue
		}
		// created=false means the tuple already existed; the call stays a
		// no-op for that row, never a duplicate or an error.
		_ = created
		scheduled = true
	}

	return scheduled, nil
}

// ScheduleForMatches runs ScheduleForMatch over a batch and returns the count
// of matches that ended with at least one reminder — the caller-meaningful
// unit, not the row count.
func (s *ReminderService) ScheduleForMatches(ctx context.Context, guildID string, matches []match.Match) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReminderService.ScheduleForMatches")
	defer span.End()

	count := 0
	for _, m := range matches {
		scheduled, err := s.ScheduleForMatch(ctx, guildID, m)
		if err != nil {
			return count, err
		}
		if scheduled {
			count++
		}
	}
	return count, nil
}

// ActivateGuild bulk-schedules reminders for every eligible cached match,
// used when a guild switches notifications on.
func (s *ReminderService) ActivateGuild(ctx context.Context, guildID string) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReminderService.ActivateGuild")
	defer span.End()

	matches, err := s.matchRepo.List(ctx, match.QueryFilter{
		Statuses: []string{match.StatusNotStarted, match.StatusRunning},
	})
	if err != nil {
		return 0, fmt.Errorf("list eligible matches: %w", err)
	}

	return s.ScheduleForMatches(ctx, guildID, matches)
}

// ScheduleForAllGuilds fans a batch of matches out to every guild with
// reminders enabled. Per-guild failures are logged and do not stop the rest.
func (s *ReminderService) ScheduleForAllGuilds(ctx context.Context, matches []match.Match) (int, error) {
	ctx, span := startUsecaseSpan(ctx, "usecase.ReminderService.ScheduleForAllGuilds")
	defer span.End()

	guilds, err := s.guildRepo.ListRemindersEnabled(ctx)
	if err != nil {
		return 0, fmt.Errorf("list reminder-enabled guilds: %w", err)
	}

	total := 0
	for _, g := range guilds {
		count, err := s.ScheduleForMatches(ctx, g.GuildID, matches)
		total += count
		if err != nil {
			s.logger.WarnContext(ctx, "schedule reminders for guild failed", "guild_id", g.GuildID, "error", err)
		}
	}
	return total, nil
}
