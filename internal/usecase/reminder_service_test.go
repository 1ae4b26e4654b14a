package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

func newReminderService(env *testEnv) *ReminderService {
	svc := NewReminderService(env.matchRepo, env.notifRepo, env.guildRepo, nil, logging.NewNop())
	svc.now = fixedNow
	return svc
}

func TestScheduleForMatch_SkipsElapsedOffsetsOnly(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newReminderService(env)

	// Kickoff in 45 minutes: the 60-minute warning already passed, the rest
	// of the ladder is still ahead.
	m := storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(45*time.Minute)))

	scheduled, err := svc.ScheduleForMatch(ctx, "g1", m)
	if err != nil {
		t.Fatalf("schedule for match: %v", err)
	}
	if !scheduled {
		t.Fatal("expected match scheduled")
	}

	rows, err := env.notifRepo.ListRemindersByMatch(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("list reminders: %v", err)
	}
	if len(rows) != 4 {
		t.Fatalf("expected 4 reminder rows, got %d", len(rows))
	}
	for _, row := range rows {
		if row.OffsetMinutes == 60 {
			t.Fatal("expected elapsed 60-minute offset skipped")
		}
		if row.ScheduledAt.Before(testNow) {
			t.Fatalf("reminder scheduled in the past: %s", row.ScheduledAt)
		}
	}
}

func TestScheduleForMatch_RepeatCallsNeverDuplicate(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newReminderService(env)

	m := storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(2*time.Hour)))

	for i := 0; i < 3; i++ {
		if _, err := svc.ScheduleForMatch(ctx, "g1", m); err != nil {
			t.Fatalf("schedule pass %d: %v", i, err)
		}
	}

	rows, _ := env.notifRepo.ListRemindersByMatch(ctx, "g1", 10)
	if len(rows) != 5 {
		t.Fatalf("expected exactly 5 rows after repeated scheduling, got %d", len(rows))
	}
}

func TestScheduleForMatch_IneligibleMatchIsSilentNoop(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newReminderService(env)

	finished := storedMatch(11, match.StatusFinished, ptrTime(testNow.Add(time.Hour)))
	scheduled, err := svc.ScheduleForMatch(ctx, "g1", finished)
	if err != nil {
		t.Fatalf("schedule finished match: %v", err)
	}
	if scheduled {
		t.Fatal("expected finished match skipped")
	}

	noBegin := storedMatch(12, match.StatusNotStarted, nil)
	scheduled, err = svc.ScheduleForMatch(ctx, "g1", noBegin)
	if err != nil {
		t.Fatalf("schedule match without begin: %v", err)
	}
	if scheduled {
		t.Fatal("expected match without begin time skipped")
	}
}

func TestScheduleForMatch_RequiresGuildID(t *testing.T) {
	env := newTestEnv()
	svc := newReminderService(env)

	m := storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(time.Hour)))
	if _, err := svc.ScheduleForMatch(context.Background(), "  ", m); err == nil {
		t.Fatal("expected error for blank guild id")
	}
}

func TestScheduleForAllGuilds_OnlyReminderEnabledGuilds(t *testing.T) {
	env := newTestEnv(
		seedGuild("g-on", true, false),
		seedGuild("g-off", false, true),
	)
	ctx := context.Background()
	svc := newReminderService(env)

	matches := []match.Match{storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(time.Hour)))}
	count, err := svc.ScheduleForAllGuilds(ctx, matches)
	if err != nil {
		t.Fatalf("schedule for all guilds: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 scheduled match, got %d", count)
	}

	if rows, _ := env.notifRepo.ListRemindersByMatch(ctx, "g-off", 10); len(rows) != 0 {
		t.Fatalf("expected no rows for disabled guild, got %d", len(rows))
	}
	if rows, _ := env.notifRepo.ListRemindersByMatch(ctx, "g-on", 10); len(rows) != 5 {
		t.Fatalf("expected full ladder for enabled guild, got %d", len(rows))
	}
}

func TestActivateGuild_BulkSchedulesEligibleMatches(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	svc := newReminderService(env)

	env.store.UpsertMatches(ctx, []match.Match{
		storedMatch(1, match.StatusNotStarted, ptrTime(testNow.Add(time.Hour))),
		storedMatch(2, match.StatusRunning, ptrTime(testNow.Add(30*time.Minute))),
		storedMatch(3, match.StatusFinished, ptrTime(testNow.Add(-time.Hour))),
	})

	count, err := svc.ActivateGuild(ctx, "g1")
	if err != nil {
		t.Fatalf("activate guild: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 matches scheduled, got %d", count)
	}
	if rows, _ := env.notifRepo.ListRemindersByMatch(ctx, "g1", 3); len(rows) != 0 {
		t.Fatalf("expected no reminders for finished match, got %d", len(rows))
	}
}
