package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

func newDispatcherService(env *testEnv, messenger Messenger) *DispatcherService {
	svc := NewDispatcherService(env.notifRepo, env.matchRepo, env.guildRepo, messenger, DispatcherConfig{MaxWorkers: 2}, logging.NewNop())
	svc.now = fixedNow
	return svc
}

func seedPendingReminder(t *testing.T, env *testEnv, guildID string, matchID int64, scheduledAt time.Time) {
	t.Helper()
	created, err := env.notifRepo.InsertReminder(context.Background(), notification.Reminder{
		PublicID:      "pub",
		GuildID:       guildID,
		MatchID:       matchID,
		OffsetMinutes: 15,
		ScheduledAt:   scheduledAt,
		CreatedAt:     testNow,
	})
	if err != nil || !created {
		t.Fatalf("seed reminder: created=%t err=%v", created, err)
	}
}

func seedPendingResult(t *testing.T, env *testEnv, guildID string, matchID int64) {
	t.Helper()
	created, err := env.notifRepo.InsertResult(context.Background(), notification.Result{
		PublicID:  "pub",
		GuildID:   guildID,
		MatchID:   matchID,
		CreatedAt: testNow,
	})
	if err != nil || !created {
		t.Fatalf("seed result: created=%t err=%v", created, err)
	}
}

func TestDispatchDue_DeliversExactlyOnce(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(15*time.Minute)))); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingReminder(t, env, "g1", 10, testNow.Add(-time.Minute))

	messenger := &fakeMessenger{}
	svc := newDispatcherService(env, messenger)

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.RemindersSent != 1 {
		t.Fatalf("expected 1 reminder sent, got %+v", result)
	}
	sent := messenger.sentReminders()
	if len(sent) != 1 || sent[0].ChannelID != "chan-g1" || sent[0].MatchID != 10 {
		t.Fatalf("unexpected deliveries: %v", sent)
	}

	// A second cycle must not re-deliver the sent record.
	result, err = svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	if result.RemindersSent != 0 || len(messenger.sentReminders()) != 1 {
		t.Fatalf("expected no re-delivery, got %+v", result)
	}
}

func TestDispatchDue_FutureReminderIsNotDue(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(time.Hour)))); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingReminder(t, env, "g1", 10, testNow.Add(45*time.Minute))

	messenger := &fakeMessenger{}
	svc := newDispatcherService(env, messenger)

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.NotDue != 1 || result.RemindersSent != 0 {
		t.Fatalf("expected record left pending as not due, got %+v", result)
	}
	if len(messenger.sentReminders()) != 0 {
		t.Fatal("expected no delivery for future reminder")
	}
}

func TestDispatchDue_UnresolvedDestinationStaysPending(t *testing.T) {
	env := newTestEnv() // no guild config at all
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(10, match.StatusNotStarted, ptrTime(testNow))); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingReminder(t, env, "ghost", 10, testNow.Add(-time.Minute))

	messenger := &fakeMessenger{}
	svc := newDispatcherService(env, messenger)

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.Unresolved != 1 {
		t.Fatalf("expected unresolved record, got %+v", result)
	}

	pending, _ := env.notifRepo.ListPendingReminders(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected record still pending, got %d", len(pending))
	}
}

func TestDispatchDue_DeliveryFailureRetriesNextCycle(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(10, match.StatusNotStarted, ptrTime(testNow))); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingReminder(t, env, "g1", 10, testNow.Add(-time.Minute))

	messenger := &fakeMessenger{failMatchIDs: map[int64]bool{10: true}}
	svc := newDispatcherService(env, messenger)

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.Failed != 1 || result.RemindersSent != 0 {
		t.Fatalf("expected failed delivery, got %+v", result)
	}

	// The flag was never flipped, so the next cycle retries and succeeds.
	messenger.failMatchIDs = nil
	result, err = svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("retry dispatch: %v", err)
	}
	if result.RemindersSent != 1 {
		t.Fatalf("expected successful retry, got %+v", result)
	}
}

func TestDispatchDue_ResultNotifications(t *testing.T) {
	env := newTestEnv(seedGuild("g1", false, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(20, match.StatusFinished, nil)); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingResult(t, env, "g1", 20)

	messenger := &fakeMessenger{}
	svc := newDispatcherService(env, messenger)

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.ResultsSent != 1 {
		t.Fatalf("expected 1 result sent, got %+v", result)
	}
	sent := messenger.sentResults()
	if len(sent) != 1 || sent[0].MatchID != 20 {
		t.Fatalf("unexpected result deliveries: %v", sent)
	}

	result, _ = svc.DispatchDue(ctx)
	if result.ResultsSent != 0 {
		t.Fatalf("expected no re-delivery of result, got %+v", result)
	}
}

func TestDispatchDue_DisabledToggleBlocksDelivery(t *testing.T) {
	// Guild exists but has results disabled: the record stays pending in case
	// the toggle comes back on.
	env := newTestEnv(seedGuild("g1", true, false))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(20, match.StatusFinished, nil)); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingResult(t, env, "g1", 20)

	svc := newDispatcherService(env, &fakeMessenger{})
	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.Unresolved != 1 || result.ResultsSent != 0 {
		t.Fatalf("expected unresolved, got %+v", result)
	}
}

func TestDispatchDue_RequiresMessenger(t *testing.T) {
	env := newTestEnv()
	svc := newDispatcherService(env, nil)

	if _, err := svc.DispatchDue(context.Background()); err == nil {
		t.Fatal("expected error without messenger")
	}
}

func TestStuckPendingCount(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()

	old := testNow.Add(-48 * time.Hour)
	if _, err := env.notifRepo.InsertReminder(ctx, notification.Reminder{
		PublicID: "pub", GuildID: "g1", MatchID: 1, OffsetMinutes: 15,
		ScheduledAt: old, CreatedAt: old,
	}); err != nil {
		t.Fatalf("seed reminder: %v", err)
	}
	seedPendingReminder(t, env, "g1", 2, testNow)

	svc := newDispatcherService(env, &fakeMessenger{})
	count, err := svc.StuckPendingCount(ctx)
	if err != nil {
		t.Fatalf("stuck pending count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stuck record, got %d", count)
	}
}
