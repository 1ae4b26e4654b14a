package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

func newDetectorService(env *testEnv, provider MatchDataProvider) *DetectorService {
	svc := NewDetectorService(env.matchRepo, env.store, env.notifRepo, env.guildRepo, provider, nil, DetectorConfig{}, logging.NewNop())
	svc.now = fixedNow
	return svc
}

func seedStaleRunning(t *testing.T, env *testEnv, id int64) {
	t.Helper()
	stale := testNow.Add(-2 * time.Minute)
	if _, err := env.matchRepo.Save(context.Background(), match.Match{
		ID:        id,
		Status:    match.StatusRunning,
		Snapshot:  []byte(fmt.Sprintf(`{"id":%d}`, id)),
		BeginAt:   ptrTime(testNow.Add(-time.Hour)),
		UpdatedAt: stale,
	}); err != nil {
		t.Fatalf("seed match: %v", err)
	}
}

func TestDetectTransitions_ConfirmsStaleRunningMatch(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()
	seedStaleRunning(t, env, 42)

	provider := &fakeProvider{finished: map[int][]ExternalMatch{
		1: {{ID: 42, Status: match.StatusFinished, EndAt: ptrTime(testNow), Snapshot: []byte(`{"id":42,"winner":"x"}`)}},
	}}
	svc := newDetectorService(env, provider)

	result, err := svc.DetectTransitions(ctx)
	if err != nil {
		t.Fatalf("detect transitions: %v", err)
	}
	if result.Suspects != 1 || result.Confirmed != 1 {
		t.Fatalf("unexpected detection result: %+v", result)
	}
	if result.Enqueued != 1 {
		t.Fatalf("expected 1 result notification enqueued, got %d", result.Enqueued)
	}

	stored, _, _ := env.matchRepo.Get(ctx, 42)
	if stored.Status != match.StatusFinished {
		t.Fatalf("expected stored status finished, got %s", stored.Status)
	}

	pending, _ := env.notifRepo.ListPendingResults(ctx)
	if len(pending) != 1 || pending[0].MatchID != 42 || pending[0].GuildID != "g1" {
		t.Fatalf("unexpected pending results: %v", pending)
	}
}

func TestDetectTransitions_NoSuspectsSkipsProvider(t *testing.T) {
	env := newTestEnv()
	provider := &fakeProvider{}
	svc := newDetectorService(env, provider)

	result, err := svc.DetectTransitions(context.Background())
	if err != nil {
		t.Fatalf("detect transitions: %v", err)
	}
	if result.Suspects != 0 {
		t.Fatalf("expected no suspects, got %+v", result)
	}
	if provider.finishedCalls != 0 {
		t.Fatalf("expected provider untouched, got %d calls", provider.finishedCalls)
	}
}

func TestDetectTransitions_FetchFailureLeavesStoreUntouched(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()
	seedStaleRunning(t, env, 42)

	provider := &fakeProvider{finishedErr: fmt.Errorf("upstream down")}
	svc := newDetectorService(env, provider)

	if _, err := svc.DetectTransitions(ctx); err == nil {
		t.Fatal("expected error from failed confirmation fetch")
	}

	stored, _, _ := env.matchRepo.Get(ctx, 42)
	if stored.Status != match.StatusRunning {
		t.Fatalf("expected status untouched, got %s", stored.Status)
	}
	pending, _ := env.notifRepo.ListPendingResults(ctx)
	if len(pending) != 0 {
		t.Fatalf("expected no notifications enqueued, got %d", len(pending))
	}
}

func TestDetectTransitions_UnconfirmedSuspectStaysRunning(t *testing.T) {
	env := newTestEnv()
	ctx := context.Background()
	seedStaleRunning(t, env, 42)

	// The finished page exists but does not mention the suspect.
	provider := &fakeProvider{finished: map[int][]ExternalMatch{
		1: {{ID: 99, Status: match.StatusFinished, Snapshot: []byte(`{}`)}},
	}}
	svc := newDetectorService(env, provider)

	result, err := svc.DetectTransitions(ctx)
	if err != nil {
		t.Fatalf("detect transitions: %v", err)
	}
	if result.StillOpen != 1 || result.Confirmed != 0 {
		t.Fatalf("expected suspect left open, got %+v", result)
	}

	stored, _, _ := env.matchRepo.Get(ctx, 42)
	if stored.Status != match.StatusRunning {
		t.Fatalf("expected status still running, got %s", stored.Status)
	}
}

func TestDetectTransitions_CanceledConfirmationDoesNotEnqueueResult(t *testing.T) {
	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()
	seedStaleRunning(t, env, 42)

	provider := &fakeProvider{finished: map[int][]ExternalMatch{
		1: {{ID: 42, Status: match.StatusCanceled, Snapshot: []byte(`{}`)}},
	}}
	svc := newDetectorService(env, provider)

	result, err := svc.DetectTransitions(ctx)
	if err != nil {
		t.Fatalf("detect transitions: %v", err)
	}
	if result.Confirmed != 1 || result.Enqueued != 0 {
		t.Fatalf("expected confirmation without enqueue, got %+v", result)
	}
}

func TestReconcileSnapshot_CatchesFinishInFullRefresh(t *testing.T) {
	env := newTestEnv(seedGuild("g1", false, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(7, match.StatusRunning, ptrTime(testNow.Add(-time.Hour)))); err != nil {
		t.Fatalf("seed match: %v", err)
	}

	fresh := []ExternalMatch{
		{ID: 7, Status: match.StatusFinished, EndAt: ptrTime(testNow), Snapshot: []byte(`{"id":7}`)},
		{ID: 8, Status: match.StatusNotStarted, Snapshot: []byte(`{"id":8}`)},
	}
	svc := newDetectorService(env, &fakeProvider{})

	result, err := svc.ReconcileSnapshot(ctx, fresh)
	if err != nil {
		t.Fatalf("reconcile snapshot: %v", err)
	}
	if result.Confirmed != 1 || result.Enqueued != 1 {
		t.Fatalf("unexpected reconcile result: %+v", result)
	}

	stored, _, _ := env.matchRepo.Get(ctx, 7)
	if stored.Status != match.StatusFinished {
		t.Fatalf("expected finished, got %s", stored.Status)
	}
}
