package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

type messengerMock struct {
	mock.Mock
}

func (m *messengerMock) SendReminder(ctx context.Context, channelID string, mt match.Match, offsetMinutes int) error {
	args := m.Called(ctx, channelID, mt, offsetMinutes)
	return args.Error(0)
}

func (m *messengerMock) SendResult(ctx context.Context, channelID string, mt match.Match) error {
	args := m.Called(ctx, channelID, mt)
	return args.Error(0)
}

func TestDispatchDue_SendCalledOncePerDueRecordUsingMock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(seedGuild("g1", true, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(10, match.StatusNotStarted, ptrTime(testNow.Add(15*time.Minute)))); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingReminder(t, env, "g1", 10, testNow.Add(-time.Minute))

	messenger := &messengerMock{}
	messenger.
		On("SendReminder", mock.Anything, "chan-g1", mock.MatchedBy(func(mt match.Match) bool { return mt.ID == 10 }), 15).
		Return(nil).
		Once()

	svc := NewDispatcherService(env.notifRepo, env.matchRepo, env.guildRepo, messenger, DispatcherConfig{MaxWorkers: 1}, logging.NewNop())
	svc.now = fixedNow

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.RemindersSent != 1 {
		t.Fatalf("expected 1 reminder sent, got %+v", result)
	}

	// Once the flag is flipped the record is never offered to the messenger
	// again; the Once() expectation would fail on a second call.
	if _, err := svc.DispatchDue(ctx); err != nil {
		t.Fatalf("second dispatch: %v", err)
	}
	messenger.AssertExpectations(t)
}

func TestDispatchDue_MessengerErrorLeavesRecordPendingUsingMock(t *testing.T) {
	t.Parallel()

	env := newTestEnv(seedGuild("g1", false, true))
	ctx := context.Background()

	if _, err := env.matchRepo.Save(ctx, storedMatch(20, match.StatusFinished, nil)); err != nil {
		t.Fatalf("seed match: %v", err)
	}
	seedPendingResult(t, env, "g1", 20)

	messenger := &messengerMock{}
	messenger.
		On("SendResult", mock.Anything, "chan-g1", mock.MatchedBy(func(mt match.Match) bool { return mt.ID == 20 })).
		Return(errors.New("gateway unavailable")).
		Once()

	svc := NewDispatcherService(env.notifRepo, env.matchRepo, env.guildRepo, messenger, DispatcherConfig{MaxWorkers: 1}, logging.NewNop())
	svc.now = fixedNow

	result, err := svc.DispatchDue(ctx)
	if err != nil {
		t.Fatalf("dispatch due: %v", err)
	}
	if result.Failed != 1 || result.ResultsSent != 0 {
		t.Fatalf("expected failed delivery, got %+v", result)
	}

	pending, _ := env.notifRepo.ListPendingResults(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected record still pending, got %d", len(pending))
	}
	messenger.AssertExpectations(t)
}
