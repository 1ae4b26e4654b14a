package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/infrastructure/repository/memory"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

var testNow = time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func ptrTime(t time.Time) *time.Time { return &t }

func externalMatch(id int64, status string, beginAt *time.Time) ExternalMatch {
	return ExternalMatch{
		ID:       id,
		Status:   status,
		BeginAt:  beginAt,
		Snapshot: []byte(fmt.Sprintf(`{"id":%d}`, id)),
	}
}

func storedMatch(id int64, status string, beginAt *time.Time) match.Match {
	return match.Match{
		ID:        id,
		Status:    status,
		Snapshot:  []byte(fmt.Sprintf(`{"id":%d}`, id)),
		BeginAt:   beginAt,
		UpdatedAt: testNow,
	}
}

// fakeProvider returns canned pages per category; unset categories return
// empty pages. finished is keyed by page number.
type fakeProvider struct {
	mu            sync.Mutex
	upcoming      []ExternalMatch
	running       []ExternalMatch
	finished      map[int][]ExternalMatch
	canceled      []ExternalMatch
	upcomingErr   error
	runningErr    error
	finishedErr   error
	canceledErr   error
	finishedCalls int
}

func (p *fakeProvider) FetchUpcoming(_ context.Context, _ int) ([]ExternalMatch, error) {
	if p.upcomingErr != nil {
		return nil, p.upcomingErr
	}
	return p.upcoming, nil
}

func (p *fakeProvider) FetchRunning(_ context.Context) ([]ExternalMatch, error) {
	if p.runningErr != nil {
		return nil, p.runningErr
	}
	return p.running, nil
}

func (p *fakeProvider) FetchFinished(_ context.Context, _ int, page int) ([]ExternalMatch, error) {
	p.mu.Lock()
	p.finishedCalls++
	p.mu.Unlock()
	if p.finishedErr != nil {
		return nil, p.finishedErr
	}
	return p.finished[page], nil
}

func (p *fakeProvider) FetchCanceled(_ context.Context, _ int) ([]ExternalMatch, error) {
	if p.canceledErr != nil {
		return nil, p.canceledErr
	}
	return p.canceled, nil
}

type sentReminder struct {
	ChannelID     string
	MatchID       int64
	OffsetMinutes int
}

type sentResult struct {
	ChannelID string
	MatchID   int64
}

// fakeMessenger records deliveries; failMatchIDs makes sends for those
// matches fail.
type fakeMessenger struct {
	mu           sync.Mutex
	reminders    []sentReminder
	results      []sentResult
	failMatchIDs map[int64]bool
}

func (m *fakeMessenger) SendReminder(_ context.Context, channelID string, mt match.Match, offsetMinutes int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMatchIDs[mt.ID] {
		return fmt.Errorf("send reminder failed for match %d", mt.ID)
	}
	m.reminders = append(m.reminders, sentReminder{ChannelID: channelID, MatchID: mt.ID, OffsetMinutes: offsetMinutes})
	return nil
}

func (m *fakeMessenger) SendResult(_ context.Context, channelID string, mt match.Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failMatchIDs[mt.ID] {
		return fmt.Errorf("send result failed for match %d", mt.ID)
	}
	m.results = append(m.results, sentResult{ChannelID: channelID, MatchID: mt.ID})
	return nil
}

func (m *fakeMessenger) sentReminders() []sentReminder {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentReminder(nil), m.reminders...)
}

func (m *fakeMessenger) sentResults() []sentResult {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]sentResult(nil), m.results...)
}

func seedGuild(id string, reminders, results bool) guild.Config {
	return guild.Config{
		GuildID:          id,
		RemindersEnabled: reminders,
		ResultsEnabled:   results,
		ChannelID:        "chan-" + id,
		CreatedAt:        testNow,
		UpdatedAt:        testNow,
	}
}

type testEnv struct {
	matchRepo *memory.MatchRepository
	notifRepo *memory.NotificationRepository
	guildRepo *memory.GuildRepository
	store     *MatchStoreService
}

func newTestEnv(guilds ...guild.Config) *testEnv {
	env := &testEnv{
		matchRepo: memory.NewMatchRepository(),
		notifRepo: memory.NewNotificationRepository(),
		guildRepo: memory.NewGuildRepository(guilds),
	}
	env.store = NewMatchStoreService(env.matchRepo, nil, time.Second, 50, logging.NewNop())
	env.store.now = fixedNow
	return env
}
