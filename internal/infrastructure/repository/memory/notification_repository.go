package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/notification"
)

type NotificationRepository struct {
	mu        sync.RWMutex
	nextID    int64
	reminders map[int64]notification.Reminder
	results   map[int64]notification.Result
}

func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{
		nextID:    1,
		reminders: make(map[int64]notification.Reminder),
		results:   make(map[int64]notification.Result),
	}
}

func (r *NotificationRepository) InsertReminder(_ context.Context, rec notification.Reminder) (bool, error) {
	if rec.GuildID == "" || rec.MatchID <= 0 {
		return false, fmt.Errorf("reminder requires guild and match")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.reminders {
		if existing.GuildID == rec.GuildID && existing.MatchID == rec.MatchID && existing.OffsetMinutes == rec.OffsetMinutes {
			return false, nil
		}
	}

	rec.ID = r.nextID
	r.nextID++
	r.reminders[rec.ID] = rec
	return true, nil
}

func (r *NotificationRepository) ListPendingReminders(_ context.Context) ([]notification.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Reminder, 0, len(r.reminders))
	for _, rec := range r.reminders {
		if !rec.Sent {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	return out, nil
}

func (r *NotificationRepository) ListRemindersByMatch(_ context.Context, guildID string, matchID int64) ([]notification.Reminder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Reminder, 0)
	for _, rec := range r.reminders {
		if rec.GuildID == guildID && rec.MatchID == matchID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OffsetMinutes > out[j].OffsetMinutes })
	return out, nil
}

func (r *NotificationRepository) MarkReminderSent(_ context.Context, id int64, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.reminders[id]
	if !ok || rec.Sent {
		return false, nil
	}
	rec.Sent = true
	rec.SentAt = &sentAt
	r.reminders[id] = rec
	return true, nil
}

func (r *NotificationRepository) InsertResult(_ context.Context, rec notification.Result) (bool, error) {
	if rec.GuildID == "" || rec.MatchID <= 0 {
		return false, fmt.Errorf("result notification requires guild and match")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.results {
		if existing.GuildID == rec.GuildID && existing.MatchID == rec.MatchID {
			return false, nil
		}
	}

	rec.ID = r.nextID
	r.nextID++
	r.results[rec.ID] = rec
	return true, nil
}

func (r *NotificationRepository) ListPendingResults(_ context.Context) ([]notification.Result, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]notification.Result, 0, len(r.results))
	for _, rec := range r.results {
		if !rec.Sent {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *NotificationRepository) MarkResultSent(_ context.Context, id int64, sentAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.results[id]
	if !ok || rec.Sent {
		return false, nil
	}
	rec.Sent = true
	rec.SentAt = &sentAt
	r.results[id] = rec
	return true, nil
}

func (r *NotificationRepository) CountPendingOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rec := range r.reminders {
		if !rec.Sent && rec.CreatedAt.Before(cutoff) {
			count++
		}
	}
	for _, rec := range r.results {
		if !rec.Sent && rec.CreatedAt.Before(cutoff) {
			count++
		}
	}
	return count, nil
}

func (r *NotificationRepository) PurgeSentBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var purged int64
	for id, rec := range r.reminders {
		if rec.Sent && rec.SentAt != nil && rec.SentAt.Before(cutoff) {
			delete(r.reminders, id)
			purged++
		}
	}
	for id, rec := range r.results {
		if rec.Sent && rec.SentAt != nil && rec.SentAt.Before(cutoff) {
			delete(r.results, id)
			purged++
		}
	}
	return purged, nil
}
