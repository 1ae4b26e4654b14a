package match

import (
	"strings"
	"time"
)

const (
	StatusNotStarted = "not_started"
	StatusRunning    = "running"
	StatusFinished   = "finished"
	StatusCanceled   = "canceled"
	StatusPostponed  = "postponed"
)

// FilterResults is a synthetic query filter covering every decided status.
const FilterResults = "results"

// Match is one cached upstream match record. Snapshot carries the full
// provider payload and is opaque to the cache.
type Match struct {
	ID        int64
	Status    string
	Snapshot  []byte
	BeginAt   *time.Time
	EndAt     *time.Time
	UpdatedAt time.Time
}

func NormalizeStatus(value string) string {
	status := strings.ToLower(strings.TrimSpace(value))
	if status == "" {
		return StatusNotStarted
	}
	switch status {
	case "cancelled":
		return StatusCanceled
	}
	return status
}

func IsKnownStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusNotStarted, StatusRunning, StatusFinished, StatusCanceled, StatusPostponed:
		return true
	default:
		return false
	}
}

// IsResultStatus reports whether a status counts as decided: finished,
// canceled and postponed matches share one results surface.
func IsResultStatus(status string) bool {
	switch NormalizeStatus(status) {
	case StatusFinished, StatusCanceled, StatusPostponed:
		return true
	default:
		return false
	}
}

func ResultStatuses() []string {
	return []string{StatusFinished, StatusCanceled, StatusPostponed}
}

// IsReminderEligible reports whether a match can still receive reminders.
func IsReminderEligible(status string) bool {
	switch NormalizeStatus(status) {
	case StatusNotStarted, StatusRunning:
		return true
	default:
		return false
	}
}

func statusRank(status string) int {
	switch NormalizeStatus(status) {
	case StatusNotStarted:
		return 0
	case StatusRunning:
		return 1
	case StatusFinished, StatusCanceled, StatusPostponed:
		return 2
	default:
		return 0
	}
}

// CanTransition reports whether moving from one status to another respects
// the one-directional lifecycle. Lateral moves between decided statuses are
// allowed; any move back toward not_started or running is not.
func CanTransition(from, to string) bool {
	return statusRank(to) >= statusRank(from)
}

// NormalizeUTC pins a timestamp to UTC. Every duration computed inside the
// cache goes through this first; comparing differently tagged timestamps is
// a known upstream hazard.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// TemporalAnchor returns the timestamp that decides retention: end_at when
// present, else begin_at, else the last write. The upstream source omits
// end_at for some finished matches, so the fallback chain is load-bearing.
func (m Match) TemporalAnchor() (time.Time, bool) {
	if m.EndAt != nil && !m.EndAt.IsZero() {
		return NormalizeUTC(*m.EndAt), true
	}
	if m.BeginAt != nil && !m.BeginAt.IsZero() {
		return NormalizeUTC(*m.BeginAt), true
	}
	if !m.UpdatedAt.IsZero() {
		return NormalizeUTC(m.UpdatedAt), true
	}
	return time.Time{}, false
}

// WithinWindow reports whether the match's temporal anchor falls inside
// [now-window, now]. Matches with no derivable anchor are treated as inside
// the window; retention fails open.
func (m Match) WithinWindow(now time.Time, window time.Duration) bool {
	anchor, ok := m.TemporalAnchor()
	if !ok {
		return true
	}
	now = NormalizeUTC(now)
	return !anchor.Before(now.Add(-window)) && !anchor.After(now)
}
