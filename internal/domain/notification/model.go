package notification

import "time"

// ReminderOffsetsMinutes is the fixed ladder of pre-match reminders. It is a
// policy constant, not a per-call option.
var ReminderOffsetsMinutes = []int{60, 30, 15, 5, 0}

// Reminder is one scheduled pre-match notification. At most one row exists
// per (guild, match, offset); once Sent flips true the row is immutable.
type Reminder struct {
	ID            int64
	PublicID      string
	GuildID       string
	MatchID       int64
	OffsetMinutes int
	ScheduledAt   time.Time
	Sent          bool
	SentAt        *time.Time
	CreatedAt     time.Time
}

// Result is a finished-match notification, keyed by (guild, match) only.
type Result struct {
	ID        int64
	PublicID  string
	GuildID   string
	MatchID   int64
	Sent      bool
	SentAt    *time.Time
	CreatedAt time.Time
}
