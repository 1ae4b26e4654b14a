package guild

import "time"

// Config is the per-guild notification configuration. The cache core reads
// the toggle flags and channel to decide whether and where to dispatch; the
// command surface that edits the rest lives outside this service.
type Config struct {
	GuildID          string
	RemindersEnabled bool
	ResultsEnabled   bool
	ChannelID        string
	Timezone         string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}
