package postgres

import (
	"time"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
)

type guildConfigTableModel struct {
	GuildID          string    `db:"guild_id"`
	RemindersEnabled bool      `db:"reminders_enabled"`
	ResultsEnabled   bool      `db:"results_enabled"`
	ChannelID        string    `db:"channel_id"`
	Timezone         string    `db:"timezone"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

func (row guildConfigTableModel) toDomain() guild.Config {
	return guild.Config{
		GuildID:          row.GuildID,
		RemindersEnabled: row.RemindersEnabled,
		ResultsEnabled:   row.ResultsEnabled,
		ChannelID:        row.ChannelID,
		Timezone:         row.Timezone,
		CreatedAt:        row.CreatedAt.UTC(),
		UpdatedAt:        row.UpdatedAt.UTC(),
	}
}

func guildConfigTableModelFromDomain(cfg guild.Config) guildConfigTableModel {
	return guildConfigTableModel{
		GuildID:          cfg.GuildID,
		RemindersEnabled: cfg.RemindersEnabled,
		ResultsEnabled:   cfg.ResultsEnabled,
		ChannelID:        cfg.ChannelID,
		Timezone:         cfg.Timezone,
		CreatedAt:        cfg.CreatedAt.UTC(),
		UpdatedAt:        cfg.UpdatedAt.UTC(),
	}
}
