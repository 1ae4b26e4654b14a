package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	qb "github.com/arfandy/cs-match-notify/internal/platform/querybuilder"
)

type GuildRepository struct {
	db *sqlx.DB
}

func NewGuildRepository(db *sqlx.DB) *GuildRepository {
	return &GuildRepository{db: db}
}

func (r *GuildRepository) Get(ctx context.Context, guildID string) (guild.Config, bool, error) {
	query, args, err := qb.Select("*").From("guild_configs").
		Where(qb.Eq("guild_id", guildID)).
		ToSQL()
	if err != nil {
		return guild.Config{}, false, fmt.Errorf("build select guild config query: %w", err)
	}

	var row guildConfigTableModel
	if err := r.db.GetContext(ctx, &row, query, args...); err != nil {
		if isNotFound(err) {
			return guild.Config{}, false, nil
		}
		return guild.Config{}, false, fmt.Errorf("select guild config guild=%s: %w", guildID, err)
	}

	return row.toDomain(), true, nil
}

func (r *GuildRepository) ListRemindersEnabled(ctx context.Context) ([]guild.Config, error) {
	return r.listEnabled(ctx, "reminders_enabled")
}

func (r *GuildRepository) ListResultsEnabled(ctx context.Context) ([]guild.Config, error) {
	return r.listEnabled(ctx, "results_enabled")
}

func (r *GuildRepository) Upsert(ctx context.Context, cfg guild.Config) error {
	if cfg.GuildID == "" {
		return fmt.Errorf("guild id is required")
	}

	row := guildConfigTableModelFromDomain(cfg)
	query, args, err := qb.InsertModel("guild_configs", row, `ON CONFLICT (guild_id)
DO UPDATE SET
    reminders_enabled = EXCLUDED.reminders_enabled,
    results_enabled = EXCLUDED.results_enabled,
    channel_id = EXCLUDED.channel_id,
    timezone = EXCLUDED.timezone,
    updated_at = EXCLUDED.updated_at`)
	if err != nil {
		return fmt.Errorf("build upsert guild config query: %w", err)
	}

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert guild config guild=%s: %w", cfg.GuildID, err)
	}
	return nil
}

func (r *GuildRepository) listEnabled(ctx context.Context, flagColumn string) ([]guild.Config, error) {
	query, args, err := qb.Select("*").From("guild_configs").
		Where(qb.Eq(flagColumn, true)).
		OrderBy("guild_id").
		ToSQL()
	if err != nil {
		return nil, fmt.Errorf("build select enabled guild configs query: %w", err)
	}

	var rows []guildConfigTableModel
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("select enabled guild configs: %w", err)
	}

	out := make([]guild.Config, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toDomain())
	}
	return out, nil
}
