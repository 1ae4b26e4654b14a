package guild

import "context"

type Repository interface {
	Get(ctx context.Context, guildID string) (Config, bool, error)
	ListRemindersEnabled(ctx context.Context) ([]Config, error)
	ListResultsEnabled(ctx context.Context) ([]Config, error)
	Upsert(ctx context.Context, cfg Config) error
}
