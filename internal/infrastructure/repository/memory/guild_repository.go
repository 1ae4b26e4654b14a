package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
)

type GuildRepository struct {
	mu      sync.RWMutex
	configs map[string]guild.Config
}

func NewGuildRepository(seed []guild.Config) *GuildRepository {
	configs := make(map[string]guild.Config, len(seed))
	for _, cfg := range seed {
		configs[cfg.GuildID] = cfg
	}
	return &GuildRepository{configs: configs}
}

func (r *GuildRepository) Get(_ context.Context, guildID string) (guild.Config, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.configs[guildID]
	return cfg, ok, nil
}

func (r *GuildRepository) ListRemindersEnabled(_ context.Context) ([]guild.Config, error) {
	return r.list(func(cfg guild.Config) bool { return cfg.RemindersEnabled }), nil
}

func (r *GuildRepository) ListResultsEnabled(_ context.Context) ([]guild.Config, error) {
	return r.list(func(cfg guild.Config) bool { return cfg.ResultsEnabled }), nil
}

func (r *GuildRepository) Upsert(_ context.Context, cfg guild.Config) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.configs[cfg.GuildID] = cfg
	return nil
}

func (r *GuildRepository) list(keep func(guild.Config) bool) []guild.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]guild.Config, 0, len(r.configs))
	for _, cfg := range r.configs {
		if keep(cfg) {
			out = append(out, cfg)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GuildID < out[j].GuildID })
	return out
}
