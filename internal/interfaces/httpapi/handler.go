package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	jsoniter "github.com/json-iterator/go"

	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
	"github.com/arfandy/cs-match-notify/internal/usecase"
)

type Handler struct {
	store      *usecase.MatchStoreService
	cycles     *usecase.CycleRunner
	dispatcher *usecase.DispatcherService
	reminders  *usecase.ReminderService
	guildRepo  guild.Repository
	notifRepo  notification.Repository
	validator  *validator.Validate
	logger     *logging.Logger
}

func NewHandler(
	store *usecase.MatchStoreService,
	cycles *usecase.CycleRunner,
	dispatcher *usecase.DispatcherService,
	reminders *usecase.ReminderService,
	guildRepo guild.Repository,
	notifRepo notification.Repository,
	logger *logging.Logger,
) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{
		store:      store,
		cycles:     cycles,
		dispatcher: dispatcher,
		reminders:  reminders,
		guildRepo:  guildRepo,
		notifRepo:  notifRepo,
		validator:  validator.New(),
		logger:     logger,
	}
}

func (h *Handler) validateRequest(ctx context.Context, payload any) error {
	if err := h.validator.StructCtx(ctx, payload); err != nil {
		return fmt.Errorf("%w: validation failed: %v", usecase.ErrInvalidInput, err)
	}
	return nil
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeSuccess(r.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
}

type matchView struct {
	ID        int64           `json:"id"`
	Status    string          `json:"status"`
	BeginAt   *time.Time      `json:"begin_at,omitempty"`
	EndAt     *time.Time      `json:"end_at,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
	Match     json.RawMessage `json:"match,omitempty"`
}

// ListMatches serves the read surface. Known buckets come from the derived
// cache when it is warm; anything else (or a cold cache) goes through the
// bounded Query path, which degrades to empty rather than erroring.
func (h *Handler) ListMatches(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.ListMatches")
	defer span.End()

	filter := strings.ToLower(strings.TrimSpace(r.URL.Query().Get("filter")))
	if filter == "" || filter == "upcoming" {
		filter = match.StatusNotStarted
	}

	limit := 0
	if rawLimit := strings.TrimSpace(r.URL.Query().Get("limit")); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil || parsed < 0 {
			writeError(ctx, w, fmt.Errorf("%w: invalid limit %q", usecase.ErrInvalidInput, rawLimit))
			return
		}
		limit = parsed
	}

	var matches []match.Match
	switch filter {
	case match.StatusNotStarted:
		matches = h.store.CachedUpcoming(ctx)
	case match.StatusRunning:
		matches = h.store.CachedRunning(ctx)
	case match.FilterResults:
		matches = h.store.CachedResults(ctx)
	}
	if len(matches) == 0 {
		matches = h.store.Query(ctx, usecase.QueryInput{Filter: filter, Limit: limit})
	}
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}

	out := make([]matchView, 0, len(matches))
	for _, m := range matches {
		out = append(out, matchView{
			ID:        m.ID,
			Status:    m.Status,
			BeginAt:   m.BeginAt,
			EndAt:     m.EndAt,
			UpdatedAt: m.UpdatedAt,
			Match:     json.RawMessage(m.Snapshot),
		})
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"filter":  filter,
		"matches": out,
	})
}

func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStats")
	defer span.End()

	stuckPending, err := h.dispatcher.StuckPendingCount(ctx)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("count stuck pending notifications: %w", err))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"stuck_pending":  stuckPending,
		"cached_buckets": map[string]int{
			"upcoming": len(h.store.CachedUpcoming(ctx)),
			"running":  len(h.store.CachedRunning(ctx)),
			"results":  len(h.store.CachedResults(ctx)),
		},
	})
}

type guildConfigRequest struct {
	RemindersEnabled bool   `json:"reminders_enabled"`
	ResultsEnabled   bool   `json:"results_enabled"`
	ChannelID        string `json:"channel_id" validate:"omitempty,numeric,max=32"`
	Timezone         string `json:"timezone" validate:"omitempty,timezone"`
}

// UpsertGuildConfig writes a guild's notification settings. Turning reminders
// on also bulk-schedules reminders for every eligible cached match, so a
// freshly activated guild does not wait for the next refresh cycle.
func (h *Handler) UpsertGuildConfig(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.UpsertGuildConfig")
	defer span.End()

	guildID := strings.TrimSpace(r.PathValue("guildID"))
	if guildID == "" {
		writeError(ctx, w, fmt.Errorf("%w: guild id is required", usecase.ErrInvalidInput))
		return
	}

	decoder := jsoniter.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	var req guildConfigRequest
	if err := decoder.Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(ctx, w, fmt.Errorf("%w: invalid JSON payload: %v", usecase.ErrInvalidInput, err))
		return
	}
	if err := h.validateRequest(ctx, req); err != nil {
		writeError(ctx, w, err)
		return
	}

	existing, found, err := h.guildRepo.Get(ctx, guildID)
	if err != nil {
		writeError(ctx, w, fmt.Errorf("read guild config: %w", err))
		return
	}

	now := time.Now().UTC()
	cfg := guild.Config{
		GuildID:          guildID,
		RemindersEnabled: req.RemindersEnabled,
		ResultsEnabled:   req.ResultsEnabled,
		ChannelID:        strings.TrimSpace(req.ChannelID),
		Timezone:         strings.TrimSpace(req.Timezone),
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if found {
		cfg.CreatedAt = existing.CreatedAt
	}

	if err := h.guildRepo.Upsert(ctx, cfg); err != nil {
		writeError(ctx, w, fmt.Errorf("upsert guild config: %w", err))
		return
	}

	scheduled := 0
	if cfg.RemindersEnabled && (!found || !existing.RemindersEnabled) {
		scheduled, err = h.reminders.ActivateGuild(ctx, guildID)
		if err != nil {
			h.logger.WarnContext(ctx, "bulk reminder scheduling on activation failed", "guild_id", guildID, "error", err)
		}
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"guild_id":          cfg.GuildID,
		"reminders_enabled": cfg.RemindersEnabled,
		"results_enabled":   cfg.ResultsEnabled,
		"channel_id":        cfg.ChannelID,
		"timezone":          cfg.Timezone,
		"scheduled":         scheduled,
	})
}
