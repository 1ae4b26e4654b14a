package httpapi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arfandy/cs-match-notify/internal/usecase"
)

const defaultPurgeRetentionDays = 7

// The job endpoints run one cycle synchronously and return its counters.
// They share the cycle runner's write lock with the background loops, so a
// manual trigger can never interleave with a scheduled one.

func (h *Handler) RunRefreshJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunRefreshJob")
	defer span.End()

	result, err := h.cycles.RunRefreshCycle(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "manual refresh cycle failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunDetectJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunDetectJob")
	defer span.End()

	result, err := h.cycles.RunDetectCycle(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "manual detect cycle failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunDispatchJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunDispatchJob")
	defer span.End()

	result, err := h.cycles.RunDispatchCycle(ctx)
	if err != nil {
		h.logger.WarnContext(ctx, "manual dispatch cycle failed", "error", err)
		writeError(ctx, w, err)
		return
	}

	writeSuccess(ctx, w, http.StatusOK, result)
}

func (h *Handler) RunPurgeSentJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.RunPurgeSentJob")
	defer span.End()

	retentionDays := defaultPurgeRetentionDays
	if rawDays := strings.TrimSpace(r.URL.Query().Get("days")); rawDays != "" {
		parsed, err := strconv.Atoi(rawDays)
		if err != nil || parsed < 1 {
			writeError(ctx, w, fmt.Errorf("%w: invalid days %q", usecase.ErrInvalidInput, rawDays))
			return
		}
		retentionDays = parsed
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -retentionDays)
	purged, err := h.notifRepo.PurgeSentBefore(ctx, cutoff)
	if err != nil {
		h.logger.WarnContext(ctx, "purge sent notifications failed", "error", err)
		writeError(ctx, w, fmt.Errorf("purge sent notifications: %w", err))
		return
	}

	writeSuccess(ctx, w, http.StatusOK, map[string]any{
		"purged": purged,
		"cutoff": cutoff,
	})
}
