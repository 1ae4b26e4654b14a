package httpapi

import (
	"net/http"

	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

func NewRouter(handler *Handler, logger *logging.Logger, internalJobToken string) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /v1/matches", handler.ListMatches)

	mux.Handle("GET /v1/internal/stats", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.GetStats)))
	mux.Handle("PUT /v1/internal/guilds/{guildID}/config", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.UpsertGuildConfig)))
	mux.Handle("POST /v1/internal/jobs/refresh", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunRefreshJob)))
	mux.Handle("POST /v1/internal/jobs/detect", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunDetectJob)))
	mux.Handle("POST /v1/internal/jobs/dispatch", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunDispatchJob)))
	mux.Handle("POST /v1/internal/jobs/purge-sent", RequireInternalJobToken(internalJobToken, http.HandlerFunc(handler.RunPurgeSentJob)))

	return RequestTracing(RequestLogging(logger, recoverPanic(logger, mux)))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
