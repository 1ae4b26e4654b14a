package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/arfandy/cs-match-notify/external/pandascore"
	"github.com/arfandy/cs-match-notify/internal/config"
	"github.com/arfandy/cs-match-notify/internal/domain/guild"
	"github.com/arfandy/cs-match-notify/internal/domain/match"
	"github.com/arfandy/cs-match-notify/internal/domain/notification"
	"github.com/arfandy/cs-match-notify/internal/infrastructure/repository/memory"
	"github.com/arfandy/cs-match-notify/internal/infrastructure/repository/postgres"
	"github.com/arfandy/cs-match-notify/internal/interfaces/discord"
	"github.com/arfandy/cs-match-notify/internal/interfaces/httpapi"
	"github.com/arfandy/cs-match-notify/internal/platform/cache"
	idgen "github.com/arfandy/cs-match-notify/internal/platform/id"
	"github.com/arfandy/cs-match-notify/internal/platform/logging"
	"github.com/arfandy/cs-match-notify/internal/platform/resilience"
	"github.com/arfandy/cs-match-notify/internal/usecase"
)

// App owns every long-lived component: the HTTP server, the cycle loops, and
// the database and gateway connections they run on.
type App struct {
	Server *http.Server
	Cycles *usecase.CycleRunner

	db      *sqlx.DB
	session *discordgo.Session
	logger  *logging.Logger
}

func New(cfg config.Config, logger *logging.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Default()
	}

	app := &App{logger: logger}

	var (
		matchRepo match.Repository
		notifRepo notification.Repository
		guildRepo guild.Repository
	)
	if cfg.DBURL != "" {
		db, err := sqlx.Connect("postgres", cfg.DBURL)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.db = db
		matchRepo = postgres.NewMatchRepository(db)
		notifRepo = postgres.NewNotificationRepository(db)
		guildRepo = postgres.NewGuildRepository(db)
		logger.Info("database connected", "db", dbNameFromURL(cfg.DBURL), "url", redactDBURL(cfg.DBURL))
	} else {
		matchRepo = memory.NewMatchRepository()
		notifRepo = memory.NewNotificationRepository()
		guildRepo = memory.NewGuildRepository(nil)
		logger.Warn("DATABASE_URL is empty, using in-memory repositories")
	}

	var readCache *cache.Store
	if cfg.CacheEnabled {
		readCache = cache.NewStore(cfg.CacheTTL)
	}

	var provider usecase.MatchDataProvider
	if cfg.PandaScoreEnabled {
		provider = pandascore.NewClient(pandascore.ClientConfig{
			BaseURL:    cfg.PandaScoreBaseURL,
			Token:      cfg.PandaScoreToken,
			Timeout:    cfg.PandaScoreTimeout,
			MaxRetries: cfg.PandaScoreMaxRetries,
			Logger:     logger,
			CircuitBreaker: resilience.CircuitBreakerConfig{
				Enabled:          cfg.PandaScoreCircuitEnabled,
				FailureThreshold: cfg.PandaScoreCircuitFailureCount,
				OpenTimeout:      cfg.PandaScoreCircuitOpenTimeout,
				HalfOpenMaxReq:   cfg.PandaScoreCircuitHalfOpenMaxReq,
			},
		})
	} else {
		provider = unavailableProvider{}
		logger.Warn("PANDASCORE_ENABLED=false, match data provider is disabled")
	}

	var messenger usecase.Messenger
	if cfg.DiscordEnabled {
		session, err := discord.OpenSession(cfg.DiscordBotToken)
		if err != nil {
			app.closeDB()
			return nil, fmt.Errorf("open discord session: %w", err)
		}
		app.session = session
		messenger = discord.NewMessenger(session, logger)
	} else {
		messenger = discord.NewLogMessenger(logger)
		logger.Warn("DISCORD_ENABLED=false, notifications are logged instead of sent")
	}

	gen := idgen.NewRandomGenerator()

	store := usecase.NewMatchStoreService(matchRepo, readCache, cfg.QueryTimeout, cfg.CacheLimit, logger)
	window := usecase.NewWindowService(matchRepo, store, provider, usecase.WindowConfig{
		Window:           cfg.WindowDuration,
		BackfillPageSize: cfg.BackfillPageSize,
		BackfillMaxPages: cfg.BackfillMaxPages,
	}, logger)
	detector := usecase.NewDetectorService(matchRepo, store, notifRepo, guildRepo, provider, gen, usecase.DetectorConfig{
		StaleAfter:      cfg.StaleAfter,
		ConfirmPages:    cfg.ConfirmPages,
		ConfirmPageSize: cfg.ConfirmPageSize,
	}, logger)
	reminders := usecase.NewReminderService(matchRepo, notifRepo, guildRepo, gen, logger)
	dispatcher := usecase.NewDispatcherService(notifRepo, matchRepo, guildRepo, messenger, usecase.DispatcherConfig{
		MaxWorkers: cfg.DispatchMaxWorkers,
	}, logger)

	app.Cycles = usecase.NewCycleRunner(store, window, detector, reminders, dispatcher, provider, usecase.CycleConfig{
		RefreshInterval:  cfg.RefreshInterval,
		DetectInterval:   cfg.DetectInterval,
		DispatchInterval: cfg.DispatchInterval,
		PageSize:         cfg.FetchPageSize,
		FinishedPages:    cfg.FinishedPages,
	}, logger)

	handler := httpapi.NewHandler(store, app.Cycles, dispatcher, reminders, guildRepo, notifRepo, logger)
	router := httpapi.NewRouter(handler, logger, cfg.InternalJobToken)

	app.Server = &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	if app.Server.Addr == "" {
		app.Close(context.Background())
		return nil, fmt.Errorf("http server addr cannot be empty")
	}

	return app, nil
}

// Close tears everything down in reverse dependency order. Safe to call on a
// partially built App.
func (a *App) Close(ctx context.Context) {
	if a.Server != nil {
		if err := a.Server.Shutdown(ctx); err != nil {
			a.logger.Warn("http server shutdown failed", "error", err)
		}
	}
	if a.Cycles != nil {
		a.Cycles.Stop()
	}
	if a.session != nil {
		if err := a.session.Close(); err != nil {
			a.logger.Warn("discord session close failed", "error", err)
		}
	}
	a.closeDB()
}

func (a *App) closeDB() {
	if a.db == nil {
		return
	}
	if err := a.db.Close(); err != nil {
		a.logger.Warn("database close failed", "error", err)
	}
}

// unavailableProvider stands in when polling is switched off; every fetch
// reports the dependency as unavailable so cycles and manual jobs degrade
// loudly instead of panicking.
type unavailableProvider struct{}

func (unavailableProvider) FetchUpcoming(context.Context, int) ([]usecase.ExternalMatch, error) {
	return nil, fmt.Errorf("%w: match data provider is disabled", usecase.ErrDependencyUnavailable)
}

func (unavailableProvider) FetchRunning(context.Context) ([]usecase.ExternalMatch, error) {
	return nil, fmt.Errorf("%w: match data provider is disabled", usecase.ErrDependencyUnavailable)
}

func (unavailableProvider) FetchFinished(context.Context, int, int) ([]usecase.ExternalMatch, error) {
	return nil, fmt.Errorf("%w: match data provider is disabled", usecase.ErrDependencyUnavailable)
}

func (unavailableProvider) FetchCanceled(context.Context, int) ([]usecase.ExternalMatch, error) {
	return nil, fmt.Errorf("%w: match data provider is disabled", usecase.ErrDependencyUnavailable)
}
