package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/arfandy/cs-match-notify/internal/platform/logging"
)

// Config stores runtime configuration for the service.
type Config struct {
	AppEnv                          string
	ServiceName                     string
	ServiceVersion                  string
	HTTPAddr                        string
	ReadTimeout                     time.Duration
	WriteTimeout                    time.Duration
	DBURL                           string
	CacheEnabled                    bool
	CacheTTL                        time.Duration
	CacheLimit                      int
	QueryTimeout                    time.Duration
	InternalJobToken                string
	DiscordEnabled                  bool
	DiscordBotToken                 string
	PandaScoreEnabled               bool
	PandaScoreBaseURL               string
	PandaScoreToken                 string
	PandaScoreTimeout               time.Duration
	PandaScoreMaxRetries            int
	PandaScoreCircuitEnabled        bool
	PandaScoreCircuitFailureCount   int
	PandaScoreCircuitOpenTimeout    time.Duration
	PandaScoreCircuitHalfOpenMaxReq int
	WindowDuration                  time.Duration
	BackfillPageSize                int
	BackfillMaxPages                int
	StaleAfter                      time.Duration
	ConfirmPages                    int
	ConfirmPageSize                 int
	RefreshInterval                 time.Duration
	DetectInterval                  time.Duration
	DispatchInterval                time.Duration
	FetchPageSize                   int
	FinishedPages                   int
	DispatchMaxWorkers              int
	LogLevel                        logging.Level
}

func Load() (Config, error) {
	appEnv, err := parseAppEnv(getEnv("APP_ENV", EnvDev))
	if err != nil {
		return Config{}, err
	}

	readTimeout, err := time.ParseDuration(getEnv("HTTP_READ_TIMEOUT", "10s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_READ_TIMEOUT: %w", err)
	}
	if readTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_READ_TIMEOUT must be > 0")
	}
	writeTimeout, err := time.ParseDuration(getEnv("HTTP_WRITE_TIMEOUT", "30s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse HTTP_WRITE_TIMEOUT: %w", err)
	}
	if writeTimeout <= 0 {
		return Config{}, fmt.Errorf("HTTP_WRITE_TIMEOUT must be > 0")
	}

	cacheEnabled, err := strconv.ParseBool(getEnv("CACHE_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_ENABLED: %w", err)
	}
	cacheTTL, err := time.ParseDuration(getEnv("CACHE_TTL", "5m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_TTL: %w", err)
	}
	if cacheTTL <= 0 {
		return Config{}, fmt.Errorf("CACHE_TTL must be > 0")
	}
	cacheLimit, err := getEnvAsInt("CACHE_LIMIT", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse CACHE_LIMIT: %w", err)
	}
	if cacheLimit < 1 {
		return Config{}, fmt.Errorf("CACHE_LIMIT must be >= 1")
	}
	queryTimeout, err := time.ParseDuration(getEnv("QUERY_TIMEOUT", "3s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse QUERY_TIMEOUT: %w", err)
	}
	if queryTimeout <= 0 {
		return Config{}, fmt.Errorf("QUERY_TIMEOUT must be > 0")
	}

	discordEnabled, err := strconv.ParseBool(getEnv("DISCORD_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DISCORD_ENABLED: %w", err)
	}
	discordBotToken := strings.TrimSpace(getEnv("DISCORD_BOT_TOKEN", ""))
	if discordEnabled && discordBotToken == "" {
		return Config{}, fmt.Errorf("DISCORD_BOT_TOKEN is required when DISCORD_ENABLED=true")
	}

	pandaScoreEnabled, err := strconv.ParseBool(getEnv("PANDASCORE_ENABLED", "false"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_ENABLED: %w", err)
	}
	pandaScoreBaseURL := strings.TrimSpace(getEnv("PANDASCORE_BASE_URL", "https://api.pandascore.co"))
	pandaScoreToken := strings.TrimSpace(getEnv("PANDASCORE_TOKEN", ""))
	if pandaScoreEnabled && pandaScoreToken == "" {
		return Config{}, fmt.Errorf("PANDASCORE_TOKEN is required when PANDASCORE_ENABLED=true")
	}
	pandaScoreTimeout, err := time.ParseDuration(getEnv("PANDASCORE_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_TIMEOUT: %w", err)
	}
	if pandaScoreTimeout <= 0 {
		return Config{}, fmt.Errorf("PANDASCORE_TIMEOUT must be > 0")
	}
	pandaScoreMaxRetries, err := getEnvAsInt("PANDASCORE_MAX_RETRIES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_MAX_RETRIES: %w", err)
	}
	if pandaScoreMaxRetries < 0 {
		return Config{}, fmt.Errorf("PANDASCORE_MAX_RETRIES must be >= 0")
	}
	pandaScoreCircuitEnabled, err := strconv.ParseBool(getEnv("PANDASCORE_CIRCUIT_ENABLED", "true"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_CIRCUIT_ENABLED: %w", err)
	}
	pandaScoreCircuitFailureCount, err := getEnvAsInt("PANDASCORE_CIRCUIT_FAILURE_COUNT", 5)
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_CIRCUIT_FAILURE_COUNT: %w", err)
	}
	if pandaScoreCircuitFailureCount < 1 {
		return Config{}, fmt.Errorf("PANDASCORE_CIRCUIT_FAILURE_COUNT must be >= 1")
	}
	pandaScoreCircuitOpenTimeout, err := time.ParseDuration(getEnv("PANDASCORE_CIRCUIT_OPEN_TIMEOUT", "15s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_CIRCUIT_OPEN_TIMEOUT: %w", err)
	}
	if pandaScoreCircuitOpenTimeout <= 0 {
		return Config{}, fmt.Errorf("PANDASCORE_CIRCUIT_OPEN_TIMEOUT must be > 0")
	}
	pandaScoreCircuitHalfOpenMaxReq, err := getEnvAsInt("PANDASCORE_CIRCUIT_HALF_OPEN_MAX_REQ", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse PANDASCORE_CIRCUIT_HALF_OPEN_MAX_REQ: %w", err)
	}
	if pandaScoreCircuitHalfOpenMaxReq < 1 {
		return Config{}, fmt.Errorf("PANDASCORE_CIRCUIT_HALF_OPEN_MAX_REQ must be >= 1")
	}

	windowDuration, err := time.ParseDuration(getEnv("MATCH_WINDOW", "42h"))
	if err != nil {
		return Config{}, fmt.Errorf("parse MATCH_WINDOW: %w", err)
	}
	if windowDuration <= 0 {
		return Config{}, fmt.Errorf("MATCH_WINDOW must be > 0")
	}
	backfillPageSize, err := getEnvAsInt("BACKFILL_PAGE_SIZE", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse BACKFILL_PAGE_SIZE: %w", err)
	}
	if backfillPageSize < 1 {
		return Config{}, fmt.Errorf("BACKFILL_PAGE_SIZE must be >= 1")
	}
	backfillMaxPages, err := getEnvAsInt("BACKFILL_MAX_PAGES", 10)
	if err != nil {
		return Config{}, fmt.Errorf("parse BACKFILL_MAX_PAGES: %w", err)
	}
	if backfillMaxPages < 1 {
		return Config{}, fmt.Errorf("BACKFILL_MAX_PAGES must be >= 1")
	}
	staleAfter, err := time.ParseDuration(getEnv("STALE_AFTER", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse STALE_AFTER: %w", err)
	}
	if staleAfter <= 0 {
		return Config{}, fmt.Errorf("STALE_AFTER must be > 0")
	}
	confirmPages, err := getEnvAsInt("CONFIRM_PAGES", 3)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONFIRM_PAGES: %w", err)
	}
	if confirmPages < 1 {
		return Config{}, fmt.Errorf("CONFIRM_PAGES must be >= 1")
	}
	confirmPageSize, err := getEnvAsInt("CONFIRM_PAGE_SIZE", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse CONFIRM_PAGE_SIZE: %w", err)
	}
	if confirmPageSize < 1 {
		return Config{}, fmt.Errorf("CONFIRM_PAGE_SIZE must be >= 1")
	}

	refreshInterval, err := time.ParseDuration(getEnv("REFRESH_INTERVAL", "3m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse REFRESH_INTERVAL: %w", err)
	}
	if refreshInterval <= 0 {
		return Config{}, fmt.Errorf("REFRESH_INTERVAL must be > 0")
	}
	detectInterval, err := time.ParseDuration(getEnv("DETECT_INTERVAL", "1m"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DETECT_INTERVAL: %w", err)
	}
	if detectInterval <= 0 {
		return Config{}, fmt.Errorf("DETECT_INTERVAL must be > 0")
	}
	dispatchInterval, err := time.ParseDuration(getEnv("DISPATCH_INTERVAL", "20s"))
	if err != nil {
		return Config{}, fmt.Errorf("parse DISPATCH_INTERVAL: %w", err)
	}
	if dispatchInterval <= 0 {
		return Config{}, fmt.Errorf("DISPATCH_INTERVAL must be > 0")
	}
	fetchPageSize, err := getEnvAsInt("FETCH_PAGE_SIZE", 50)
	if err != nil {
		return Config{}, fmt.Errorf("parse FETCH_PAGE_SIZE: %w", err)
	}
	if fetchPageSize < 1 {
		return Config{}, fmt.Errorf("FETCH_PAGE_SIZE must be >= 1")
	}
	finishedPages, err := getEnvAsInt("FINISHED_PAGES", 2)
	if err != nil {
		return Config{}, fmt.Errorf("parse FINISHED_PAGES: %w", err)
	}
	if finishedPages < 1 {
		return Config{}, fmt.Errorf("FINISHED_PAGES must be >= 1")
	}
	dispatchMaxWorkers, err := getEnvAsInt("DISPATCH_MAX_WORKERS", 4)
	if err != nil {
		return Config{}, fmt.Errorf("parse DISPATCH_MAX_WORKERS: %w", err)
	}
	if dispatchMaxWorkers < 1 {
		return Config{}, fmt.Errorf("DISPATCH_MAX_WORKERS must be >= 1")
	}

	cfg := Config{
		AppEnv:                          appEnv,
		ServiceName:                     strings.TrimSpace(getEnv("APP_SERVICE_NAME", "cs-match-notify")),
		ServiceVersion:                  strings.TrimSpace(getEnv("APP_SERVICE_VERSION", "dev")),
		HTTPAddr:                        strings.TrimSpace(getEnv("HTTP_ADDR", ":8080")),
		ReadTimeout:                     readTimeout,
		WriteTimeout:                    writeTimeout,
		DBURL:                           strings.TrimSpace(getEnv("DATABASE_URL", "")),
		CacheEnabled:                    cacheEnabled,
		CacheTTL:                        cacheTTL,
		CacheLimit:                      cacheLimit,
		QueryTimeout:                    queryTimeout,
		InternalJobToken:                strings.TrimSpace(getEnv("INTERNAL_JOB_TOKEN", "")),
		DiscordEnabled:                  discordEnabled,
		DiscordBotToken:                 discordBotToken,
		PandaScoreEnabled:               pandaScoreEnabled,
		PandaScoreBaseURL:               pandaScoreBaseURL,
		PandaScoreToken:                 pandaScoreToken,
		PandaScoreTimeout:               pandaScoreTimeout,
		PandaScoreMaxRetries:            pandaScoreMaxRetries,
		PandaScoreCircuitEnabled:        pandaScoreCircuitEnabled,
		PandaScoreCircuitFailureCount:   pandaScoreCircuitFailureCount,
		PandaScoreCircuitOpenTimeout:    pandaScoreCircuitOpenTimeout,
		PandaScoreCircuitHalfOpenMaxReq: pandaScoreCircuitHalfOpenMaxReq,
		WindowDuration:                  windowDuration,
		BackfillPageSize:                backfillPageSize,
		BackfillMaxPages:                backfillMaxPages,
		StaleAfter:                      staleAfter,
		ConfirmPages:                    confirmPages,
		ConfirmPageSize:                 confirmPageSize,
		RefreshInterval:                 refreshInterval,
		DetectInterval:                  detectInterval,
		DispatchInterval:                dispatchInterval,
		FetchPageSize:                   fetchPageSize,
		FinishedPages:                   finishedPages,
		DispatchMaxWorkers:              dispatchMaxWorkers,
		LogLevel:                        parseLogLevel(getEnv("LOG_LEVEL", "info")),
	}

	return cfg, nil
}

func parseLogLevel(v string) logging.Level {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "debug":
		return logging.LevelDebug
	case "warn", "warning":
		return logging.LevelWarn
	case "error":
		return logging.LevelError
	default:
		return logging.LevelInfo
	}
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if strings.TrimSpace(value) == "" {
		return fallback
	}

	return value
}

func getEnvAsInt(key string, fallback int) (int, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback, nil
	}

	out, err := strconv.Atoi(value)
	if err != nil {
		return 0, err
	}

	return out, nil
}

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

func parseAppEnv(v string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case EnvDev, EnvStage, EnvProd:
		return strings.ToLower(strings.TrimSpace(v)), nil
	case "":
		return EnvDev, nil
	default:
		return "", fmt.Errorf("invalid APP_ENV %q: valid values are %s, %s, %s", v, EnvDev, EnvStage, EnvProd)
	}
}
