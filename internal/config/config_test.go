package config

import (
	"testing"
	"time"
)

func TestLoad_AppEnvValidation(t *testing.T) {
	t.Setenv("APP_ENV", "invalid")
	if _, err := Load(); err == nil {
		t.Fatalf("expected error for invalid APP_ENV")
	}
}

func TestLoad_PandaScoreRequiresTokenWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PANDASCORE_ENABLED", "true")
	t.Setenv("PANDASCORE_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when PANDASCORE_ENABLED=true without PANDASCORE_TOKEN")
	}
}

func TestLoad_DiscordRequiresTokenWhenEnabled(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("DISCORD_ENABLED", "true")
	t.Setenv("DISCORD_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error when DISCORD_ENABLED=true without DISCORD_BOT_TOKEN")
	}
}

func TestLoad_PandaScoreConfigParsing(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("PANDASCORE_ENABLED", "true")
	t.Setenv("PANDASCORE_TOKEN", "token-123")
	t.Setenv("PANDASCORE_TIMEOUT", "9s")
	t.Setenv("PANDASCORE_MAX_RETRIES", "3")
	t.Setenv("PANDASCORE_CIRCUIT_FAILURE_COUNT", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if !cfg.PandaScoreEnabled {
		t.Fatalf("expected PandaScoreEnabled=true")
	}
	if cfg.PandaScoreToken != "token-123" {
		t.Fatalf("unexpected PandaScoreToken")
	}
	if cfg.PandaScoreTimeout != 9*time.Second {
		t.Fatalf("unexpected PandaScoreTimeout: %s", cfg.PandaScoreTimeout)
	}
	if cfg.PandaScoreMaxRetries != 3 {
		t.Fatalf("unexpected PandaScoreMaxRetries: %d", cfg.PandaScoreMaxRetries)
	}
	if cfg.PandaScoreCircuitFailureCount != 7 {
		t.Fatalf("unexpected PandaScoreCircuitFailureCount: %d", cfg.PandaScoreCircuitFailureCount)
	}
}

func TestLoad_WindowAndCycleDefaults(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.WindowDuration != 42*time.Hour {
		t.Fatalf("unexpected WindowDuration: %s", cfg.WindowDuration)
	}
	if cfg.RefreshInterval != 3*time.Minute {
		t.Fatalf("unexpected RefreshInterval: %s", cfg.RefreshInterval)
	}
	if cfg.DetectInterval != time.Minute {
		t.Fatalf("unexpected DetectInterval: %s", cfg.DetectInterval)
	}
	if cfg.DispatchInterval != 20*time.Second {
		t.Fatalf("unexpected DispatchInterval: %s", cfg.DispatchInterval)
	}
	if cfg.StaleAfter != time.Minute {
		t.Fatalf("unexpected StaleAfter: %s", cfg.StaleAfter)
	}
}

func TestLoad_RejectsNonPositiveIntervals(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("REFRESH_INTERVAL", "0s")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for REFRESH_INTERVAL=0s")
	}
}

func TestLoad_InvalidIntFails(t *testing.T) {
	t.Setenv("APP_ENV", EnvDev)
	t.Setenv("CONFIRM_PAGES", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for non-numeric CONFIRM_PAGES")
	}
}
