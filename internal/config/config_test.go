package config_test

import (
	"testing"
	"time"

	"rewards-terminal/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("REWARDS_API_URL", "")
	t.Setenv("UPTIME_RETRY_INTERVAL", "")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Port)
	}
	if cfg.ShopCacheTTL != 5*time.Minute {
		t.Errorf("Expected shop cache TTL 5m, got %s", cfg.ShopCacheTTL)
	}
	if cfg.UptimeRetryInterval != time.Minute {
		t.Errorf("Expected uptime retry interval 60s, got %s", cfg.UptimeRetryInterval)
	}
	if cfg.RewardsAPIURL != "" {
		t.Errorf("Expected unconfigured rewards API, got %q", cfg.RewardsAPIURL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SHOP_CACHE_TTL", "30s")
	t.Setenv("REWARDS_API_URL", "http://rewards.local")

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("Expected port 9090, got %s", cfg.Port)
	}
	if cfg.ShopCacheTTL != 30*time.Second {
		t.Errorf("Expected shop cache TTL 30s, got %s", cfg.ShopCacheTTL)
	}
	if cfg.RewardsAPIURL != "http://rewards.local" {
		t.Errorf("Expected rewards API url override, got %q", cfg.RewardsAPIURL)
	}
}

func TestLoadRejectsDefaultSecretInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("JWT_SECRET", "")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for default JWT secret in production")
	}
}

func TestLoadRejectsUnknownLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "chatty")

	if _, err := config.Load(); err == nil {
		t.Error("Expected error for unknown log level")
	}
}
