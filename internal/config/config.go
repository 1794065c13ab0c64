package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"
)

type Config struct {
	Port     string     `env:"PORT" envDefault:"8080"`
	Env      string     `env:"ENV" envDefault:"development"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RedisURL  string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret  string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	JWTExpiry  time.Duration `env:"JWT_EXPIRY" envDefault:"24h"`
	HostAPIKey string        `env:"HOST_API_KEY"`

	// Empty RewardsAPIURL leaves the gateway unconfigured; every call then
	// reports the service as unavailable.
	RewardsAPIURL     string        `env:"REWARDS_API_URL"`
	RewardsAPIKey     string        `env:"REWARDS_API_KEY"`
	RewardsAPITimeout time.Duration `env:"REWARDS_API_TIMEOUT" envDefault:"10s"`

	ShopCacheTTL        time.Duration `env:"SHOP_CACHE_TTL" envDefault:"5m"`
	UptimeRetryInterval time.Duration `env:"UPTIME_RETRY_INTERVAL" envDefault:"60s"`
	TickInterval        time.Duration `env:"TICK_INTERVAL" envDefault:"1s"`
	WorkerPoolSize      int           `env:"WORKER_POOL_SIZE" envDefault:"16"`

	LootboxServerSeed string `env:"LOOTBOX_SERVER_SEED"`

	RateLimitPurchase int `env:"RATE_LIMIT_PURCHASE" envDefault:"10"`
	RateLimitClaim    int `env:"RATE_LIMIT_CLAIM" envDefault:"10"`
	RateLimitLootbox  int `env:"RATE_LIMIT_LOOTBOX" envDefault:"30"`

	OtelEndpoint string `env:"OTEL_ENDPOINT"`
}

func Load() (*Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if cfg.Env == "production" && cfg.JWTSecret == "dev-secret-change-me" {
		return nil, fmt.Errorf("JWT_SECRET must be set in production")
	}
	if _, err := zerolog.ParseLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if cfg.UptimeRetryInterval <= 0 {
		return nil, fmt.Errorf("UPTIME_RETRY_INTERVAL must be positive, got %s", cfg.UptimeRetryInterval)
	}
	if cfg.TickInterval <= 0 {
		return nil, fmt.Errorf("TICK_INTERVAL must be positive, got %s", cfg.TickInterval)
	}
	if cfg.WorkerPoolSize <= 0 {
		cfg.WorkerPoolSize = 16
	}
	return &cfg, nil
}
