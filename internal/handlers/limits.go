package handlers

import (
	"context"
	"time"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

const (
	ActionPurchase = "purchase"
	ActionClaim    = "claim"
	ActionLootbox  = "lootbox"
)

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, identity models.Identity, action string, limit int, window time.Duration) (bool, error)
}

// RateLimits maps an action to its allowance per services.RateWindow. Actions
// without a positive limit are not limited.
type RateLimits map[string]int

func checkRateLimit(ctx context.Context, limiter RateLimiter, limits RateLimits, identity models.Identity, action string) bool {
	if limiter == nil {
		return true
	}
	limit, ok := limits[action]
	if !ok || limit <= 0 {
		return true
	}
	allowed, err := limiter.CheckRateLimit(ctx, identity, action, limit, services.RateWindow)
	return err == nil && allowed
}
