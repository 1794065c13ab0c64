package services

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

const DefaultShopCacheTTL = 5 * time.Minute

// ShopCache keeps the first shop page for a bounded freshness window. Other
// pages always go to the backend.
type ShopCache struct {
	gateway gateway.Gateway
	ttl     time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu         sync.Mutex
	page       *models.ShopSnapshot
	storedAt   time.Time
	generation uint64
}

func NewShopCache(gw gateway.Gateway, ttl time.Duration, logger zerolog.Logger) *ShopCache {
	if ttl <= 0 {
		ttl = DefaultShopCacheTTL
	}
	return &ShopCache{
		gateway: gw,
		ttl:     ttl,
		logger:  logger.With().Str("component", "shop_cache").Logger(),
		now:     time.Now,
	}
}

// SetClock replaces the time source; used by tests.
func (c *ShopCache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

func (c *ShopCache) Get(ctx context.Context, page int) models.ShopSnapshot {
	if page < 1 {
		page = 1
	}

	c.mu.Lock()
	generation := c.generation
	if page == 1 && c.page != nil && c.now().Sub(c.storedAt) < c.ttl {
		shop := *c.page
		c.mu.Unlock()
		return shop
	}
	c.mu.Unlock()

	shop, err := c.gateway.FetchShop(ctx, page)
	if err != nil {
		c.logger.Warn().Err(err).Int("page", page).Msg("failed to fetch shop")
		return models.NewShopError(gateway.FailureMessage(err))
	}
	shop.Page = page

	if page == 1 && !shop.HasError {
		c.mu.Lock()
		if c.generation == generation {
			stored := shop
			c.page = &stored
			c.storedAt = c.now()
		}
		c.mu.Unlock()
	}
	return shop
}

func (c *ShopCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.page = nil
	c.generation++
}
