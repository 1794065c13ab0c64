package services

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

type inventoryEntry struct {
	snapshot   *models.InventorySnapshot
	generation uint64
}

// InventoryCache follows the same policy as PlayerStateCache: per tracked
// identity, non-error results only.
type InventoryCache struct {
	gateway gateway.Gateway
	logger  zerolog.Logger

	mu      sync.RWMutex
	entries map[models.Identity]*inventoryEntry
	// generation is cache-wide so an entry recreated after Evict never reuses
	// a value an in-flight fetch captured.
	generation uint64
}

func NewInventoryCache(gw gateway.Gateway, logger zerolog.Logger) *InventoryCache {
	return &InventoryCache{
		gateway: gw,
		logger:  logger.With().Str("component", "inventory_cache").Logger(),
		entries: make(map[models.Identity]*inventoryEntry),
	}
}

func (c *InventoryCache) Track(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[identity]; !ok {
		c.entries[identity] = &inventoryEntry{generation: c.nextGeneration()}
	}
}

func (c *InventoryCache) GetOrFetch(ctx context.Context, identity models.Identity) models.InventorySnapshot {
	c.mu.RLock()
	entry, tracked := c.entries[identity]
	var generation uint64
	if tracked {
		if entry.snapshot != nil {
			snapshot := *entry.snapshot
			c.mu.RUnlock()
			return snapshot
		}
		generation = entry.generation
	}
	c.mu.RUnlock()

	snapshot, err := c.gateway.FetchInventory(ctx, identity)
	if err != nil {
		c.logger.Warn().Err(err).Str("identity", string(identity)).Msg("failed to fetch inventory")
		return models.NewInventoryError(gateway.FailureMessage(err))
	}
	if snapshot.HasError {
		return snapshot
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[identity]; ok && entry.generation == generation {
		stored := snapshot
		entry.snapshot = &stored
	}
	return snapshot
}

func (c *InventoryCache) Peek(identity models.Identity) (models.InventorySnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[identity]
	if !ok || entry.snapshot == nil {
		return models.InventorySnapshot{}, false
	}
	return *entry.snapshot, true
}

func (c *InventoryCache) Invalidate(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[identity]; ok {
		entry.snapshot = nil
		entry.generation = c.nextGeneration()
	}
}

func (c *InventoryCache) Evict(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, identity)
}

func (c *InventoryCache) ResetRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		entry.snapshot = nil
		entry.generation = c.nextGeneration()
	}
}

// nextGeneration must be called with mu held for writing.
func (c *InventoryCache) nextGeneration() uint64 {
	c.generation++
	return c.generation
}
