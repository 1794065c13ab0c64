package services

import (
	"context"
	"slices"
	"sync"

	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

type playerEntry struct {
	snapshot   *models.PlayerStateSnapshot
	name       string
	spawned    []string
	generation uint64
}

// PlayerStateCache holds one profile snapshot per connected identity. Only
// tracked identities (see Track) are ever stored, so an entry cannot outlive
// its connection.
type PlayerStateCache struct {
	gateway gateway.Gateway
	logger  zerolog.Logger

	mu      sync.RWMutex
	entries map[models.Identity]*playerEntry
	// generation is cache-wide so an entry recreated after Evict never reuses
	// a value an in-flight fetch captured.
	generation uint64
}

func NewPlayerStateCache(gw gateway.Gateway, logger zerolog.Logger) *PlayerStateCache {
	return &PlayerStateCache{
		gateway: gw,
		logger:  logger.With().Str("component", "player_cache").Logger(),
		entries: make(map[models.Identity]*playerEntry),
	}
}

// Track marks identity as connected so its snapshots may be cached.
func (c *PlayerStateCache) Track(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[identity]; !ok {
		c.entries[identity] = &playerEntry{generation: c.nextGeneration()}
	}
}

// GetOrFetch returns the cached snapshot or fetches a fresh one. Error and
// unregistered results are returned but never stored, so the next call goes
// back to the backend.
func (c *PlayerStateCache) GetOrFetch(ctx context.Context, identity models.Identity) models.PlayerStateSnapshot {
	c.mu.RLock()
	entry, tracked := c.entries[identity]
	var generation uint64
	var name string
	if tracked {
		if entry.snapshot != nil {
			snapshot := *entry.snapshot
			c.mu.RUnlock()
			return snapshot
		}
		generation = entry.generation
		name = entry.name
	}
	c.mu.RUnlock()

	snapshot, err := c.gateway.FetchProfile(ctx, identity)
	if err != nil {
		c.logger.Warn().Err(err).Str("identity", string(identity)).Msg("failed to fetch profile")
		return models.NewErrorSnapshot(gateway.FailureMessage(err)).WithPlayerName(name)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, tracked = c.entries[identity]
	if !tracked {
		return snapshot.WithSpawned(nil).WithPlayerName(name)
	}

	snapshot = snapshot.WithSpawned(entry.spawned).WithPlayerName(entry.name)
	// A bumped generation means the entry was invalidated while the fetch was
	// in flight; the fetched data may predate that, so it is served but not kept.
	if snapshot.Cacheable() && entry.generation == generation {
		stored := snapshot
		entry.snapshot = &stored
	}
	return snapshot
}

// Tracked reports whether identity has a live session.
func (c *PlayerStateCache) Tracked(identity models.Identity) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	_, ok := c.entries[identity]
	return ok
}

// Peek returns the cached snapshot without touching the backend.
func (c *PlayerStateCache) Peek(identity models.Identity) (models.PlayerStateSnapshot, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[identity]
	if !ok || entry.snapshot == nil {
		return models.PlayerStateSnapshot{}, false
	}
	return *entry.snapshot, true
}

// Invalidate drops the cached snapshot for identity. The spawned set and the
// display name survive.
func (c *PlayerStateCache) Invalidate(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, ok := c.entries[identity]; ok {
		entry.snapshot = nil
		entry.generation = c.nextGeneration()
	}
}

// Seed back-fills a display name resolved after the network identity.
func (c *PlayerStateCache) Seed(identity models.Identity, name string) {
	if name == "" {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[identity]
	if !ok {
		return
	}
	if entry.name == "" || entry.name == models.UnknownPlayerName {
		entry.name = name
	}
	if entry.snapshot != nil {
		updated := entry.snapshot.WithPlayerName(name)
		entry.snapshot = &updated
	}
}

// MarkSpawned records gameEntityID as materialized this round and returns the
// updated snapshot. It fails when nothing is cached or the item was already
// spawned.
func (c *PlayerStateCache) MarkSpawned(identity models.Identity, gameEntityID string) (models.PlayerStateSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[identity]
	if !ok || entry.snapshot == nil || slices.Contains(entry.spawned, gameEntityID) {
		return models.PlayerStateSnapshot{}, false
	}

	entry.spawned = append(slices.Clone(entry.spawned), gameEntityID)
	updated := entry.snapshot.WithSpawned(entry.spawned)
	entry.snapshot = &updated
	return updated, true
}

// Evict forgets identity entirely.
func (c *PlayerStateCache) Evict(identity models.Identity) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.entries, identity)
}

// ResetRound clears every snapshot and spawned set while keeping identities tracked.
func (c *PlayerStateCache) ResetRound() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, entry := range c.entries {
		entry.snapshot = nil
		entry.spawned = nil
		entry.generation = c.nextGeneration()
	}
}

func (c *PlayerStateCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	n := 0
	for _, entry := range c.entries {
		if entry.snapshot != nil {
			n++
		}
	}
	return n
}

// nextGeneration must be called with mu held for writing.
func (c *PlayerStateCache) nextGeneration() uint64 {
	c.generation++
	return c.generation
}
