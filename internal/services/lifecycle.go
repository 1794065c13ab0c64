package services

import (
	"context"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/models"
)

// SessionLifecycleTracker reacts to connect and disconnect events: it warms
// the caches on connect, and on disconnect evicts them and hands the session
// duration to the uptime queue.
type SessionLifecycleTracker struct {
	players     *PlayerStateCache
	inventories *InventoryCache
	queue       *UptimeRetryQueue
	pool        pond.Pool
	logger      zerolog.Logger
	now         func() time.Time

	mu      sync.Mutex
	entries map[models.Identity]time.Time
}

func NewSessionLifecycleTracker(
	players *PlayerStateCache,
	inventories *InventoryCache,
	queue *UptimeRetryQueue,
	pool pond.Pool,
	logger zerolog.Logger,
) *SessionLifecycleTracker {
	return &SessionLifecycleTracker{
		players:     players,
		inventories: inventories,
		queue:       queue,
		pool:        pool,
		logger:      logger.With().Str("component", "lifecycle").Logger(),
		now:         time.Now,
		entries:     make(map[models.Identity]time.Time),
	}
}

// SetClock replaces the time source; used by tests.
func (t *SessionLifecycleTracker) SetClock(now func() time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.now = now
}

// OnConnect records the entry time and starts a background prefetch of the
// profile and inventory. The returned task is only useful to callers that
// need to wait for the warm-up, tests mostly.
func (t *SessionLifecycleTracker) OnConnect(ctx context.Context, identity models.Identity, name string) pond.Task {
	t.mu.Lock()
	if _, ok := t.entries[identity]; !ok {
		t.entries[identity] = t.now()
	}
	t.mu.Unlock()

	t.players.Track(identity)
	t.inventories.Track(identity)
	t.players.Seed(identity, name)

	t.logger.Info().Str("identity", string(identity)).Str("name", name).Msg("player connected")

	// The prefetch must outlive the request that triggered the connect.
	prefetchCtx := context.WithoutCancel(ctx)
	return t.pool.Submit(func() {
		snapshot := t.players.GetOrFetch(prefetchCtx, identity)
		if snapshot.HasError {
			t.logger.Debug().Str("identity", string(identity)).Str("message", snapshot.ErrorMessage).Msg("profile prefetch failed")
			return
		}
		t.players.Seed(identity, name)
		t.inventories.GetOrFetch(prefetchCtx, identity)
	})
}

// OnDisconnect evicts cached state and queues the session for uptime
// delivery. Unknown identities are ignored.
func (t *SessionLifecycleTracker) OnDisconnect(identity models.Identity) {
	t.mu.Lock()
	entry, ok := t.entries[identity]
	if ok {
		delete(t.entries, identity)
	}
	exit := t.now()
	t.mu.Unlock()

	if !ok {
		return
	}

	t.players.Evict(identity)
	t.inventories.Evict(identity)
	t.queue.Enqueue(models.UptimeSession{
		Identity:  identity,
		EntryTime: entry,
		ExitTime:  exit,
	})

	t.logger.Info().
		Str("identity", string(identity)).
		Float64("duration_min", exit.Sub(entry).Minutes()).
		Msg("player disconnected")
}

func (t *SessionLifecycleTracker) Connected(identity models.Identity) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, ok := t.entries[identity]
	return ok
}
