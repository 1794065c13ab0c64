package services

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
)

const DefaultUptimeRetryInterval = 60 * time.Second

type DrainStats struct {
	Attempted int
	Delivered int
	Dropped   int
	Requeued  int
}

// UptimeRetryQueue holds session-duration events until the backend accepts
// them. Entries retry once per drain with no backoff and no cap; the queue
// lives in memory only and is lost on restart.
type UptimeRetryQueue struct {
	gateway  gateway.Gateway
	pool     pond.Pool
	interval time.Duration
	logger   zerolog.Logger

	mu        sync.Mutex
	pending   []models.UptimeSession
	lastDrain time.Time
	// inflight is closed when the drain started by Tick finishes; nil when
	// none is running.
	inflight chan struct{}
}

func NewUptimeRetryQueue(gw gateway.Gateway, pool pond.Pool, interval time.Duration, logger zerolog.Logger) *UptimeRetryQueue {
	if interval <= 0 {
		interval = DefaultUptimeRetryInterval
	}
	return &UptimeRetryQueue{
		gateway:  gw,
		pool:     pool,
		interval: interval,
		logger:   logger.With().Str("component", "uptime_queue").Logger(),
	}
}

func (q *UptimeRetryQueue) Enqueue(session models.UptimeSession) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.pending = append(q.pending, session)
}

func (q *UptimeRetryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.pending)
}

func (q *UptimeRetryQueue) Pending() []models.UptimeSession {
	q.mu.Lock()
	defer q.mu.Unlock()

	return slices.Clone(q.pending)
}

// Tick is called from the host loop. It starts a drain in the background once
// the retry interval has elapsed, the queue is non-empty and no drain is
// already running. It reports whether a drain was started.
func (q *UptimeRetryQueue) Tick(ctx context.Context, now time.Time) bool {
	q.mu.Lock()
	if len(q.pending) == 0 || now.Sub(q.lastDrain) < q.interval || q.inflight != nil {
		q.mu.Unlock()
		return false
	}
	done := make(chan struct{})
	q.inflight = done
	q.lastDrain = now
	q.mu.Unlock()

	go func() {
		defer func() {
			q.mu.Lock()
			q.inflight = nil
			q.mu.Unlock()
			close(done)
		}()
		q.Drain(ctx)
	}()
	return true
}

// WaitIdle blocks until the drain started by Tick, if any, has put its
// retries back on the queue, or ctx is done.
func (q *UptimeRetryQueue) WaitIdle(ctx context.Context) {
	q.mu.Lock()
	done := q.inflight
	q.mu.Unlock()

	if done == nil {
		return
	}
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Drain takes the current queue, clears it and attempts every entry exactly
// once. NeedsRetry entries go back on the queue for the next cycle.
func (q *UptimeRetryQueue) Drain(ctx context.Context) DrainStats {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	stats := DrainStats{Attempted: len(batch)}
	if len(batch) == 0 {
		return stats
	}

	q.logger.Info().Int("count", len(batch)).Msg("retrying pending uptime sessions")

	// Entries whose task never ran (pool stopped) stay queued.
	results := make([]models.UptimeResult, len(batch))
	for i := range results {
		results[i] = models.UptimeNeedsRetry
	}
	group := q.pool.NewGroup()
	for i, session := range batch {
		group.Submit(func() {
			results[i] = q.gateway.SendUptime(ctx, session.Identity, session.EntryTime, session.ExitTime)
		})
	}
	if err := group.Wait(); err != nil {
		q.logger.Error().Err(err).Msg("uptime delivery group failed")
	}

	for i, session := range batch {
		minutes := session.Duration().Minutes()
		switch results[i] {
		case models.UptimeSuccess:
			stats.Delivered++
			q.logger.Info().Str("identity", string(session.Identity)).Float64("duration_min", minutes).Msg("uptime sent")
		case models.UptimeNotFound:
			stats.Dropped++
			q.logger.Info().Str("identity", string(session.Identity)).Float64("duration_min", minutes).Msg("uptime ignored, backend has no record")
		default:
			stats.Requeued++
			q.logger.Warn().Str("identity", string(session.Identity)).Float64("duration_min", minutes).Msg("uptime send failed, queueing for retry")
			q.Enqueue(session)
		}
	}
	return stats
}
