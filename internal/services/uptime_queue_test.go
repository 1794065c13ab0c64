package services_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

func newTestPool(t *testing.T) pond.Pool {
	t.Helper()
	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)
	return pool
}

func sessionFor(identity models.Identity, d time.Duration) models.UptimeSession {
	entry := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	return models.UptimeSession{Identity: identity, EntryTime: entry, ExitTime: entry.Add(d)}
}

func TestUptimeQueueClassification(t *testing.T) {
	gw := &fakeGateway{
		uptimeFn: func(identity models.Identity) models.UptimeResult {
			switch identity {
			case "gone":
				return models.UptimeNotFound
			case "flaky":
				return models.UptimeNeedsRetry
			default:
				return models.UptimeSuccess
			}
		},
	}

	queue := services.NewUptimeRetryQueue(gw, newTestPool(t), time.Minute, testLogger())
	queue.Enqueue(sessionFor("ok", time.Minute))
	queue.Enqueue(sessionFor("gone", time.Minute))
	queue.Enqueue(sessionFor("flaky", time.Minute))

	ctx := context.Background()
	for round := 1; round <= 5; round++ {
		stats := queue.Drain(ctx)
		if stats.Requeued != 1 {
			t.Fatalf("Round %d: expected 1 requeued, got %+v", round, stats)
		}
		if queue.Len() != 1 || queue.Pending()[0].Identity != "flaky" {
			t.Fatalf("Round %d: only the NeedsRetry entry should remain, got %+v", round, queue.Pending())
		}
	}

	if calls := gw.count("uptime"); calls != 3+4 {
		t.Errorf("Expected 7 deliveries (NotFound and Success sent once), got %d", calls)
	}
}

func TestUptimeQueueThreeMinuteSession(t *testing.T) {
	results := []models.UptimeResult{models.UptimeNeedsRetry, models.UptimeNeedsRetry, models.UptimeSuccess}
	var mu sync.Mutex
	attempt := 0

	gw := &fakeGateway{
		uptimeFn: func(models.Identity) models.UptimeResult {
			mu.Lock()
			defer mu.Unlock()
			r := results[attempt]
			attempt++
			return r
		},
	}

	queue := services.NewUptimeRetryQueue(gw, newTestPool(t), time.Minute, testLogger())
	queue.Enqueue(sessionFor("player", 3*time.Minute))

	ctx := context.Background()
	for queue.Len() > 0 {
		if gw.count("uptime") >= 10 {
			t.Fatal("Queue never drained")
		}
		queue.Drain(ctx)
	}

	if calls := gw.count("uptime"); calls != 3 {
		t.Errorf("Expected exactly 3 delivery attempts, got %d", calls)
	}
}

func TestUptimeQueueTick(t *testing.T) {
	gw := &fakeGateway{}
	queue := services.NewUptimeRetryQueue(gw, newTestPool(t), time.Minute, testLogger())
	ctx := context.Background()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	if queue.Tick(ctx, now) {
		t.Fatal("Tick should not drain an empty queue")
	}

	queue.Enqueue(sessionFor("player", time.Minute))
	if !queue.Tick(ctx, now) {
		t.Fatal("Tick should start a drain once the interval has elapsed")
	}

	deadline := time.Now().Add(2 * time.Second)
	for gw.count("uptime") == 0 || queue.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("Drain did not complete")
		}
		time.Sleep(5 * time.Millisecond)
	}

	queue.Enqueue(sessionFor("player", time.Minute))
	if queue.Tick(ctx, now.Add(30*time.Second)) {
		t.Error("Tick should wait for the retry interval")
	}
	// The drain goroutine clears its flag after Drain returns.
	deadline = time.Now().Add(2 * time.Second)
	for !queue.Tick(ctx, now.Add(61*time.Second)) {
		if time.Now().After(deadline) {
			t.Fatal("Tick should drain after the retry interval")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestUptimeQueueWaitIdleSeesRequeuedRetries(t *testing.T) {
	release := make(chan struct{})
	gw := &fakeGateway{
		uptimeFn: func(models.Identity) models.UptimeResult {
			<-release
			return models.UptimeNeedsRetry
		},
	}

	queue := services.NewUptimeRetryQueue(gw, newTestPool(t), time.Minute, testLogger())
	queue.Enqueue(sessionFor("player", time.Minute))

	ctx := context.Background()
	if !queue.Tick(ctx, time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)) {
		t.Fatal("Tick should start a drain")
	}

	go func() {
		time.Sleep(20 * time.Millisecond)
		close(release)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	queue.WaitIdle(waitCtx)

	if queue.Len() != 1 {
		t.Fatalf("The in-flight retry should be back on the queue, got %d", queue.Len())
	}

	gw.uptimeFn = nil
	if stats := queue.Drain(ctx); stats.Delivered != 1 {
		t.Errorf("Expected the final drain to deliver the retry, got %+v", stats)
	}
}

func TestUptimeQueueWaitIdleWithoutDrain(t *testing.T) {
	queue := services.NewUptimeRetryQueue(&fakeGateway{}, newTestPool(t), time.Minute, testLogger())

	done := make(chan struct{})
	go func() {
		queue.WaitIdle(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WaitIdle should return at once when nothing is draining")
	}
}
