package services_test

import (
	"context"
	"fmt"
	"testing"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

func TestPlayerCacheDoesNotCacheErrors(t *testing.T) {
	gw := &fakeGateway{}
	failing := true
	gw.profileFn = func(identity models.Identity) (models.PlayerStateSnapshot, error) {
		if failing {
			return models.PlayerStateSnapshot{}, fmt.Errorf("dial: %w", gateway.ErrUnavailable)
		}
		return registeredProfile(identity), nil
	}

	cache := services.NewPlayerStateCache(gw, testLogger())
	ctx := context.Background()
	identity := models.Identity("player-1")
	cache.Track(identity)

	snapshot := cache.GetOrFetch(ctx, identity)
	if !snapshot.HasError {
		t.Fatal("Expected an error snapshot while the backend is down")
	}
	if snapshot.ErrorMessage != models.MessageServiceUnavailable {
		t.Errorf("Expected %q, got %q", models.MessageServiceUnavailable, snapshot.ErrorMessage)
	}
	if _, ok := cache.Peek(identity); ok {
		t.Error("Error snapshot must not be cached")
	}

	failing = false
	snapshot = cache.GetOrFetch(ctx, identity)
	if snapshot.HasError || !snapshot.IsRegistered {
		t.Fatalf("Expected a registered snapshot after recovery, got %+v", snapshot)
	}

	cache.GetOrFetch(ctx, identity)
	if calls := gw.count("profile"); calls != 2 {
		t.Errorf("Expected 2 profile fetches, got %d", calls)
	}
}

func TestPlayerCacheDoesNotCacheUnregistered(t *testing.T) {
	gw := &fakeGateway{
		profileFn: func(models.Identity) (models.PlayerStateSnapshot, error) {
			return models.NewUnregisteredSnapshot(), nil
		},
	}

	cache := services.NewPlayerStateCache(gw, testLogger())
	ctx := context.Background()
	identity := models.Identity("player-2")
	cache.Track(identity)

	for i := 0; i < 3; i++ {
		snapshot := cache.GetOrFetch(ctx, identity)
		if snapshot.IsRegistered {
			t.Fatal("Expected an unregistered snapshot")
		}
	}

	if calls := gw.count("profile"); calls != 3 {
		t.Errorf("Unregistered results must go back to the backend each time, got %d fetches", calls)
	}
	if cache.Len() != 0 {
		t.Errorf("Expected empty cache, got %d entries", cache.Len())
	}
}

func TestPlayerCacheOnlyStoresTrackedIdentities(t *testing.T) {
	gw := &fakeGateway{}
	cache := services.NewPlayerStateCache(gw, testLogger())
	ctx := context.Background()

	snapshot := cache.GetOrFetch(ctx, "stranger")
	if !snapshot.IsRegistered {
		t.Fatal("Untracked identities still get a fresh snapshot")
	}
	if _, ok := cache.Peek("stranger"); ok {
		t.Error("Untracked identity must not be cached")
	}

	cache.Track("stranger")
	cache.GetOrFetch(ctx, "stranger")
	if _, ok := cache.Peek("stranger"); !ok {
		t.Error("Tracked identity should be cached")
	}

	cache.Evict("stranger")
	if _, ok := cache.Peek("stranger"); ok {
		t.Error("Evicted identity must be gone")
	}
}

func TestPlayerCacheInvalidateDuringFetch(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})

	gw := &fakeGateway{}
	gw.profileFn = func(identity models.Identity) (models.PlayerStateSnapshot, error) {
		entered <- struct{}{}
		<-release
		return registeredProfile(identity), nil
	}

	cache := services.NewPlayerStateCache(gw, testLogger())
	identity := models.Identity("player-3")
	cache.Track(identity)

	done := make(chan models.PlayerStateSnapshot)
	go func() {
		done <- cache.GetOrFetch(context.Background(), identity)
	}()

	<-entered
	cache.Invalidate(identity)
	close(release)

	snapshot := <-done
	if !snapshot.IsRegistered {
		t.Fatal("In-flight fetch should still be served")
	}
	if _, ok := cache.Peek(identity); ok {
		t.Error("A fetch that started before an invalidation must not be stored")
	}
}

func TestCachesIgnoreFetchFromPreviousConnection(t *testing.T) {
	entered := make(chan struct{}, 2)
	release := make(chan struct{})

	gw := &fakeGateway{}
	gw.profileFn = func(identity models.Identity) (models.PlayerStateSnapshot, error) {
		entered <- struct{}{}
		<-release
		return registeredProfile(identity), nil
	}
	gw.inventoryFn = func(models.Identity) (models.InventorySnapshot, error) {
		entered <- struct{}{}
		<-release
		return models.InventorySnapshot{Items: []models.InventoryItem{{ID: 1, GameEntityID: "Hat"}}}, nil
	}

	players := services.NewPlayerStateCache(gw, testLogger())
	inventories := services.NewInventoryCache(gw, testLogger())
	identity := models.Identity("player-9")
	players.Track(identity)
	inventories.Track(identity)

	done := make(chan struct{}, 2)
	go func() {
		players.GetOrFetch(context.Background(), identity)
		done <- struct{}{}
	}()
	go func() {
		inventories.GetOrFetch(context.Background(), identity)
		done <- struct{}{}
	}()
	<-entered
	<-entered

	// Disconnect and reconnect while both fetches are still in flight.
	players.Evict(identity)
	inventories.Evict(identity)
	players.Track(identity)
	inventories.Track(identity)

	close(release)
	<-done
	<-done

	if _, ok := players.Peek(identity); ok {
		t.Error("Profile fetched for the previous connection must not be stored")
	}
	if _, ok := inventories.Peek(identity); ok {
		t.Error("Inventory fetched for the previous connection must not be stored")
	}
}

func TestPlayerCacheSeed(t *testing.T) {
	gw := &fakeGateway{}
	cache := services.NewPlayerStateCache(gw, testLogger())
	ctx := context.Background()
	identity := models.Identity("player-4")
	cache.Track(identity)

	cache.GetOrFetch(ctx, identity)
	cache.Seed(identity, "Alice")

	snapshot, ok := cache.Peek(identity)
	if !ok {
		t.Fatal("Expected cached snapshot")
	}
	if snapshot.PlayerName != "Alice" {
		t.Errorf("Expected seeded name Alice, got %s", snapshot.PlayerName)
	}

	cache.Invalidate(identity)
	snapshot = cache.GetOrFetch(ctx, identity)
	if snapshot.PlayerName != "Alice" {
		t.Errorf("Seeded name should survive invalidation, got %s", snapshot.PlayerName)
	}
}

func TestPlayerCacheSpawnedSet(t *testing.T) {
	gw := &fakeGateway{}
	cache := services.NewPlayerStateCache(gw, testLogger())
	ctx := context.Background()
	identity := models.Identity("player-5")
	cache.Track(identity)

	if _, ok := cache.MarkSpawned(identity, "weapon_rifle"); ok {
		t.Fatal("MarkSpawned must fail without a cached snapshot")
	}

	cache.GetOrFetch(ctx, identity)
	snapshot, ok := cache.MarkSpawned(identity, "weapon_rifle")
	if !ok || !snapshot.HasSpawned("weapon_rifle") {
		t.Fatal("Expected item to be marked as spawned")
	}
	if _, ok := cache.MarkSpawned(identity, "weapon_rifle"); ok {
		t.Error("Second spawn of the same item must fail")
	}

	cache.Invalidate(identity)
	snapshot = cache.GetOrFetch(ctx, identity)
	if !snapshot.HasSpawned("weapon_rifle") {
		t.Error("Spawned set should survive invalidation within a round")
	}

	cache.ResetRound()
	snapshot = cache.GetOrFetch(ctx, identity)
	if snapshot.HasSpawned("weapon_rifle") {
		t.Error("Round restart should clear the spawned set")
	}
}
