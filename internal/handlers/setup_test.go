package handlers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/handlers"
	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeBackend stands in for the rewards API.
type fakeBackend struct {
	mu     sync.Mutex
	hits   map[string]int
	server *httptest.Server
}

func newFakeBackend(t *testing.T) *fakeBackend {
	t.Helper()
	b := &fakeBackend{hits: make(map[string]int)}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/users/{id}/profile", func(w http.ResponseWriter, r *http.Request) {
		b.hit("profile")
		writeJSON(w, http.StatusOK, models.PlayerStateSnapshot{
			PlayerName:   models.UnknownPlayerName,
			PlayerID:     r.PathValue("id"),
			User:         42,
			IsRegistered: true,
			Level:        2,
		})
	})
	mux.HandleFunc("GET /api/users/{id}/inventory", func(w http.ResponseWriter, r *http.Request) {
		b.hit("inventory")
		writeJSON(w, http.StatusOK, models.InventorySnapshot{
			UserID:     42,
			PlayerID:   r.PathValue("id"),
			TotalItems: 1,
			Items:      []models.InventoryItem{{ID: 1, Name: "Rifle", GameEntityID: "weapon_rifle"}},
		})
	})
	mux.HandleFunc("GET /api/shop/items", func(w http.ResponseWriter, r *http.Request) {
		b.hit("shop")
		writeJSON(w, http.StatusOK, models.ShopSnapshot{Items: []models.ShopItem{{ID: 7, Name: "Hat"}}, TotalCount: 1})
	})
	mux.HandleFunc("POST /api/shop/purchase", func(w http.ResponseWriter, r *http.Request) {
		b.hit("purchase")
		writeJSON(w, http.StatusBadRequest, map[string]string{"message": "not enough crystals"})
	})
	mux.HandleFunc("POST /api/users/{id}/spawn-ban", func(w http.ResponseWriter, r *http.Request) {
		b.hit("spawn_ban")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("DELETE /api/spawn-bans", func(w http.ResponseWriter, r *http.Request) {
		b.hit("clear_spawn_bans")
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("POST /api/users/{id}/uptime", func(w http.ResponseWriter, r *http.Request) {
		b.hit("uptime")
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	b.server = httptest.NewServer(mux)
	t.Cleanup(b.server.Close)
	return b
}

func (b *fakeBackend) hit(name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.hits[name]++
}

func (b *fakeBackend) count(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.hits[name]
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

type testApp struct {
	backend     *fakeBackend
	players     *services.PlayerStateCache
	inventories *services.InventoryCache
	queue       *services.UptimeRetryQueue
	lifecycle   *services.SessionLifecycleTracker
	hub         *handlers.WebSocketHub
	coordinator *services.TransactionCoordinator
	spawn       *services.SpawnService
	resolver    *services.LootboxResolver
}

// newTestApp wires the real services against a fake backend. An empty
// backend URL leaves the gateway unconfigured.
func newTestApp(t *testing.T, withBackend bool) *testApp {
	t.Helper()

	logger := discardLogger()
	app := &testApp{}

	baseURL := ""
	if withBackend {
		app.backend = newFakeBackend(t)
		baseURL = app.backend.server.URL
	}
	gw := gateway.NewHTTPGateway(baseURL, "test-key", 2*time.Second, logger)

	pool := pond.NewPool(4)
	t.Cleanup(pool.StopAndWait)

	app.resolver = services.NewLootboxResolver("test-seed")
	app.players = services.NewPlayerStateCache(gw, logger)
	app.inventories = services.NewInventoryCache(gw, logger)
	shop := services.NewShopCache(gw, time.Minute, logger)
	app.queue = services.NewUptimeRetryQueue(gw, pool, time.Minute, logger)
	app.lifecycle = services.NewSessionLifecycleTracker(app.players, app.inventories, app.queue, pool, logger)
	app.hub = handlers.NewWebSocketHub(app.lifecycle, logger)
	app.coordinator = services.NewTransactionCoordinator(gw, app.players, app.inventories, shop, app.resolver, app.hub, logger)
	app.spawn = services.NewSpawnService(gw, app.players, app.inventories, app.hub, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go app.hub.Run(ctx)
	t.Cleanup(cancel)

	return app
}

func discardLogger() zerolog.Logger {
	return zerolog.Nop()
}

// asIdentity stands in for the JWT middleware in handler tests.
func asIdentity(c *gin.Context) {
	if identity := c.Query("as"); identity != "" {
		c.Set("identity", identity)
		c.Set("player_name", c.Query("name"))
	}
	c.Next()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
