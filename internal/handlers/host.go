package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"rewards-terminal/internal/gateway"
	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// HostHandler serves the hooks the game host calls: spawn checks, round and
// loadout events, and operational views.
type HostHandler struct {
	spawn    *services.SpawnService
	queue    *services.UptimeRetryQueue
	resolver *services.LootboxResolver
}

func NewHostHandler(spawn *services.SpawnService, queue *services.UptimeRetryQueue, resolver *services.LootboxResolver) *HostHandler {
	return &HostHandler{
		spawn:    spawn,
		queue:    queue,
		resolver: resolver,
	}
}

func (h *HostHandler) RequestSpawn(c *gin.Context) {
	identity := models.Identity(c.Param("identity"))

	var req models.SpawnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	decision := h.spawn.RequestSpawn(c.Request.Context(), identity, req.GameEntityID)
	status := http.StatusOK
	if !decision.Allowed {
		status = http.StatusConflict
	}
	c.JSON(status, decision)
}

func (h *HostHandler) StartingGear(c *gin.Context) {
	identity := models.Identity(c.Param("identity"))

	if err := h.spawn.OnStartingGear(c.Request.Context(), identity); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": gateway.FailureMessage(err)})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// RoundRestart always resets local round state; a failure to reach the
// backend is reported but not rolled back.
func (h *HostHandler) RoundRestart(c *gin.Context) {
	if err := h.spawn.OnRoundRestart(c.Request.Context()); err != nil {
		c.JSON(http.StatusBadGateway, gin.H{
			"reset": true,
			"error": gateway.FailureMessage(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"reset": true})
}

func (h *HostHandler) PendingUptime(c *gin.Context) {
	pending := h.queue.Pending()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(pending),
		"sessions": pending,
	})
}

func (h *HostHandler) RotateLootboxSeed(c *gin.Context) {
	var req struct {
		Seed string `json:"seed"`
	}
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid request",
				"details": err.Error(),
			})
			return
		}
	}

	h.resolver.RotateServerSeed(req.Seed)
	c.JSON(http.StatusOK, gin.H{"server_seed_hash": h.resolver.ServerSeedHash()})
}

func HealthHandler(store Pinger, queue *services.UptimeRetryQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		redisStatus := "ok"
		if err := store.Ping(c.Request.Context()); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = err.Error()
		}
		c.JSON(status, gin.H{
			"redis":          redisStatus,
			"pending_uptime": queue.Len(),
		})
	}
}
