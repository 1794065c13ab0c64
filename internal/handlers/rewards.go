package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

type RewardsHandler struct {
	coordinator *services.TransactionCoordinator
	resolver    *services.LootboxResolver
}

func NewRewardsHandler(coordinator *services.TransactionCoordinator, resolver *services.LootboxResolver) *RewardsHandler {
	return &RewardsHandler{
		coordinator: coordinator,
		resolver:    resolver,
	}
}

func identityFrom(c *gin.Context) models.Identity {
	return models.Identity(c.GetString("identity"))
}

// resultStatus maps a failed result value to an HTTP status. Results are
// always returned in the body.
func resultStatus(success bool, message string) int {
	switch {
	case success:
		return http.StatusOK
	case message == models.MessageServiceUnavailable:
		return http.StatusServiceUnavailable
	case message == models.MessageDataNotLoaded, message == models.MessageNoSession:
		return http.StatusConflict
	case message == models.MessageUnconfirmed:
		return http.StatusBadGateway
	default:
		return http.StatusUnprocessableEntity
	}
}

func (h *RewardsHandler) GetProfile(c *gin.Context) {
	snapshot := h.coordinator.RefreshProfile(c.Request.Context(), identityFrom(c))
	c.JSON(resultStatus(!snapshot.HasError, snapshot.ErrorMessage), snapshot)
}

func (h *RewardsHandler) GetShop(c *gin.Context) {
	page := 1
	if raw := c.Query("page"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid page"})
			return
		}
		page = parsed
	}

	shop := h.coordinator.RefreshShop(c.Request.Context(), identityFrom(c), page)
	c.JSON(resultStatus(!shop.HasError, shop.ErrorMessage), shop)
}

func (h *RewardsHandler) GetCalendar(c *gin.Context) {
	calendar := h.coordinator.RefreshCalendar(c.Request.Context(), identityFrom(c))
	c.JSON(resultStatus(!calendar.HasError, calendar.ErrorMessage), calendar)
}

func (h *RewardsHandler) GetInventory(c *gin.Context) {
	inventory := h.coordinator.RefreshInventory(c.Request.Context(), identityFrom(c))
	c.JSON(resultStatus(!inventory.HasError, inventory.ErrorMessage), inventory)
}

func (h *RewardsHandler) Purchase(c *gin.Context) {
	var req models.PurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result := h.coordinator.Purchase(c.Request.Context(), identityFrom(c), req.ItemID, req.Period)
	c.JSON(resultStatus(result.Success, result.Message), result)
}

func (h *RewardsHandler) ClaimReward(c *gin.Context) {
	var req models.ClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result := h.coordinator.ClaimReward(c.Request.Context(), identityFrom(c), req.RewardID, req.IsPremium)
	c.JSON(resultStatus(result.Success, result.Message), result)
}

func (h *RewardsHandler) OpenLootbox(c *gin.Context) {
	var req models.OpenLootboxRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}
	if err := req.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	result := h.coordinator.OpenLootbox(c.Request.Context(), identityFrom(c), req.UserItemID, req.Suspense)
	c.JSON(resultStatus(result.Success, result.Message), result)
}

// GetLootboxSeedHash publishes the commitment to the current reveal seed.
func (h *RewardsHandler) GetLootboxSeedHash(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"server_seed_hash": h.resolver.ServerSeedHash(),
		"sequence_length":  services.RevealSequenceLength,
		"winning_index":    services.RevealWinningIndex,
	})
}

// VerifySequence rebuilds a reveal strip from its seed so a client can check
// the animation it was shown.
func (h *RewardsHandler) VerifySequence(c *gin.Context) {
	seed := c.Query("seed")
	rarity, err := models.ParseRarity(c.Query("rarity"))
	if seed == "" || err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "seed and a valid rarity are required"})
		return
	}

	sequence, err := services.RebuildSequence(seed, rarity)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid seed",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"sequence":      sequence,
		"winning_index": services.RevealWinningIndex,
	})
}
