package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

type SessionStore interface {
	StoreUserSession(ctx context.Context, session *models.UserSession, expiry time.Duration) error
	GetUserSession(ctx context.Context, identity models.Identity, sessionID string) (*models.UserSession, error)
	DeleteUserSession(ctx context.Context, identity models.Identity, sessionID string) error
}

type UserHandler struct {
	sessions   SessionStore
	jwtService *services.JWTService
	logger     zerolog.Logger
}

func NewUserHandler(sessions SessionStore, jwtService *services.JWTService, logger zerolog.Logger) *UserHandler {
	return &UserHandler{
		sessions:   sessions,
		jwtService: jwtService,
		logger:     logger.With().Str("component", "auth").Logger(),
	}
}

// CreateSession is called by the game host when a player opens the terminal.
// The returned token is handed to the client for the websocket and REST API.
func (h *UserHandler) CreateSession(c *gin.Context) {
	var req models.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	now := time.Now()
	session := &models.UserSession{
		Identity:     models.Identity(req.Identity),
		PlayerName:   req.PlayerName,
		SessionID:    models.GenerateSessionID(),
		CreatedAt:    now,
		LastAccessed: now,
	}

	if err := h.sessions.StoreUserSession(c.Request.Context(), session, h.jwtService.Expiry()); err != nil {
		h.logger.Error().Err(err).Str("identity", string(session.Identity)).Msg("failed to store session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	token, err := h.jwtService.GenerateToken(session)
	if err != nil {
		h.logger.Error().Err(err).Str("identity", string(session.Identity)).Msg("failed to generate token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"token":      token,
		"expires_in": int(h.jwtService.Expiry().Seconds()),
		"session":    session,
	})
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	identity := identityFrom(c)
	if identity == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID := c.GetString("session_id")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	session, err := h.sessions.GetUserSession(c.Request.Context(), identity, sessionID)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"identity":    session.Identity,
		"player_name": session.PlayerName,
		"session": gin.H{
			"session_id":    session.SessionID,
			"created_at":    session.CreatedAt,
			"last_accessed": session.LastAccessed,
		},
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	identity := identityFrom(c)
	if identity == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	sessionID := c.GetString("session_id")
	if sessionID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	if err := h.sessions.DeleteUserSession(c.Request.Context(), identity, sessionID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
