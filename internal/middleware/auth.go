package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"rewards-terminal/internal/models"
	"rewards-terminal/internal/services"
)

type SessionLookup interface {
	GetUserSession(ctx context.Context, identity models.Identity, sessionID string) (*models.UserSession, error)
}

type RateLimiter interface {
	CheckRateLimit(ctx context.Context, identity models.Identity, action string, limit int, window time.Duration) (bool, error)
}

// AuthMiddleware accepts a bearer token or, for websocket upgrades, a token
// query parameter. The session behind the token must still exist, so logout
// revokes it.
func AuthMiddleware(jwtService *services.JWTService, sessions SessionLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				c.Abort()
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				c.Abort()
				return
			}
		}

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		if sessions != nil {
			if _, err := sessions.GetUserSession(c.Request.Context(), claims.Identity, claims.SessionID); err != nil {
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired or invalid"})
				c.Abort()
				return
			}
		}

		c.Set("identity", string(claims.Identity))
		c.Set("player_name", claims.PlayerName)
		c.Set("session_id", claims.SessionID)

		c.Next()
	}
}

// HostKeyMiddleware guards the game-host hooks with a shared key. An empty
// key disables the hooks entirely.
func HostKeyMiddleware(key string) gin.HandlerFunc {
	return func(c *gin.Context) {
		provided := c.GetHeader("X-Host-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid host key"})
			c.Abort()
			return
		}
		c.Next()
	}
}

func RateLimitMiddleware(limiter RateLimiter, action string, limit int) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity := c.GetString("identity")
		if identity == "" || limit <= 0 {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), models.Identity(identity), action, limit, services.RateWindow)
		if err != nil || !allowed {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": services.RateWindow.Seconds(),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			event = logger.Info()
		}

		event = event.
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", status).
			Int64("duration_ms", time.Since(start).Milliseconds())
		if identity := c.GetString("identity"); identity != "" {
			event = event.Str("identity", identity)
		}
		event.Msg("request")
	}
}

func CORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	}
}
