package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

const (
	KeyPlayerID   = "player_id"
	KeyPlayerKind = "player_kind"
)

// TokenValidator checks a bearer token and returns its claims.
type TokenValidator interface {
	ValidateToken(token string) (*services.Claims, error)
}

func AuthMiddleware(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		var tokenString string

		if authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
				return
			}
			tokenString = parts[1]
		} else {
			tokenString = c.Query("token")
			if tokenString == "" {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
				return
			}
		}

		claims, err := validator.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set(KeyPlayerID, claims.PlayerID)
		c.Set(KeyPlayerKind, claims.PlayerKind)

		c.Next()
	}
}

// PlayerID returns the authenticated player of the request.
func PlayerID(c *gin.Context) string {
	return c.GetString(KeyPlayerID)
}

func PlayerKind(c *gin.Context) models.PlayerKind {
	kind, _ := c.Get(KeyPlayerKind)
	k, _ := kind.(models.PlayerKind)
	return k
}

// RateLimiter counts actions per player within a window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, playerID, action string, limit int, window time.Duration) (bool, error)
}

// RateLimitMiddleware limits how often one player can hit the wrapped route.
// A limiter outage is reported as a transient failure rather than let through.
func RateLimitMiddleware(limiter RateLimiter, action string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		playerID := PlayerID(c)
		if playerID == "" {
			c.Next()
			return
		}

		allowed, err := limiter.CheckRateLimit(c.Request.Context(), playerID, action, limit, window)
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("player_id", playerID), zap.Error(err))
			c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.CodeTransientFailure), gin.H{
				"error": "Rate limit check failed",
				"code":  apperr.CodeTransientFailure,
			})
			return
		}
		if !allowed {
			c.AbortWithStatusJSON(apperr.HTTPStatus(apperr.CodeRateLimited), gin.H{
				"error":       "Rate limit exceeded",
				"code":        apperr.CodeRateLimited,
				"retry_after": window.Seconds(),
			})
			return
		}

		c.Next()
	}
}
