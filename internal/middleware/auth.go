package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"monsweeper-backend/internal/services"
)

const (
	ContextUserID    = "user_id"
	ContextSessionID = "session_id"
	ContextClaims    = "claims"
)

// AuthMiddleware accepts a bearer token, or a token query parameter for
// websocket upgrades, and rejects revoked sessions.
func AuthMiddleware(jwtService *services.JWTService, store services.Store) gin.HandlerFunc {
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

		claims, err := jwtService.ValidateToken(tokenString)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		revoked, err := store.IsSessionRevoked(c.Request.Context(), claims.SessionID)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Session check failed"})
			return
		}
		if revoked {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Session has been logged out"})
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextClaims, claims)

		c.Next()
	}
}

type rateRule struct {
	suffix string
	limit  int
}

var rateRules = []rateRule{
	{"/games/reveal", services.DefaultRateLimitReveal},
	{"/games/cashout", services.DefaultRateLimitAction},
	{"/games/activate", services.DefaultRateLimitAction},
	{"/games/forfeit", services.DefaultRateLimitAction},
}

// RateLimitMiddleware applies per-player limits to game actions. Starting a
// game is limited by the engine itself.
func RateLimitMiddleware(store services.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := c.GetInt64(ContextUserID)
		if userID == 0 {
			c.Next()
			return
		}

		path := c.Request.URL.Path
		window := time.Minute

		for _, rule := range rateRules {
			if !strings.HasSuffix(path, rule.suffix) {
				continue
			}
			allowed, err := store.CheckRateLimit(c.Request.Context(), userID, rule.suffix, rule.limit, window)
			if err != nil || !allowed {
				c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
					"error":       "Rate limit exceeded",
					"retry_after": window.Seconds(),
				})
				return
			}
			break
		}

		c.Next()
	}
}
