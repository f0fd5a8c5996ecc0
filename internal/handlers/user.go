package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"monsweeper-backend/internal/middleware"
	"monsweeper-backend/internal/services"
)

type UserHandler struct {
	store      services.Store
	jwtService *services.JWTService
}

func NewUserHandler(store services.Store, jwtService *services.JWTService) *UserHandler {
	return &UserHandler{
		store:      store,
		jwtService: jwtService,
	}
}

func (h *UserHandler) GetCurrentUser(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	wallet, err := h.store.GetWallet(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to get wallet", err)
		return
	}

	claims, _ := c.Get(middleware.ContextClaims)
	session := gin.H{"session_id": c.GetString(middleware.ContextSessionID)}
	if cl, ok := claims.(*services.Claims); ok && cl.ExpiresAt != nil {
		session["expires_at"] = cl.ExpiresAt.Time
	}

	c.JSON(http.StatusOK, gin.H{
		"user_id": userID,
		"session": session,
		"wallet":  wallet.Response(),
	})
}

func (h *UserHandler) Logout(c *gin.Context) {
	claims, ok := c.Get(middleware.ContextClaims)
	cl, isClaims := claims.(*services.Claims)
	if !ok || !isClaims {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session not found"})
		return
	}

	if err := h.store.RevokeSession(c.Request.Context(), cl.SessionID, h.jwtService.Remaining(cl)); err != nil {
		respondError(c, "Failed to logout", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Successfully logged out"})
}
