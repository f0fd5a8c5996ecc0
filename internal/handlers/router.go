package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/middleware"
	"monsweeper-backend/internal/services"
)

type RouterDeps struct {
	Engine     *services.GameEngine
	Store      services.Store
	JWTService *services.JWTService
	WebSocket  *WebSocketHandler
}

func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), cors())

	gameHandler := NewGameHandler(deps.Engine)
	userHandler := NewUserHandler(deps.Store, deps.JWTService)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	public := router.Group("/api")
	public.POST("/games/verify", gameHandler.VerifyGame)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(deps.JWTService, deps.Store), middleware.RateLimitMiddleware(deps.Store))
	{
		protected.GET("/me", userHandler.GetCurrentUser)
		protected.POST("/logout", userHandler.Logout)

		if deps.WebSocket != nil {
			protected.GET("/ws", deps.WebSocket.HandleWebSocket)
		}

		games := protected.Group("/games")
		{
			games.POST("/start", gameHandler.StartGame)
			games.POST("/activate", gameHandler.ActivateGame)
			games.POST("/reveal", gameHandler.Reveal)
			games.POST("/cashout", gameHandler.CashOut)
			games.POST("/forfeit", gameHandler.Forfeit)

			games.GET("/active", gameHandler.GetActiveGame)
			games.GET("/history", gameHandler.GetGameHistory)
			games.GET("/balance", gameHandler.GetBalance)
			games.GET("/transactions", gameHandler.GetTransactions)

			games.GET("/:id", gameHandler.GetGame)
			games.GET("/:id/bombs", gameHandler.GetBombs)
			games.GET("/:id/force-check", gameHandler.ForceCheck)
		}
	}

	return router
}

func cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		args := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
		}
		if userID := c.GetInt64(middleware.ContextUserID); userID != 0 {
			args = append(args, "user_id", userID)
		}
		if status >= http.StatusInternalServerError {
			logger.Error("request failed", args...)
			return
		}
		logger.Debug("request", args...)
	}
}
