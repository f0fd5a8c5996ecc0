package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
	"monsweeper-backend/internal/logger"
	"monsweeper-backend/internal/middleware"
	"monsweeper-backend/internal/models"
	"monsweeper-backend/internal/services"
)

type GameHandler struct {
	gameEngine *services.GameEngine
}

func NewGameHandler(gameEngine *services.GameEngine) *GameHandler {
	return &GameHandler{gameEngine: gameEngine}
}

func (h *GameHandler) StartGame(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.StartGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.gameEngine.StartGame(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, "Failed to start game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"game":                    resp.Game,
		"counterparty_commitment": resp.CounterpartyCommitment,
	})
}

func (h *GameHandler) ActivateGame(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.ActivateGameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	info, err := h.gameEngine.ActivateGame(c.Request.Context(), userID, req.GameID, req.PlayerSeed)
	if err != nil {
		if errors.Is(err, game.ErrInvalidCommitment) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error":   "Seed does not match commitment, game voided and bet refunded",
				"details": err.Error(),
				"game":    info,
			})
			return
		}
		respondError(c, "Failed to activate game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    info,
	})
}

func (h *GameHandler) Reveal(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.RevealRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	resp, err := h.gameEngine.Reveal(c.Request.Context(), userID, req.GameID, *req.Position)
	if err != nil {
		respondError(c, "Failed to reveal tile", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"result":      resp.Result,
		"game":        resp.Game,
		"new_balance": resp.NewBalance,
	})
}

func (h *GameHandler) CashOut(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.GameActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.CashOut(c.Request.Context(), userID, req.GameID)
	if err != nil {
		respondError(c, "Failed to cash out", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) Forfeit(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	var req models.GameActionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	info, err := h.gameEngine.Forfeit(c.Request.Context(), userID, req.GameID)
	if err != nil {
		respondError(c, "Failed to forfeit game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    info,
	})
}

func (h *GameHandler) GetGame(c *gin.Context) {
	info, err := h.gameEngine.GetGameInfo(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to fetch game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    info,
	})
}

func (h *GameHandler) GetBombs(c *gin.Context) {
	disclosure, err := h.gameEngine.GetBombSet(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Bombs are not available", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":                 true,
		"game":                    disclosure.Game,
		"bombs":                   disclosure.Bombs,
		"counterparty_commitment": disclosure.CounterpartyCommitment,
	})
}

func (h *GameHandler) ForceCheck(c *gin.Context) {
	decision, err := h.gameEngine.ShouldForceCashout(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, "Failed to evaluate game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":  true,
		"decision": decision,
	})
}

func (h *GameHandler) GetActiveGame(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	info, err := h.gameEngine.GetActiveGame(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to fetch active game", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"game":    info,
	})
}

func (h *GameHandler) GetGameHistory(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	games, err := h.gameEngine.GetGameHistory(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "Failed to fetch game history", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"games":   games,
		"count":   len(games),
	})
}

func (h *GameHandler) GetBalance(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	wallet, err := h.gameEngine.GetBalance(c.Request.Context(), userID)
	if err != nil {
		respondError(c, "Failed to get wallet", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"balance": wallet.Response(),
	})
}

func (h *GameHandler) GetTransactions(c *gin.Context) {
	userID := c.GetInt64(middleware.ContextUserID)

	txs, err := h.gameEngine.GetTransactions(c.Request.Context(), userID, queryLimit(c))
	if err != nil {
		respondError(c, "Failed to fetch transactions", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"transactions": txs,
		"count":        len(txs),
	})
}

// VerifyGame recomputes a game from disclosed seeds. It needs no session.
func (h *GameHandler) VerifyGame(c *gin.Context) {
	var req game.VerifyInput
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if req.Scheme == 0 {
		req.Scheme = fairness.DefaultScheme
	}

	result, err := h.gameEngine.Verify(req)
	if err != nil {
		respondError(c, "Verification failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"verification": result,
	})
}

func queryLimit(c *gin.Context) int64 {
	limit, err := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)
	if err != nil || limit <= 0 || limit > services.MaxHistory {
		return services.DefaultHistory
	}
	return limit
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request",
		"details": err.Error(),
	})
}

func respondError(c *gin.Context, message string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error(message, "path", c.FullPath(), "error", err)
	}
	c.JSON(status, gin.H{
		"error":   message,
		"details": err.Error(),
	})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, services.ErrGameNotFound):
		return http.StatusNotFound
	case errors.Is(err, services.ErrNotOwner),
		errors.Is(err, game.ErrBombSetHidden):
		return http.StatusForbidden
	case errors.Is(err, services.ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, services.ErrInsufficientBalance):
		return http.StatusPaymentRequired
	case errors.Is(err, services.ErrActiveGameExists),
		errors.Is(err, services.ErrBankrollChanged),
		errors.Is(err, game.ErrNotActive),
		errors.Is(err, game.ErrSessionTerminal),
		errors.Is(err, game.ErrInvalidTransition),
		errors.Is(err, game.ErrNoSafeTilesRemaining):
		return http.StatusConflict
	case errors.Is(err, game.ErrInvalidParams),
		errors.Is(err, game.ErrOutOfRangePosition),
		errors.Is(err, game.ErrDuplicateReveal),
		errors.Is(err, game.ErrNothingToCashOut),
		errors.Is(err, game.ErrInvalidCommitment),
		errors.Is(err, fairness.ErrUnknownScheme):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
