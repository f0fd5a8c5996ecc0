package services

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/config"
	"monsweeper-backend/internal/models"
	"monsweeper-backend/internal/odds"
)

var (
	ErrGameNotFound        = errors.New("game not found")
	ErrNotOwner            = errors.New("game belongs to another player")
	ErrActiveGameExists    = errors.New("player already has an active game")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrInsufficientFunds   = errors.New("house bankroll cannot cover payout")
	ErrBankrollChanged     = errors.New("bankroll changed, payout no longer allowed")
	ErrRateLimited         = errors.New("rate limit exceeded")
	ErrSessionRevoked      = errors.New("session revoked")
)

// SettleRequest moves the escrowed bet of a terminal game. The player is
// credited Payout; the house bankroll absorbs Bet − Payout.
type SettleRequest struct {
	UserID int64
	GameID string
	Bet    int64
	Payout int64
	// Won is the part of Payout counted as winnings; zero for refunds.
	Won int64
	// CapFraction, when positive, re-checks Payout against the live bankroll
	// with the same rule as the risk guard (odds.MaxAllowedPayout).
	CapFraction decimal.Decimal
}

// checkSettlement validates req against the bankroll read inside the
// store's atomic section.
func checkSettlement(bankroll int64, req SettleRequest) error {
	if req.CapFraction.IsPositive() && req.Payout > odds.MaxAllowedPayout(bankroll, req.Bet, req.CapFraction) {
		return ErrBankrollChanged
	}
	if req.Payout-req.Bet > bankroll {
		return ErrInsufficientFunds
	}
	return nil
}

// Store is the host's persistence and money movement. RedisService and
// MemoryStore implement it; every balance change is atomic.
type Store interface {
	GetWallet(ctx context.Context, userID int64) (*models.Wallet, error)
	Deposit(ctx context.Context, userID, amount int64) (*models.Wallet, error)
	LockBet(ctx context.Context, userID, bet int64) error
	// ReleaseBet returns an escrowed bet that never reached a game.
	ReleaseBet(ctx context.Context, userID, bet int64) error
	// Settle is idempotent per GameID; a repeated call returns settled=false.
	Settle(ctx context.Context, req SettleRequest) (settled bool, err error)

	GetBankroll(ctx context.Context) (int64, error)
	FundBankroll(ctx context.Context, amount int64) (int64, error)

	ClaimActiveGame(ctx context.Context, userID int64, gameID string) (bool, error)
	GetActiveGameID(ctx context.Context, userID int64) (string, error)
	ReleaseActiveGame(ctx context.Context, userID int64, gameID string) error
	NextNonce(ctx context.Context) (uint64, error)

	SaveGame(ctx context.Context, entry *models.GameEntry) error
	GetGame(ctx context.Context, gameID string) (*models.GameEntry, error)
	ListOpenGames(ctx context.Context) ([]string, error)
	CompleteGame(ctx context.Context, userID int64, gameID string, at time.Time) error
	GetGameHistory(ctx context.Context, userID int64, limit int64) ([]*models.GameEntry, error)

	SaveTransaction(ctx context.Context, tx *models.Transaction) error
	GetUserTransactions(ctx context.Context, userID int64, limit int64) ([]*models.Transaction, error)

	CheckRateLimit(ctx context.Context, userID int64, action string, limit int, window time.Duration) (bool, error)
	RevokeSession(ctx context.Context, sessionID string, ttl time.Duration) error
	IsSessionRevoked(ctx context.Context, sessionID string) (bool, error)

	Close() error
}

func clampLimit(limit int64) int64 {
	if limit <= 0 || limit > MaxHistory {
		return DefaultHistory
	}
	return limit
}

var (
	_ Store = (*RedisService)(nil)
	_ Store = (*MemoryStore)(nil)
)

// OpenStore returns the backend selected by STORE_BACKEND.
func OpenStore(cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		return NewMemoryStore(), nil
	default:
		rs, err := NewRedisService(cfg)
		if err != nil {
			return nil, err
		}
		return rs, nil
	}
}
