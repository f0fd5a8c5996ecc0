package services

import "time"

const (
	KeyWallet             = "wallet:%d"
	KeyBankroll           = "house:bankroll"
	KeyNonce              = "house:nonce"
	KeyGame               = "game:entry:%s"
	KeyGameSettled        = "game:settled:%s"
	KeyOpenGames          = "games:open"
	KeyUserActiveGame     = "user:%d:active_game"
	KeyUserCompletedGames = "user:%d:completed_games"
	KeyTransaction        = "transaction:%s"
	KeyUserTransactions   = "user:%d:transactions"
	KeyRateLimit          = "ratelimit:%d:%s"
	KeyRevokedSession     = "session:revoked:%s"

	TTLGame        = 7 * 24 * time.Hour
	TTLActiveGame  = 24 * time.Hour
	TTLTransaction = 30 * 24 * time.Hour
	TTLSettled     = 30 * 24 * time.Hour

	MaxHistory     = 100
	DefaultHistory = 50

	DefaultRateLimitStart  = 30  // per minute
	DefaultRateLimitReveal = 120 // per minute
	DefaultRateLimitAction = 60  // per minute
)
