package models

import (
	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
	"monsweeper-backend/internal/odds"
)

type StartGameRequest struct {
	Difficulty     odds.Difficulty `json:"difficulty"`
	Bet            int64           `json:"bet" binding:"required,min=1"`
	CommitmentHash fairness.Seed   `json:"commitment_hash"`
}

type ActivateGameRequest struct {
	GameID     string        `json:"game_id" binding:"required"`
	PlayerSeed fairness.Seed `json:"player_seed"`
}

type RevealRequest struct {
	GameID   string `json:"game_id" binding:"required"`
	Position *int   `json:"position" binding:"required,min=0"`
}

type GameActionRequest struct {
	GameID string `json:"game_id" binding:"required"`
}

type StartGameResponse struct {
	Game                   game.Info     `json:"game"`
	CounterpartyCommitment fairness.Seed `json:"counterparty_commitment"`
}

type RevealResponse struct {
	Result     game.RevealResult `json:"result"`
	Game       game.Info         `json:"game"`
	NewBalance *int64            `json:"new_balance,omitempty"`
}

// GameResult describes a settled game.
type GameResult struct {
	GameID     string          `json:"game_id"`
	Status     game.Status     `json:"status"`
	Win        bool            `json:"win"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     int64           `json:"payout"`
	NewBalance int64           `json:"new_balance"`
}

// GameDisclosure is what a player sees after a game ends.
type GameDisclosure struct {
	Game                   game.Info     `json:"game"`
	Bombs                  []int         `json:"bombs"`
	CounterpartyCommitment fairness.Seed `json:"counterparty_commitment"`
}
