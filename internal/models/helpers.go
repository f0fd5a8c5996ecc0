package models

import (
	"fmt"

	"github.com/google/uuid"

	"monsweeper-backend/internal/odds"
)

func GenerateGameID() string {
	return "game_" + uuid.NewString()
}

func GenerateTransactionID() string {
	return "tx_" + uuid.NewString()
}

// Validate checks the request against the bet bounds and tiers of p.
func (r *StartGameRequest) Validate(p odds.Policy) error {
	if r.Bet < p.MinBet {
		return fmt.Errorf("minimum bet is %d", p.MinBet)
	}
	if r.Bet > p.MaxBet {
		return fmt.Errorf("maximum bet is %d", p.MaxBet)
	}
	if _, err := p.BombCount(r.Difficulty); err != nil {
		return err
	}
	if r.CommitmentHash.IsZero() {
		return fmt.Errorf("commitment_hash is required")
	}
	return nil
}

func NewWallet(userID int64) *Wallet {
	return &Wallet{UserID: userID}
}
