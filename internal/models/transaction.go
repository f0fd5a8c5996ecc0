package models

import "time"

type TransactionType string

const (
	TransactionTypeBet      TransactionType = "bet"
	TransactionTypeWin      TransactionType = "win"
	TransactionTypeLoss     TransactionType = "loss"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeDeposit  TransactionType = "deposit"
	TransactionTypeBankroll TransactionType = "bankroll"
)

// Transaction is one ledger line. Amounts are in smallest units.
type Transaction struct {
	ID            string          `json:"id"`
	UserID        int64           `json:"user_id"`
	Type          TransactionType `json:"type"`
	Amount        int64           `json:"amount"`
	BalanceBefore int64           `json:"balance_before"`
	BalanceAfter  int64           `json:"balance_after"`
	GameID        string          `json:"game_id,omitempty"`
	Description   string          `json:"description"`
	CreatedAt     time.Time       `json:"created_at"`
}
