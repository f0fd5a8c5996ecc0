package models

// Wallet is stored as a Redis hash; the redis tags name its fields.
type Wallet struct {
	UserID        int64 `json:"user_id" redis:"user_id"`
	Balance       int64 `json:"balance" redis:"balance"`
	LockedBalance int64 `json:"locked_balance" redis:"locked_balance"`
	TotalWagered  int64 `json:"total_wagered" redis:"total_wagered"`
	TotalWon      int64 `json:"total_won" redis:"total_won"`
}

type BalanceResponse struct {
	Balance       int64 `json:"balance"`
	LockedBalance int64 `json:"locked_balance"`
	TotalWagered  int64 `json:"total_wagered"`
	TotalWon      int64 `json:"total_won"`
}

func (w *Wallet) Response() BalanceResponse {
	return BalanceResponse{
		Balance:       w.Balance,
		LockedBalance: w.LockedBalance,
		TotalWagered:  w.TotalWagered,
		TotalWon:      w.TotalWon,
	}
}
