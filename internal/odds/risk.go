package odds

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ReasonCode is a machine-readable cause for a forced cash-out.
type ReasonCode string

const (
	ReasonNone              ReasonCode = ""
	ReasonBankrollExceeded  ReasonCode = "BANKROLL_EXCEEDED"
	ReasonNoSafeTilesRemain ReasonCode = "NO_SAFE_TILES_REMAINING"
)

// Decision is the Risk Guard verdict for one hypothetical payout.
type Decision struct {
	Force              bool       `json:"force"`
	Reason             ReasonCode `json:"reason,omitempty"`
	Message            string     `json:"message,omitempty"`
	MaxAllowedPayout   int64      `json:"max_allowed_payout"`
	HypotheticalPayout int64      `json:"hypothetical_payout"`
}

// MaxAllowedPayout is floor(max(0, bankroll − bet) × capFraction).
func MaxAllowedPayout(bankroll, bet int64, capFraction decimal.Decimal) int64 {
	if bankroll <= bet || !capFraction.IsPositive() {
		return 0
	}
	return decimal.NewFromInt(bankroll - bet).Mul(capFraction).Floor().IntPart()
}

// ShouldForceCashout trips when hypotheticalPayout exceeds the share of free
// bankroll a single game may claim.
func ShouldForceCashout(bankroll, bet, hypotheticalPayout int64, capFraction decimal.Decimal) Decision {
	limit := MaxAllowedPayout(bankroll, bet, capFraction)
	d := Decision{
		MaxAllowedPayout:   limit,
		HypotheticalPayout: hypotheticalPayout,
	}
	if hypotheticalPayout > limit {
		d.Force = true
		d.Reason = ReasonBankrollExceeded
		d.Message = fmt.Sprintf("payout %d would exceed the maximum allowed payout of %d", hypotheticalPayout, limit)
	}
	return d
}
