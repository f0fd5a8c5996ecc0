package game

// Status is a session's lifecycle state.
type Status string

const (
	StatusCreated        Status = "created"
	StatusAwaitingReveal Status = "awaiting_reveal"
	StatusActive         Status = "active"
	StatusWonCashedOut   Status = "won_cashed_out"
	StatusLostOnBomb     Status = "lost_on_bomb"
	StatusForfeited      Status = "forfeited"
	StatusForcedCashout  Status = "forced_cashout"
)

// Terminal states are final; no transition leaves them.
func (s Status) Terminal() bool {
	switch s {
	case StatusWonCashedOut, StatusLostOnBomb, StatusForfeited, StatusForcedCashout:
		return true
	}
	return false
}

func (s Status) Valid() bool {
	switch s {
	case StatusCreated, StatusAwaitingReveal, StatusActive:
		return true
	}
	return s.Terminal()
}

// VoidReason marks a Forfeited session that ended through no choice of the
// player. Voided sessions are refundable by the host.
type VoidReason string

const (
	VoidNone                VoidReason = ""
	VoidInvalidCommitment   VoidReason = "INVALID_COMMITMENT"
	VoidDerivationExhausted VoidReason = "DERIVATION_EXHAUSTED"
	VoidRevealExpired       VoidReason = "REVEAL_EXPIRED"
)

// DisclosurePolicy decides when seeds and bombs become visible through Info
// and BombSet. Nothing is ever visible while the session is live.
type DisclosurePolicy string

const (
	DiscloseOnTerminal DisclosurePolicy = "on_terminal"
	DiscloseNever      DisclosurePolicy = "never"
)

// Outcome describes what a single reveal did.
type Outcome string

const (
	OutcomeSafe          Outcome = "safe"
	OutcomeBomb          Outcome = "bomb"
	OutcomeForcedCashout Outcome = "forced_cashout"
)
