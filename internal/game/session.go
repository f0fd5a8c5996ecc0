// Package game is the single-game state machine. It is synchronous and does
// no I/O: the host supplies bankroll snapshots, persists Records and
// serializes calls per session.
package game

import (
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

type Params struct {
	ID             string
	Player         int64
	Bet            int64
	Difficulty     odds.Difficulty
	CommitmentHash fairness.Seed
	Scheme         fairness.Scheme
	// Nonce is folded into the combined seed by fairness.SchemeV2.
	Nonce      uint64
	Disclosure DisclosurePolicy
	// Now defaults to time.Now.
	Now func() time.Time
}

type Session struct {
	policy odds.Policy
	now    func() time.Time

	id             string
	player         int64
	bet            int64
	difficulty     odds.Difficulty
	bombCount      int
	safeTiles      int
	commitmentHash fairness.Seed
	scheme         fairness.Scheme
	nonce          uint64

	playerSeed       *fairness.Seed
	counterpartySeed *fairness.Seed
	combinedSeed     *fairness.Seed
	bombs            *fairness.BombSet

	revealed []int
	mask     []bool
	bombHit  *int

	status      Status
	voidReason  VoidReason
	forceReason odds.ReasonCode
	multiplier  decimal.Decimal
	payout      int64

	disclosure DisclosurePolicy
	disclosed  bool

	startedAt time.Time
	endedAt   time.Time
}

// RevealResult reports the effect of one accepted reveal.
type RevealResult struct {
	Position   int             `json:"position"`
	Outcome    Outcome         `json:"outcome"`
	Status     Status          `json:"status"`
	Multiplier decimal.Decimal `json:"multiplier"`
	// Payout is the amount owed if the session ended, otherwise the amount a
	// cash-out would pay now.
	Payout   int64         `json:"payout"`
	Decision odds.Decision `json:"decision"`
}

// Settlement is the final amount owed to the player for a terminal session.
type Settlement struct {
	Status     Status          `json:"status"`
	Bet        int64           `json:"bet"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Payout     int64           `json:"payout"`
	Refund     bool            `json:"refund"`
}

// New creates a session in StatusCreated.
func New(policy odds.Policy, p Params) (*Session, error) {
	bombs, err := policy.BombCount(p.Difficulty)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	switch {
	case p.ID == "":
		return nil, fmt.Errorf("%w: empty id", ErrInvalidParams)
	case p.Bet <= 0:
		return nil, fmt.Errorf("%w: bet must be positive", ErrInvalidParams)
	case p.CommitmentHash.IsZero():
		return nil, fmt.Errorf("%w: missing commitment hash", ErrInvalidParams)
	case !p.Scheme.Valid():
		return nil, fmt.Errorf("%w: %v", ErrInvalidParams, p.Scheme)
	}

	now := p.Now
	if now == nil {
		now = time.Now
	}
	disclosure := p.Disclosure
	if disclosure == "" {
		disclosure = DiscloseOnTerminal
	}

	return &Session{
		policy:         policy,
		now:            now,
		id:             p.ID,
		player:         p.Player,
		bet:            p.Bet,
		difficulty:     p.Difficulty,
		bombCount:      bombs,
		safeTiles:      policy.GridSize - bombs,
		commitmentHash: p.CommitmentHash,
		scheme:         p.Scheme,
		nonce:          p.Nonce,
		mask:           make([]bool, policy.GridSize),
		status:         StatusCreated,
		multiplier:     decimal.Zero,
		disclosure:     disclosure,
		startedAt:      now().UTC(),
	}, nil
}

func (s *Session) ID() string                  { return s.id }
func (s *Session) Player() int64               { return s.player }
func (s *Session) Bet() int64                  { return s.bet }
func (s *Session) Difficulty() odds.Difficulty { return s.difficulty }
func (s *Session) Status() Status              { return s.status }
func (s *Session) SafeReveals() int            { return len(s.revealed) }
func (s *Session) Revealed() []int             { return slices.Clone(s.revealed) }
func (s *Session) StartedAt() time.Time        { return s.startedAt }
func (s *Session) EndedAt() time.Time          { return s.endedAt }
func (s *Session) VoidReason() VoidReason      { return s.voidReason }

// Refundable reports whether the host should return the bet.
func (s *Session) Refundable() bool {
	return s.status == StatusForfeited && s.voidReason != VoidNone
}

// PostCommitment records that the commitment hash has been published.
func (s *Session) PostCommitment() error {
	if err := s.expect(StatusCreated); err != nil {
		return err
	}
	s.status = StatusAwaitingReveal
	return nil
}

// Activate verifies the revealed player seed against the commitment,
// combines it with the counterparty seed and derives the bomb set once.
//
// A reveal that does not match, or a derivation that cannot complete, voids
// the session permanently. There is no retry with different seeds.
func (s *Session) Activate(playerSeed, counterpartySeed fairness.Seed) error {
	if err := s.expect(StatusAwaitingReveal); err != nil {
		return err
	}

	cp := counterpartySeed
	s.counterpartySeed = &cp

	if !fairness.VerifyReveal(s.commitmentHash, playerSeed) {
		s.void(VoidInvalidCommitment)
		return ErrInvalidCommitment
	}
	ps := playerSeed
	s.playerSeed = &ps

	combined, err := fairness.Combine(s.scheme, playerSeed, counterpartySeed, s.aux())
	if err != nil {
		return err
	}
	s.combinedSeed = &combined

	bombs, err := fairness.DeriveBombs(combined, s.bombCount, s.policy.GridSize)
	if err != nil {
		s.void(VoidDerivationExhausted)
		return err
	}
	s.bombs = &bombs
	s.status = StatusActive
	return nil
}

// CheckReveal evaluates the Risk Guard for one more reveal without changing
// any state.
func (s *Session) CheckReveal(bankroll int64) (odds.Decision, error) {
	if err := s.expect(StatusActive); err != nil {
		return odds.Decision{}, err
	}
	return s.decide(bankroll)
}

func (s *Session) decide(bankroll int64) (odds.Decision, error) {
	next := len(s.revealed) + 1
	if next > s.safeTiles {
		return odds.Decision{
			Force:   true,
			Reason:  odds.ReasonNoSafeTilesRemain,
			Message: "every safe tile has been revealed",
		}, nil
	}

	payout, _, err := s.policy.Payout(s.difficulty, s.bet, next)
	switch {
	case errors.Is(err, odds.ErrArithmeticOverflow):
		d := odds.ShouldForceCashout(bankroll, s.bet, 0, s.policy.CapFraction)
		d.Force = true
		d.Reason = odds.ReasonBankrollExceeded
		d.Message = "next payout exceeds the representable range"
		return d, nil
	case err != nil:
		return odds.Decision{}, err
	}
	return odds.ShouldForceCashout(bankroll, s.bet, payout, s.policy.CapFraction), nil
}

// Reveal uncovers one tile. The Risk Guard runs first against bankroll: if
// the reveal would push the payout past the allowed exposure, the session
// ends in StatusForcedCashout at the current multiplier and the tile stays
// covered. Rejected reveals leave the session unchanged.
func (s *Session) Reveal(pos int, bankroll int64) (RevealResult, error) {
	if err := s.expect(StatusActive); err != nil {
		return RevealResult{}, err
	}
	if pos < 0 || pos >= s.policy.GridSize {
		return RevealResult{}, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRangePosition, pos, s.policy.GridSize)
	}
	if s.mask[pos] {
		return RevealResult{}, fmt.Errorf("%w: %d", ErrDuplicateReveal, pos)
	}
	if len(s.revealed) >= s.safeTiles {
		return RevealResult{}, fmt.Errorf("%w: all %d safe tiles revealed", ErrNoSafeTilesRemaining, s.safeTiles)
	}

	decision, err := s.decide(bankroll)
	if err != nil {
		return RevealResult{}, err
	}
	if decision.Force {
		payout, m, err := s.currentPayout()
		if err != nil {
			return RevealResult{}, err
		}
		s.forceReason = decision.Reason
		s.finish(StatusForcedCashout, m, payout)
		return RevealResult{
			Position:   pos,
			Outcome:    OutcomeForcedCashout,
			Status:     s.status,
			Multiplier: m,
			Payout:     payout,
			Decision:   decision,
		}, nil
	}

	if s.bombs.Contains(pos) {
		hit := pos
		s.bombHit = &hit
		s.finish(StatusLostOnBomb, decimal.Zero, 0)
		return RevealResult{
			Position:   pos,
			Outcome:    OutcomeBomb,
			Status:     s.status,
			Multiplier: decimal.Zero,
			Decision:   decision,
		}, nil
	}

	s.revealed = append(s.revealed, pos)
	s.mask[pos] = true
	payout, m, err := s.currentPayout()
	if err != nil {
		return RevealResult{}, err
	}
	s.multiplier = m
	return RevealResult{
		Position:   pos,
		Outcome:    OutcomeSafe,
		Status:     s.status,
		Multiplier: m,
		Payout:     payout,
		Decision:   decision,
	}, nil
}

// PreviewCashOut computes what CashOut would pay without ending the session.
func (s *Session) PreviewCashOut() (Settlement, error) {
	if err := s.expect(StatusActive); err != nil {
		return Settlement{}, err
	}
	if len(s.revealed) == 0 {
		return Settlement{}, ErrNothingToCashOut
	}
	payout, m, err := s.currentPayout()
	if err != nil {
		return Settlement{}, err
	}
	return Settlement{Status: StatusWonCashedOut, Bet: s.bet, Multiplier: m, Payout: payout}, nil
}

// CashOut ends an active session at the current multiplier.
func (s *Session) CashOut() (Settlement, error) {
	st, err := s.PreviewCashOut()
	if err != nil {
		return Settlement{}, err
	}
	s.finish(StatusWonCashedOut, st.Multiplier, st.Payout)
	return st, nil
}

// Forfeit abandons the session; the bet is lost. A terminal session returns
// ErrSessionTerminal and is not touched.
func (s *Session) Forfeit() error {
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.status)
	}
	s.finish(StatusForfeited, decimal.Zero, 0)
	return nil
}

// Void ends a session that never became active, marking it refundable.
func (s *Session) Void(reason VoidReason) error {
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.status)
	}
	if s.status == StatusActive || reason == VoidNone {
		return fmt.Errorf("%w: void from %s", ErrInvalidTransition, s.status)
	}
	s.void(reason)
	return nil
}

// Settlement returns the final amounts of a terminal session.
func (s *Session) Settlement() (Settlement, error) {
	if !s.status.Terminal() {
		return Settlement{}, fmt.Errorf("%w: %s", ErrInvalidTransition, s.status)
	}
	st := Settlement{Status: s.status, Bet: s.bet, Multiplier: s.multiplier, Payout: s.payout}
	if s.Refundable() {
		st.Refund = true
		st.Payout = s.bet
	}
	return st, nil
}

// BombSet is available only once the session is terminal and its seeds are
// disclosed.
func (s *Session) BombSet() (fairness.BombSet, error) {
	if !s.status.Terminal() || !s.disclosed {
		return fairness.BombSet{}, ErrBombSetHidden
	}
	if s.bombs == nil {
		return fairness.BombSet{}, fmt.Errorf("%w: session ended before bombs were derived", ErrBombSetHidden)
	}
	return *s.bombs, nil
}

// RevealAll lists every bomb position of a finished session.
func (s *Session) RevealAll() ([]int, error) {
	bombs, err := s.BombSet()
	if err != nil {
		return nil, err
	}
	return bombs.Positions(), nil
}

func (s *Session) currentPayout() (int64, decimal.Decimal, error) {
	return s.policy.Payout(s.difficulty, s.bet, len(s.revealed))
}

func (s *Session) aux() fairness.Aux {
	return fairness.Aux{Difficulty: uint8(s.difficulty), Nonce: s.nonce}
}

func (s *Session) expect(want Status) error {
	if s.status == want {
		return nil
	}
	if s.status.Terminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.status)
	}
	if want == StatusActive {
		return fmt.Errorf("%w: %s", ErrNotActive, s.status)
	}
	return fmt.Errorf("%w: %s, want %s", ErrInvalidTransition, s.status, want)
}

func (s *Session) void(reason VoidReason) {
	s.voidReason = reason
	s.finish(StatusForfeited, decimal.Zero, 0)
}

func (s *Session) finish(status Status, m decimal.Decimal, payout int64) {
	s.status = status
	s.multiplier = m
	s.payout = payout
	s.endedAt = s.now().UTC()
	s.disclosed = s.disclosure == DiscloseOnTerminal
}
