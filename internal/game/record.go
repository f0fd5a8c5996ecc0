package game

import (
	"fmt"
	"slices"
	"time"

	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

// Info is the public view of a session. Seeds are nil until disclosed.
type Info struct {
	ID               string           `json:"id"`
	Player           int64            `json:"player"`
	Bet              int64            `json:"bet"`
	Active           bool             `json:"active"`
	Status           Status           `json:"status"`
	Difficulty       odds.Difficulty  `json:"difficulty"`
	BombCount        int              `json:"bomb_count"`
	GridSize         int              `json:"grid_size"`
	CommitmentHash   fairness.Seed    `json:"commitment_hash"`
	Scheme           fairness.Scheme  `json:"scheme"`
	Nonce            uint64           `json:"nonce"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          *time.Time       `json:"end_time,omitempty"`
	SeedsRevealed    bool             `json:"seeds_revealed"`
	PlayerSeed       *fairness.Seed   `json:"player_seed,omitempty"`
	CounterpartySeed *fairness.Seed   `json:"counterparty_seed,omitempty"`
	CombinedSeed     *fairness.Seed   `json:"combined_seed,omitempty"`
	Revealed         []int            `json:"revealed"`
	Multiplier       decimal.Decimal  `json:"multiplier"`
	Payout           int64            `json:"payout"`
	BombHit          *int             `json:"bomb_hit,omitempty"`
	VoidReason       VoidReason       `json:"void_reason,omitempty"`
	ForceReason      odds.ReasonCode  `json:"force_reason,omitempty"`
	Disclosure       DisclosurePolicy `json:"disclosure"`
}

func (s *Session) Info() Info {
	info := Info{
		ID:             s.id,
		Player:         s.player,
		Bet:            s.bet,
		Active:         s.status == StatusActive,
		Status:         s.status,
		Difficulty:     s.difficulty,
		BombCount:      s.bombCount,
		GridSize:       s.policy.GridSize,
		CommitmentHash: s.commitmentHash,
		Scheme:         s.scheme,
		Nonce:          s.nonce,
		StartTime:      s.startedAt,
		SeedsRevealed:  s.disclosed,
		Revealed:       slices.Clone(s.revealed),
		Multiplier:     s.multiplier,
		Payout:         s.payout,
		VoidReason:     s.voidReason,
		ForceReason:    s.forceReason,
		Disclosure:     s.disclosure,
	}
	if info.Revealed == nil {
		info.Revealed = []int{}
	}
	if !s.endedAt.IsZero() {
		end := s.endedAt
		info.EndTime = &end
	}
	if s.disclosed {
		info.PlayerSeed = copySeed(s.playerSeed)
		info.CounterpartySeed = copySeed(s.counterpartySeed)
		info.CombinedSeed = copySeed(s.combinedSeed)
		if s.bombHit != nil {
			hit := *s.bombHit
			info.BombHit = &hit
		}
	}
	return info
}

// Record is the full persisted form of a session, including undisclosed
// seeds. It must never be served to players as is.
type Record struct {
	ID               string           `json:"id"`
	Player           int64            `json:"player"`
	Bet              int64            `json:"bet"`
	Difficulty       odds.Difficulty  `json:"difficulty"`
	CommitmentHash   fairness.Seed    `json:"commitment_hash"`
	Scheme           fairness.Scheme  `json:"scheme"`
	Nonce            uint64           `json:"nonce"`
	PlayerSeed       *fairness.Seed   `json:"player_seed,omitempty"`
	CounterpartySeed *fairness.Seed   `json:"counterparty_seed,omitempty"`
	CombinedSeed     *fairness.Seed   `json:"combined_seed,omitempty"`
	Revealed         []int            `json:"revealed"`
	BombHit          *int             `json:"bomb_hit,omitempty"`
	Status           Status           `json:"status"`
	VoidReason       VoidReason       `json:"void_reason,omitempty"`
	ForceReason      odds.ReasonCode  `json:"force_reason,omitempty"`
	Multiplier       decimal.Decimal  `json:"multiplier"`
	Payout           int64            `json:"payout"`
	Disclosure       DisclosurePolicy `json:"disclosure"`
	StartedAt        time.Time        `json:"started_at"`
	EndedAt          time.Time        `json:"ended_at,omitzero"`
}

func (s *Session) Record() Record {
	r := Record{
		ID:               s.id,
		Player:           s.player,
		Bet:              s.bet,
		Difficulty:       s.difficulty,
		CommitmentHash:   s.commitmentHash,
		Scheme:           s.scheme,
		Nonce:            s.nonce,
		PlayerSeed:       copySeed(s.playerSeed),
		CounterpartySeed: copySeed(s.counterpartySeed),
		CombinedSeed:     copySeed(s.combinedSeed),
		Revealed:         slices.Clone(s.revealed),
		Status:           s.status,
		VoidReason:       s.voidReason,
		ForceReason:      s.forceReason,
		Multiplier:       s.multiplier,
		Payout:           s.payout,
		Disclosure:       s.disclosure,
		StartedAt:        s.startedAt,
		EndedAt:          s.endedAt,
	}
	if s.bombHit != nil {
		hit := *s.bombHit
		r.BombHit = &hit
	}
	return r
}

// Restore rebuilds a session from its record. The bomb set is derived again
// from the stored seeds and checked against everything the record claims.
func Restore(policy odds.Policy, r Record, now func() time.Time) (*Session, error) {
	s, err := New(policy, Params{
		ID:             r.ID,
		Player:         r.Player,
		Bet:            r.Bet,
		Difficulty:     r.Difficulty,
		CommitmentHash: r.CommitmentHash,
		Scheme:         r.Scheme,
		Nonce:          r.Nonce,
		Disclosure:     r.Disclosure,
		Now:            now,
	})
	if err != nil {
		return nil, err
	}
	if !r.Status.Valid() {
		return nil, fmt.Errorf("%w: status %q", ErrRecordMismatch, r.Status)
	}

	s.startedAt = r.StartedAt
	s.endedAt = r.EndedAt
	s.status = r.Status
	s.voidReason = r.VoidReason
	s.forceReason = r.ForceReason
	s.multiplier = r.Multiplier
	s.payout = r.Payout
	s.playerSeed = copySeed(r.PlayerSeed)
	s.counterpartySeed = copySeed(r.CounterpartySeed)
	s.combinedSeed = copySeed(r.CombinedSeed)
	if s.status.Terminal() {
		s.disclosed = s.disclosure == DiscloseOnTerminal
	}

	if s.playerSeed != nil && s.counterpartySeed != nil {
		if !fairness.VerifyReveal(s.commitmentHash, *s.playerSeed) {
			return nil, fmt.Errorf("%w: player seed does not match commitment", ErrRecordMismatch)
		}
		combined, err := fairness.Combine(s.scheme, *s.playerSeed, *s.counterpartySeed, s.aux())
		if err != nil {
			return nil, err
		}
		if s.combinedSeed == nil || !s.combinedSeed.Equal(combined) {
			return nil, fmt.Errorf("%w: combined seed", ErrRecordMismatch)
		}
		if s.voidReason != VoidDerivationExhausted {
			bombs, err := fairness.DeriveBombs(combined, s.bombCount, policy.GridSize)
			if err != nil {
				return nil, err
			}
			s.bombs = &bombs
		}
	} else if s.status == StatusActive {
		return nil, fmt.Errorf("%w: active session without seeds", ErrRecordMismatch)
	}

	for _, pos := range r.Revealed {
		if pos < 0 || pos >= policy.GridSize || s.mask[pos] {
			return nil, fmt.Errorf("%w: revealed position %d", ErrRecordMismatch, pos)
		}
		if s.bombs == nil || s.bombs.Contains(pos) {
			return nil, fmt.Errorf("%w: revealed position %d is not safe", ErrRecordMismatch, pos)
		}
		s.mask[pos] = true
		s.revealed = append(s.revealed, pos)
	}
	if r.BombHit != nil {
		if s.bombs == nil || !s.bombs.Contains(*r.BombHit) {
			return nil, fmt.Errorf("%w: bomb hit %d", ErrRecordMismatch, *r.BombHit)
		}
		hit := *r.BombHit
		s.bombHit = &hit
	}
	return s, nil
}

func copySeed(s *fairness.Seed) *fairness.Seed {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}
