package game

import (
	"fmt"

	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

// VerifyInput is everything a player needs to check a finished game
// without trusting the server.
type VerifyInput struct {
	PlayerSeed       fairness.Seed   `json:"player_seed"`
	CounterpartySeed fairness.Seed   `json:"counterparty_seed"`
	CommitmentHash   fairness.Seed   `json:"commitment_hash"`
	Difficulty       odds.Difficulty `json:"difficulty"`
	Scheme           fairness.Scheme `json:"scheme"`
	Nonce            uint64          `json:"nonce"`
	Bet              int64           `json:"bet"`
	// Reveals are replayed in order until one hits a bomb.
	Reveals []int `json:"reveals"`
}

type VerifyResult struct {
	CommitmentValid bool            `json:"commitment_valid"`
	CombinedSeed    fairness.Seed   `json:"combined_seed"`
	Bombs           []int           `json:"bombs"`
	SafeReveals     int             `json:"safe_reveals"`
	BombHit         *int            `json:"bomb_hit,omitempty"`
	Multiplier      decimal.Decimal `json:"multiplier"`
	Payout          int64           `json:"payout"`
}

// Verify recomputes the bomb layout and the cash-out value of a sequence of
// reveals. A commitment mismatch is reported, not treated as an error.
func Verify(policy odds.Policy, in VerifyInput) (VerifyResult, error) {
	bombCount, err := policy.BombCount(in.Difficulty)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("%w: %v", ErrInvalidParams, err)
	}
	res := VerifyResult{
		CommitmentValid: fairness.VerifyReveal(in.CommitmentHash, in.PlayerSeed),
		Multiplier:      decimal.Zero,
	}
	if !res.CommitmentValid {
		return res, nil
	}

	aux := fairness.Aux{Difficulty: uint8(in.Difficulty), Nonce: in.Nonce}
	combined, err := fairness.Combine(in.Scheme, in.PlayerSeed, in.CounterpartySeed, aux)
	if err != nil {
		return VerifyResult{}, err
	}
	res.CombinedSeed = combined

	bombs, err := fairness.DeriveBombs(combined, bombCount, policy.GridSize)
	if err != nil {
		return VerifyResult{}, err
	}
	res.Bombs = bombs.Positions()

	seen := make(map[int]bool, len(in.Reveals))
	for _, pos := range in.Reveals {
		if pos < 0 || pos >= policy.GridSize {
			return VerifyResult{}, fmt.Errorf("%w: %d", ErrOutOfRangePosition, pos)
		}
		if seen[pos] {
			return VerifyResult{}, fmt.Errorf("%w: %d", ErrDuplicateReveal, pos)
		}
		seen[pos] = true
		if bombs.Contains(pos) {
			hit := pos
			res.BombHit = &hit
			return res, nil
		}
		res.SafeReveals++
	}

	if res.SafeReveals > 0 && in.Bet > 0 {
		res.Payout, res.Multiplier, err = policy.Payout(in.Difficulty, in.Bet, res.SafeReveals)
		if err != nil {
			return VerifyResult{}, err
		}
	}
	return res, nil
}

// Replay checks that a terminal record is consistent with its own seeds.
func Replay(policy odds.Policy, r Record) (VerifyResult, error) {
	if !r.Status.Terminal() {
		return VerifyResult{}, fmt.Errorf("%w: %s", ErrInvalidTransition, r.Status)
	}
	if r.PlayerSeed == nil || r.CounterpartySeed == nil {
		return VerifyResult{}, fmt.Errorf("%w: record has no seeds", ErrBombSetHidden)
	}
	reveals := r.Revealed
	if r.BombHit != nil {
		reveals = append(append([]int(nil), r.Revealed...), *r.BombHit)
	}
	res, err := Verify(policy, VerifyInput{
		PlayerSeed:       *r.PlayerSeed,
		CounterpartySeed: *r.CounterpartySeed,
		CommitmentHash:   r.CommitmentHash,
		Difficulty:       r.Difficulty,
		Scheme:           r.Scheme,
		Nonce:            r.Nonce,
		Bet:              r.Bet,
		Reveals:          reveals,
	})
	if err != nil {
		return VerifyResult{}, err
	}
	if !res.CommitmentValid {
		return res, fmt.Errorf("%w: commitment", ErrRecordMismatch)
	}
	if (r.BombHit == nil) != (res.BombHit == nil) || res.SafeReveals != len(r.Revealed) {
		return res, fmt.Errorf("%w: reveal outcomes", ErrRecordMismatch)
	}
	if r.Status == StatusWonCashedOut || r.Status == StatusForcedCashout {
		if res.SafeReveals == 0 {
			// A forced cash-out before the first reveal pays bet × multiplier(0).
			res.Payout, res.Multiplier, err = policy.Payout(r.Difficulty, r.Bet, 0)
			if err != nil {
				return res, err
			}
		}
		if res.Payout != r.Payout {
			return res, fmt.Errorf("%w: payout %d, recorded %d", ErrRecordMismatch, res.Payout, r.Payout)
		}
	}
	return res, nil
}
