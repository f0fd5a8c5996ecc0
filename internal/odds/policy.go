// Package odds holds the payout math: the fair-odds multiplier with its house
// edge and saturation cap, and the bankroll exposure guard.
//
// Every amount is an integer count of the currency's smallest unit. Fractions
// are exact decimals; nothing here touches floating point.
package odds

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Difficulty selects a bomb-count tier.
type Difficulty uint8

const (
	DifficultyNormal   Difficulty = 0
	DifficultyGodOfWar Difficulty = 1
)

var (
	ErrUnknownDifficulty = errors.New("unknown difficulty")
	ErrInvalidPolicy     = errors.New("invalid policy")
)

func (d Difficulty) String() string {
	switch d {
	case DifficultyNormal:
		return "normal"
	case DifficultyGodOfWar:
		return "god_of_war"
	default:
		return fmt.Sprintf("difficulty(%d)", uint8(d))
	}
}

func ParseDifficulty(s string) (Difficulty, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "normal", "0":
		return DifficultyNormal, nil
	case "god_of_war", "1":
		return DifficultyGodOfWar, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownDifficulty, s)
	}
}

func (d Difficulty) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Difficulty) UnmarshalText(text []byte) error {
	parsed, err := ParseDifficulty(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Policy is the single source of the game's economic constants.
type Policy struct {
	GridSize      int
	BombsNormal   int
	BombsGodOfWar int

	// HouseEdge multiplies the fair multiplier, e.g. 0.95.
	HouseEdge decimal.Decimal
	// MultiplierCap clamps the raw product before the edge is applied.
	MultiplierCap int64
	// CapFraction is the share of free bankroll a single payout may claim.
	CapFraction decimal.Decimal
	// Precision is the number of decimal places kept on a multiplier.
	Precision int32

	MinBet int64
	MaxBet int64
}

func DefaultPolicy() Policy {
	return Policy{
		GridSize:      36,
		BombsNormal:   9,
		BombsGodOfWar: 12,
		HouseEdge:     decimal.RequireFromString("0.95"),
		MultiplierCap: 500_000,
		CapFraction:   decimal.RequireFromString("0.20"),
		Precision:     6,
		MinBet:        1,
		MaxBet:        1_000_000_000,
	}
}

func (p Policy) BombCount(d Difficulty) (int, error) {
	switch d {
	case DifficultyNormal:
		return p.BombsNormal, nil
	case DifficultyGodOfWar:
		return p.BombsGodOfWar, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrUnknownDifficulty, uint8(d))
	}
}

// SafeTiles is the number of non-bomb tiles for a tier.
func (p Policy) SafeTiles(d Difficulty) (int, error) {
	bombs, err := p.BombCount(d)
	if err != nil {
		return 0, err
	}
	return p.GridSize - bombs, nil
}

func (p Policy) Validate() error {
	switch {
	case p.GridSize <= 0 || p.GridSize > 256:
		return fmt.Errorf("%w: grid size %d", ErrInvalidPolicy, p.GridSize)
	case p.BombsNormal <= 0 || p.BombsNormal >= p.GridSize:
		return fmt.Errorf("%w: normal bombs %d", ErrInvalidPolicy, p.BombsNormal)
	case p.BombsGodOfWar <= 0 || p.BombsGodOfWar >= p.GridSize:
		return fmt.Errorf("%w: god_of_war bombs %d", ErrInvalidPolicy, p.BombsGodOfWar)
	case !p.HouseEdge.IsPositive() || p.HouseEdge.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: house edge %s", ErrInvalidPolicy, p.HouseEdge)
	case p.MultiplierCap < 1:
		return fmt.Errorf("%w: multiplier cap %d", ErrInvalidPolicy, p.MultiplierCap)
	case !p.CapFraction.IsPositive() || p.CapFraction.GreaterThan(decimal.NewFromInt(1)):
		return fmt.Errorf("%w: cap fraction %s", ErrInvalidPolicy, p.CapFraction)
	case p.Precision < 0 || p.Precision > 18:
		return fmt.Errorf("%w: precision %d", ErrInvalidPolicy, p.Precision)
	case p.MinBet < 1 || p.MaxBet < p.MinBet:
		return fmt.Errorf("%w: bet bounds [%d, %d]", ErrInvalidPolicy, p.MinBet, p.MaxBet)
	}
	return nil
}

// Multiplier is MultiplierFor with this policy's tier, edge and cap.
func (p Policy) Multiplier(d Difficulty, safeReveals int) (decimal.Decimal, error) {
	bombs, err := p.BombCount(d)
	if err != nil {
		return decimal.Zero, err
	}
	return MultiplierFor(safeReveals, bombs, p.GridSize, p.HouseEdge, p.MultiplierCap, p.Precision)
}

// Payout is bet × Multiplier(d, safeReveals), floored to whole units.
func (p Policy) Payout(d Difficulty, bet int64, safeReveals int) (int64, decimal.Decimal, error) {
	m, err := p.Multiplier(d, safeReveals)
	if err != nil {
		return 0, decimal.Zero, err
	}
	payout, err := Payout(bet, m)
	return payout, m, err
}
