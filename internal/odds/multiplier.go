package odds

import (
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNoSafeTilesRemaining = errors.New("no safe tiles remaining")
	ErrArithmeticOverflow   = errors.New("payout exceeds representable range")
	ErrInvalidGrid          = errors.New("invalid grid parameters")
)

var maxAmount = decimal.NewFromInt(math.MaxInt64)

// MultiplierFor returns the payout multiplier after safeReveals consecutive
// safe tiles: the product over i < safeReveals of (grid−i)/(grid−bombs−i),
// clamped at maxProduct, times houseEdge, truncated to precision decimal places.
//
// The product is the exact inverse of the probability of surviving that many
// reveals. At zero reveals the result is houseEdge.
func MultiplierFor(safeReveals, bombs, grid int, houseEdge decimal.Decimal, maxProduct int64, precision int32) (decimal.Decimal, error) {
	if grid <= 0 || bombs < 0 || bombs > grid || maxProduct < 1 {
		return decimal.Zero, fmt.Errorf("%w: grid=%d bombs=%d cap=%d", ErrInvalidGrid, grid, bombs, maxProduct)
	}
	if safeReveals < 0 {
		return decimal.Zero, fmt.Errorf("%w: negative reveal count %d", ErrInvalidGrid, safeReveals)
	}
	if safeReveals > grid-bombs {
		return decimal.Zero, fmt.Errorf("%w: %d reveals with %d safe tiles", ErrNoSafeTilesRemaining, safeReveals, grid-bombs)
	}

	limit := new(big.Rat).SetInt64(maxProduct)
	product := big.NewRat(1, 1)
	factor := new(big.Rat)
	for i := 0; i < safeReveals; i++ {
		den := int64(grid - bombs - i)
		if den <= 0 {
			return decimal.Zero, fmt.Errorf("%w: denominator %d at step %d", ErrNoSafeTilesRemaining, den, i)
		}
		product.Mul(product, factor.SetFrac64(int64(grid-i), den))
		if product.Cmp(limit) > 0 {
			product.Set(limit)
			break
		}
	}

	product.Mul(product, houseEdge.Rat())
	return truncate(product, precision), nil
}

// truncate rounds a non-negative rational toward zero at precision places.
func truncate(r *big.Rat, precision int32) decimal.Decimal {
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(precision)), nil)
	scaled := new(big.Int).Mul(r.Num(), scale)
	scaled.Quo(scaled, r.Denom())
	return decimal.NewFromBigInt(scaled, -precision)
}

// Payout is floor(bet × multiplier). It fails rather than wrap when the
// result does not fit an int64.
func Payout(bet int64, multiplier decimal.Decimal) (int64, error) {
	if bet < 0 || multiplier.IsNegative() {
		return 0, fmt.Errorf("%w: negative input", ErrArithmeticOverflow)
	}

	payout := decimal.NewFromInt(bet).Mul(multiplier).Floor()
	if payout.GreaterThan(maxAmount) {
		return 0, fmt.Errorf("%w: %s", ErrArithmeticOverflow, payout)
	}
	return payout.IntPart(), nil
}
