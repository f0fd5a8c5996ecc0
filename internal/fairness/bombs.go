package fairness

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"slices"
)

// MaxAttemptsPerTile bounds derivation at MaxAttemptsPerTile*gridSize hashes.
const MaxAttemptsPerTile = 10

var (
	ErrDerivationExhausted = errors.New("bomb derivation exhausted its attempt budget")
	ErrInvalidBombCount    = errors.New("invalid bomb count for grid")
)

// BombSet is the immutable set of losing positions for one combined seed.
type BombSet struct {
	gridSize  int
	positions []int
	mask      []bool
}

// DeriveBombs maps a combined seed to exactly bombCount distinct positions in
// [0, gridSize). The same inputs always yield the same set.
func DeriveBombs(seed Seed, bombCount, gridSize int) (BombSet, error) {
	return deriveBombs(seed, bombCount, gridSize, MaxAttemptsPerTile*gridSize)
}

func deriveBombs(seed Seed, bombCount, gridSize, maxAttempts int) (BombSet, error) {
	if gridSize <= 0 || bombCount < 0 || bombCount > gridSize {
		return BombSet{}, fmt.Errorf("%w: %d bombs on %d tiles", ErrInvalidBombCount, bombCount, gridSize)
	}

	mask := make([]bool, gridSize)
	if bombCount == gridSize {
		for i := range mask {
			mask[i] = true
		}
		return newBombSet(mask), nil
	}

	modulus := big.NewInt(int64(gridSize))
	candidate := new(big.Int)
	state := seed
	placed := 0

	var index [8]byte
	for attempt := 0; placed < bombCount; attempt++ {
		if attempt >= maxAttempts {
			return BombSet{}, fmt.Errorf("%w: placed %d of %d after %d attempts",
				ErrDerivationExhausted, placed, bombCount, attempt)
		}

		binary.BigEndian.PutUint64(index[:], uint64(attempt))
		h := Hash(state[:], index[:])
		pos := int(candidate.SetBytes(h[:]).Mod(candidate, modulus).Int64())
		if !mask[pos] {
			mask[pos] = true
			placed++
		}

		state = Hash(state[:])
	}

	return newBombSet(mask), nil
}

func newBombSet(mask []bool) BombSet {
	positions := make([]int, 0, len(mask))
	for i, bomb := range mask {
		if bomb {
			positions = append(positions, i)
		}
	}
	return BombSet{gridSize: len(mask), positions: positions, mask: mask}
}

// BombSetFromPositions rebuilds a set from recorded positions, used by verifiers.
func BombSetFromPositions(positions []int, gridSize int) (BombSet, error) {
	mask := make([]bool, gridSize)
	for _, p := range positions {
		if p < 0 || p >= gridSize || mask[p] {
			return BombSet{}, fmt.Errorf("%w: bad position %d", ErrInvalidBombCount, p)
		}
		mask[p] = true
	}
	return newBombSet(mask), nil
}

func (b BombSet) Contains(pos int) bool {
	return pos >= 0 && pos < len(b.mask) && b.mask[pos]
}

// Positions returns the bombs in ascending order.
func (b BombSet) Positions() []int {
	return slices.Clone(b.positions)
}

func (b BombSet) Len() int {
	return len(b.positions)
}

func (b BombSet) GridSize() int {
	return b.gridSize
}

func (b BombSet) Equal(other BombSet) bool {
	return b.gridSize == other.gridSize && slices.Equal(b.positions, other.positions)
}
