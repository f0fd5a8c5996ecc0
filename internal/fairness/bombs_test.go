package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveBombs_CrossImplementationVectors(t *testing.T) {
	var zero Seed

	nine, err := DeriveBombs(zero, 9, 36)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 7, 8, 14, 16, 17, 19, 23, 34}, nine.Positions())

	twelve, err := DeriveBombs(zero, 12, 36)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 7, 8, 10, 14, 16, 17, 19, 23, 31, 34}, twelve.Positions())

	combined, err := Combine(SchemeV2, fill(1), fill(2), Aux{Nonce: 7})
	require.NoError(t, err)
	bombs, err := DeriveBombs(combined, 9, 36)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3, 14, 22, 23, 26, 30, 33, 34}, bombs.Positions())
}

func TestDeriveBombs_SizeAndDeterminism(t *testing.T) {
	for i := 0; i < 200; i++ {
		seed := Hash([]byte{byte(i), byte(i >> 8)})
		for _, count := range []int{1, 9, 12, 24} {
			a, err := DeriveBombs(seed, count, 36)
			require.NoError(t, err)
			b, err := DeriveBombs(seed, count, 36)
			require.NoError(t, err)

			require.Equal(t, count, a.Len())
			require.True(t, a.Equal(b), "seed %s count %d", seed, count)

			for _, p := range a.Positions() {
				require.True(t, p >= 0 && p < 36)
				require.True(t, a.Contains(p))
			}
		}
	}
}

func TestDeriveBombs_FullGrid(t *testing.T) {
	bombs, err := DeriveBombs(fill(7), 36, 36)
	require.NoError(t, err)
	assert.Equal(t, 36, bombs.Len())
	for i := 0; i < 36; i++ {
		assert.True(t, bombs.Contains(i))
	}
}

func TestDeriveBombs_ZeroBombs(t *testing.T) {
	bombs, err := DeriveBombs(fill(7), 0, 36)
	require.NoError(t, err)
	assert.Equal(t, 0, bombs.Len())
	assert.False(t, bombs.Contains(0))
}

func TestDeriveBombs_InvalidInput(t *testing.T) {
	for _, tc := range []struct{ bombs, grid int }{
		{37, 36}, {-1, 36}, {1, 0},
	} {
		_, err := DeriveBombs(fill(1), tc.bombs, tc.grid)
		assert.ErrorIs(t, err, ErrInvalidBombCount)
	}
}

func TestDeriveBombs_ExhaustionFailsLoudly(t *testing.T) {
	// Two attempts can never place three bombs.
	_, err := deriveBombs(fill(3), 3, 36, 2)
	assert.ErrorIs(t, err, ErrDerivationExhausted)
}

func TestBombSet_ContainsOutOfRange(t *testing.T) {
	bombs, err := DeriveBombs(fill(3), 9, 36)
	require.NoError(t, err)
	assert.False(t, bombs.Contains(-1))
	assert.False(t, bombs.Contains(36))
}

func TestBombSet_PositionsIsACopy(t *testing.T) {
	bombs, err := DeriveBombs(fill(3), 9, 36)
	require.NoError(t, err)
	p := bombs.Positions()
	p[0] = 99
	assert.NotEqual(t, 99, bombs.Positions()[0])
}

func TestBombSetFromPositions(t *testing.T) {
	bombs, err := BombSetFromPositions([]int{5, 1, 3}, 36)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, bombs.Positions())

	_, err = BombSetFromPositions([]int{1, 1}, 36)
	assert.ErrorIs(t, err, ErrInvalidBombCount)
	_, err = BombSetFromPositions([]int{36}, 36)
	assert.ErrorIs(t, err, ErrInvalidBombCount)
}
