package fairness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommitment(t *testing.T) {
	c, err := CreateCommitment()
	require.NoError(t, err)

	assert.Equal(t, CommitmentHash(c.PlayerSeed), c.Hash)
	assert.Equal(t, CommitmentHash(c.PlayerSeed), CommitmentHash(c.PlayerSeed), "hash must be stable")
	assert.True(t, VerifyReveal(c.Hash, c.PlayerSeed))
}

func TestVerifyReveal_RejectsEveryBitFlip(t *testing.T) {
	c, err := CreateCommitment()
	require.NoError(t, err)

	for i := 0; i < SeedSize*8; i++ {
		flipped := c.PlayerSeed
		flipped[i/8] ^= 1 << (i % 8)
		if VerifyReveal(c.Hash, flipped) {
			t.Fatalf("bit %d flip accepted", i)
		}
	}
}

func TestVerifyReveal_RejectsSwappedArguments(t *testing.T) {
	c, err := CreateCommitment()
	require.NoError(t, err)
	assert.False(t, VerifyReveal(c.PlayerSeed, c.Hash))
}
