package fairness

// Commitment pairs a player's secret seed with its published hash. The seed
// stays with the player until the reveal; only Hash is sent to the host.
type Commitment struct {
	PlayerSeed Seed
	Hash       Seed
}

// CreateCommitment generates a fresh player seed and its commitment hash.
func CreateCommitment() (Commitment, error) {
	seed, err := NewSeed()
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{PlayerSeed: seed, Hash: CommitmentHash(seed)}, nil
}

// CommitmentHash is Hash(seed) over the raw 32 bytes, with no framing.
func CommitmentHash(seed Seed) Seed {
	return Hash(seed[:])
}

// VerifyReveal reports whether revealed hashes to commitment.
func VerifyReveal(commitment, revealed Seed) bool {
	return CommitmentHash(revealed).Equal(commitment)
}
