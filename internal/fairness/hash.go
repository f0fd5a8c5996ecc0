// Package fairness implements the commit-reveal seed protocol and the
// deterministic mapping from a combined seed to bomb positions.
//
// All hashing is Keccak-256 with the legacy (pre-NIST) padding, so every
// value produced here can be recomputed by any EVM-compatible tooling.
package fairness

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/sha3"
)

// SeedSize is the byte length of every seed and digest.
const SeedSize = 32

var ErrInvalidSeed = errors.New("seed must be 32 bytes of hex")

// Seed is a 32-byte value: a secret seed, a commitment or a combined seed.
type Seed [SeedSize]byte

// Hash returns Keccak-256 over the concatenation of parts.
func Hash(parts ...[]byte) Seed {
	h := sha3.NewLegacyKeccak256()
	for _, p := range parts {
		h.Write(p)
	}

	var out Seed
	h.Sum(out[:0])
	return out
}

// NewSeed returns a fresh seed read from crypto/rand.
func NewSeed() (Seed, error) {
	var s Seed
	if _, err := rand.Read(s[:]); err != nil {
		return Seed{}, fmt.Errorf("read random seed: %w", err)
	}
	return s, nil
}

// ParseSeed accepts 64 hex characters with or without a 0x prefix.
func ParseSeed(s string) (Seed, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(s), "0x"), "0X")
	if len(s) != SeedSize*2 {
		return Seed{}, ErrInvalidSeed
	}

	var out Seed
	if _, err := hex.Decode(out[:], []byte(s)); err != nil {
		return Seed{}, fmt.Errorf("%w: %v", ErrInvalidSeed, err)
	}
	return out, nil
}

func (s Seed) Bytes() []byte {
	b := make([]byte, SeedSize)
	copy(b, s[:])
	return b
}

func (s Seed) IsZero() bool {
	return s == Seed{}
}

// Equal compares in constant time.
func (s Seed) Equal(other Seed) bool {
	return subtle.ConstantTimeCompare(s[:], other[:]) == 1
}

func (s Seed) String() string {
	return "0x" + hex.EncodeToString(s[:])
}

func (s Seed) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Seed) UnmarshalText(text []byte) error {
	parsed, err := ParseSeed(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
