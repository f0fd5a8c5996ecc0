package fairness

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Scheme versions the byte layout fed to the combined-seed hash. A layout
// never changes once published; new layouts get a new Scheme.
type Scheme uint8

const (
	// SchemeV1: Hash(playerSeed ‖ counterpartySeed).
	SchemeV1 Scheme = 1
	// SchemeV2: Hash(0x02 ‖ difficulty ‖ playerSeed ‖ counterpartySeed ‖ nonce:uint64be).
	SchemeV2 Scheme = 2

	DefaultScheme = SchemeV2
)

var ErrUnknownScheme = errors.New("unknown seed scheme")

// Aux carries the auxiliary entropy fields folded in by SchemeV2.
type Aux struct {
	Difficulty uint8
	Nonce      uint64
}

func (s Scheme) Valid() bool {
	return s == SchemeV1 || s == SchemeV2
}

func (s Scheme) String() string {
	switch s {
	case SchemeV1:
		return "v1"
	case SchemeV2:
		return "v2"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(s))
	}
}

// ParseScheme accepts "v1", "v2", "1" or "2".
func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "v1", "1":
		return SchemeV1, nil
	case "v2", "2":
		return SchemeV2, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownScheme, s)
	}
}

// Combine merges both seed halves into the seed that decides the game.
func Combine(scheme Scheme, player, counterparty Seed, aux Aux) (Seed, error) {
	switch scheme {
	case SchemeV1:
		return Hash(player[:], counterparty[:]), nil
	case SchemeV2:
		var nonce [8]byte
		binary.BigEndian.PutUint64(nonce[:], aux.Nonce)
		return Hash([]byte{byte(SchemeV2), aux.Difficulty}, player[:], counterparty[:], nonce[:]), nil
	default:
		return Seed{}, fmt.Errorf("%w: %d", ErrUnknownScheme, uint8(scheme))
	}
}
