package game

import (
	"errors"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

var (
	ErrInvalidCommitment  = errors.New("revealed seed does not match commitment")
	ErrDuplicateReveal    = errors.New("position already revealed")
	ErrOutOfRangePosition = errors.New("position out of range")
	ErrNotActive          = errors.New("session is not active")
	ErrSessionTerminal    = errors.New("session already ended")
	ErrInvalidTransition  = errors.New("invalid state transition")
	ErrBombSetHidden      = errors.New("bomb set is not disclosed")
	ErrNothingToCashOut   = errors.New("no safe tiles revealed")
	ErrInvalidParams      = errors.New("invalid session parameters")
	ErrRecordMismatch     = errors.New("record does not replay to its stored outcome")

	// Raised by the packages that detect them; re-exported so callers can
	// match the whole taxonomy against one package.
	ErrNoSafeTilesRemaining = odds.ErrNoSafeTilesRemaining
	ErrArithmeticOverflow   = odds.ErrArithmeticOverflow
	ErrDerivationExhausted  = fairness.ErrDerivationExhausted
)
