package game

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

const richBankroll = int64(1_000_000_000)

// Bombs for fill(1), fill(2), scheme v2, normal, nonce 7.
var vectorBombs = []int{2, 3, 14, 22, 23, 26, 30, 33, 34}

func fill(b byte) fairness.Seed {
	var s fairness.Seed
	copy(s[:], bytes.Repeat([]byte{b}, fairness.SeedSize))
	return s
}

func fixedClock() func() time.Time {
	t0 := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return func() time.Time { return t0 }
}

func newActive(t *testing.T, bet int64) *Session {
	t.Helper()
	s := newAwaiting(t, bet)
	require.NoError(t, s.Activate(fill(1), fill(2)))
	require.Equal(t, StatusActive, s.Status())
	return s
}

func newAwaiting(t *testing.T, bet int64) *Session {
	t.Helper()
	s, err := New(odds.DefaultPolicy(), Params{
		ID:             "g-1",
		Player:         42,
		Bet:            bet,
		Difficulty:     odds.DifficultyNormal,
		CommitmentHash: fairness.CommitmentHash(fill(1)),
		Scheme:         fairness.SchemeV2,
		Nonce:          7,
		Now:            fixedClock(),
	})
	require.NoError(t, err)
	require.Equal(t, StatusCreated, s.Status())
	require.NoError(t, s.PostCommitment())
	return s
}

func TestNew_RejectsBadParams(t *testing.T) {
	base := Params{
		ID:             "g",
		Bet:            10,
		CommitmentHash: fairness.CommitmentHash(fill(1)),
		Scheme:         fairness.SchemeV2,
	}
	cases := map[string]func(p *Params){
		"empty id":     func(p *Params) { p.ID = "" },
		"zero bet":     func(p *Params) { p.Bet = 0 },
		"negative bet": func(p *Params) { p.Bet = -5 },
		"no hash":      func(p *Params) { p.CommitmentHash = fairness.Seed{} },
		"scheme":       func(p *Params) { p.Scheme = 9 },
		"difficulty":   func(p *Params) { p.Difficulty = 7 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			p := base
			mutate(&p)
			_, err := New(odds.DefaultPolicy(), p)
			assert.ErrorIs(t, err, ErrInvalidParams)
		})
	}
}

func TestSession_LifecycleCashOut(t *testing.T) {
	s := newActive(t, 1000)

	for i, pos := range []int{0, 1, 4} {
		res, err := s.Reveal(pos, richBankroll)
		require.NoError(t, err)
		assert.Equal(t, OutcomeSafe, res.Outcome)
		assert.Equal(t, StatusActive, res.Status)
		assert.Equal(t, i+1, s.SafeReveals())
	}

	want, err := odds.DefaultPolicy().Multiplier(odds.DifficultyNormal, 3)
	require.NoError(t, err)

	st, err := s.CashOut()
	require.NoError(t, err)
	assert.Equal(t, StatusWonCashedOut, st.Status)
	assert.True(t, want.Equal(st.Multiplier))
	assert.Equal(t, "2.318974", st.Multiplier.String())
	assert.Equal(t, int64(2318), st.Payout)
	assert.False(t, st.Refund)

	final, err := s.Settlement()
	require.NoError(t, err)
	assert.Equal(t, st, final)

	bombs, err := s.RevealAll()
	require.NoError(t, err)
	assert.Equal(t, vectorBombs, bombs)
}

func TestSession_BombEndsGame(t *testing.T) {
	s := newActive(t, 1000)

	_, err := s.Reveal(0, richBankroll)
	require.NoError(t, err)

	res, err := s.Reveal(2, richBankroll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeBomb, res.Outcome)
	assert.Equal(t, StatusLostOnBomb, s.Status())
	assert.Zero(t, res.Payout)

	info := s.Info()
	require.NotNil(t, info.BombHit)
	assert.Equal(t, 2, *info.BombHit)
	assert.Equal(t, []int{0}, info.Revealed)
	assert.True(t, info.SeedsRevealed)

	_, err = s.Reveal(5, richBankroll)
	assert.ErrorIs(t, err, ErrSessionTerminal)
	_, err = s.CashOut()
	assert.ErrorIs(t, err, ErrSessionTerminal)
	assert.ErrorIs(t, s.Forfeit(), ErrSessionTerminal)
}

func TestSession_InvalidCommitmentVoids(t *testing.T) {
	s := newAwaiting(t, 1000)

	err := s.Activate(fill(9), fill(2))
	assert.ErrorIs(t, err, ErrInvalidCommitment)
	assert.Equal(t, StatusForfeited, s.Status())
	assert.Equal(t, VoidInvalidCommitment, s.VoidReason())
	assert.True(t, s.Refundable())

	st, err := s.Settlement()
	require.NoError(t, err)
	assert.True(t, st.Refund)
	assert.Equal(t, int64(1000), st.Payout)

	assert.ErrorIs(t, s.Activate(fill(1), fill(2)), ErrSessionTerminal)
	_, err = s.BombSet()
	assert.ErrorIs(t, err, ErrBombSetHidden)
}

func TestSession_RejectedRevealsLeaveStateUnchanged(t *testing.T) {
	s := newActive(t, 1000)
	_, err := s.Reveal(0, richBankroll)
	require.NoError(t, err)
	before := s.Record()

	_, err = s.Reveal(0, richBankroll)
	assert.ErrorIs(t, err, ErrDuplicateReveal)
	_, err = s.Reveal(-1, richBankroll)
	assert.ErrorIs(t, err, ErrOutOfRangePosition)
	_, err = s.Reveal(36, richBankroll)
	assert.ErrorIs(t, err, ErrOutOfRangePosition)

	assert.Equal(t, before, s.Record())
}

func TestSession_NotActiveYet(t *testing.T) {
	s := newAwaiting(t, 1000)

	_, err := s.Reveal(0, richBankroll)
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = s.CashOut()
	assert.ErrorIs(t, err, ErrNotActive)
	_, err = s.CheckReveal(richBankroll)
	assert.ErrorIs(t, err, ErrNotActive)
	assert.ErrorIs(t, s.PostCommitment(), ErrInvalidTransition)
}

func TestSession_CashOutNeedsReveal(t *testing.T) {
	s := newActive(t, 1000)
	_, err := s.CashOut()
	assert.ErrorIs(t, err, ErrNothingToCashOut)
	assert.Equal(t, StatusActive, s.Status())
}

func TestSession_ForfeitIsFinal(t *testing.T) {
	s := newActive(t, 1000)
	_, err := s.Reveal(0, richBankroll)
	require.NoError(t, err)

	require.NoError(t, s.Forfeit())
	assert.Equal(t, StatusForfeited, s.Status())
	assert.False(t, s.Refundable())

	before := s.Record()
	assert.ErrorIs(t, s.Forfeit(), ErrSessionTerminal)
	assert.Equal(t, before, s.Record())
}

func TestSession_VoidOnlyBeforeActive(t *testing.T) {
	s := newActive(t, 1000)
	assert.ErrorIs(t, s.Void(VoidRevealExpired), ErrInvalidTransition)

	s = newAwaiting(t, 1000)
	require.NoError(t, s.Void(VoidRevealExpired))
	assert.True(t, s.Refundable())
	assert.Equal(t, VoidRevealExpired, s.VoidReason())
}

func TestSession_ForcedCashout(t *testing.T) {
	// maxAllowed = (11000 − 1000) × 0.20 = 2000: k=2 pays 1705, k=3 would pay 2318.
	const bankroll = int64(11_000)
	s := newActive(t, 1000)

	for _, pos := range []int{0, 1} {
		res, err := s.Reveal(pos, bankroll)
		require.NoError(t, err)
		require.Equal(t, OutcomeSafe, res.Outcome)
	}

	d, err := s.CheckReveal(bankroll)
	require.NoError(t, err)
	assert.True(t, d.Force)
	assert.Equal(t, odds.ReasonBankrollExceeded, d.Reason)
	assert.Equal(t, int64(2000), d.MaxAllowedPayout)
	assert.Equal(t, int64(2318), d.HypotheticalPayout)

	res, err := s.Reveal(4, bankroll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForcedCashout, res.Outcome)
	assert.Equal(t, StatusForcedCashout, s.Status())
	assert.Equal(t, int64(1705), res.Payout)
	assert.Equal(t, []int{0, 1}, s.Revealed(), "forced tile stays covered")
	assert.Equal(t, odds.ReasonBankrollExceeded, s.Info().ForceReason)
}

func TestSession_ForcedCashoutBeforeFirstReveal(t *testing.T) {
	s := newActive(t, 1000)

	res, err := s.Reveal(0, 1000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeForcedCashout, res.Outcome)
	assert.Equal(t, int64(950), res.Payout)
}

func TestSession_AllSafeTilesRevealed(t *testing.T) {
	p := odds.DefaultPolicy()
	p.MultiplierCap = 1 << 62
	s, err := New(p, Params{
		ID:             "g-all",
		Bet:            1,
		CommitmentHash: fairness.CommitmentHash(fill(1)),
		Scheme:         fairness.SchemeV2,
		Nonce:          7,
	})
	require.NoError(t, err)
	require.NoError(t, s.PostCommitment())
	require.NoError(t, s.Activate(fill(1), fill(2)))

	bombs := map[int]bool{}
	for _, b := range vectorBombs {
		bombs[b] = true
	}
	for pos := 0; pos < p.GridSize; pos++ {
		if bombs[pos] {
			continue
		}
		_, err := s.Reveal(pos, richBankroll)
		require.NoError(t, err)
	}

	d, err := s.CheckReveal(richBankroll)
	require.NoError(t, err)
	assert.True(t, d.Force)
	assert.Equal(t, odds.ReasonNoSafeTilesRemain, d.Reason)

	_, err = s.Reveal(2, richBankroll)
	assert.ErrorIs(t, err, ErrNoSafeTilesRemaining)
	assert.Equal(t, StatusActive, s.Status())
}

func TestSession_BombsHiddenWhileLive(t *testing.T) {
	s := newActive(t, 1000)

	_, err := s.BombSet()
	assert.ErrorIs(t, err, ErrBombSetHidden)

	info := s.Info()
	assert.True(t, info.Active)
	assert.False(t, info.SeedsRevealed)
	assert.Nil(t, info.PlayerSeed)
	assert.Nil(t, info.CounterpartySeed)
	assert.Nil(t, info.CombinedSeed)
}

func TestSession_DiscloseNever(t *testing.T) {
	s, err := New(odds.DefaultPolicy(), Params{
		ID:             "g-private",
		Bet:            10,
		CommitmentHash: fairness.CommitmentHash(fill(1)),
		Scheme:         fairness.SchemeV2,
		Nonce:          7,
		Disclosure:     DiscloseNever,
	})
	require.NoError(t, err)
	require.NoError(t, s.PostCommitment())
	require.NoError(t, s.Activate(fill(1), fill(2)))
	require.NoError(t, s.Forfeit())

	_, err = s.BombSet()
	assert.ErrorIs(t, err, ErrBombSetHidden)
	assert.Nil(t, s.Info().CombinedSeed)
}

func TestRestore_RoundTrip(t *testing.T) {
	s := newActive(t, 1000)
	for _, pos := range []int{0, 1} {
		_, err := s.Reveal(pos, richBankroll)
		require.NoError(t, err)
	}

	restored, err := Restore(odds.DefaultPolicy(), s.Record(), fixedClock())
	require.NoError(t, err)
	assert.Equal(t, s.Record(), restored.Record())

	res, err := restored.Reveal(4, richBankroll)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSafe, res.Outcome)
	assert.Equal(t, int64(2318), res.Payout)
}

func TestRestore_DetectsTampering(t *testing.T) {
	s := newActive(t, 1000)
	_, err := s.Reveal(0, richBankroll)
	require.NoError(t, err)

	r := s.Record()
	r.Revealed = []int{2}
	_, err = Restore(odds.DefaultPolicy(), r, nil)
	assert.ErrorIs(t, err, ErrRecordMismatch)

	r = s.Record()
	other := fill(5)
	r.CombinedSeed = &other
	_, err = Restore(odds.DefaultPolicy(), r, nil)
	assert.ErrorIs(t, err, ErrRecordMismatch)
}

func TestReplay_ReproducesOutcome(t *testing.T) {
	s := newActive(t, 1000)
	for _, pos := range []int{0, 1, 4} {
		_, err := s.Reveal(pos, richBankroll)
		require.NoError(t, err)
	}
	_, err := s.CashOut()
	require.NoError(t, err)

	res, err := Replay(odds.DefaultPolicy(), s.Record())
	require.NoError(t, err)
	assert.Equal(t, vectorBombs, res.Bombs)
	assert.Equal(t, int64(2318), res.Payout)

	bombs, err := s.BombSet()
	require.NoError(t, err)
	assert.Equal(t, bombs.Positions(), res.Bombs)

	r := s.Record()
	r.Payout = 9999
	_, err = Replay(odds.DefaultPolicy(), r)
	assert.ErrorIs(t, err, ErrRecordMismatch)
}

func TestVerify(t *testing.T) {
	in := VerifyInput{
		PlayerSeed:       fill(1),
		CounterpartySeed: fill(2),
		CommitmentHash:   fairness.CommitmentHash(fill(1)),
		Scheme:           fairness.SchemeV2,
		Nonce:            7,
		Bet:              1_000_000,
		Reveals:          []int{0, 1, 4},
	}
	res, err := Verify(odds.DefaultPolicy(), in)
	require.NoError(t, err)
	assert.True(t, res.CommitmentValid)
	assert.Equal(t, vectorBombs, res.Bombs)
	assert.Equal(t, 3, res.SafeReveals)
	assert.Equal(t, int64(2_318_974), res.Payout)
	assert.True(t, decimal.RequireFromString("2.318974").Equal(res.Multiplier))

	in.Reveals = []int{0, 3, 4}
	res, err = Verify(odds.DefaultPolicy(), in)
	require.NoError(t, err)
	require.NotNil(t, res.BombHit)
	assert.Equal(t, 3, *res.BombHit)
	assert.Zero(t, res.Payout)

	in.PlayerSeed = fill(8)
	res, err = Verify(odds.DefaultPolicy(), in)
	require.NoError(t, err)
	assert.False(t, res.CommitmentValid)
	assert.Empty(t, res.Bombs)
}
