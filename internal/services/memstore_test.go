package services

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var twentyPercent = decimal.RequireFromString("0.20")

func TestMemoryStore_SettleChecksBankroll(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	_, err := m.FundBankroll(ctx, 11_000)
	require.NoError(t, err)
	_, err = m.Deposit(ctx, 1, 5000)
	require.NoError(t, err)
	require.NoError(t, m.LockBet(ctx, 1, 1000))

	// (11000 − 1000) × 0.20 = 2000
	_, err = m.Settle(ctx, SettleRequest{UserID: 1, GameID: "g", Bet: 1000, Payout: 2001, Won: 2001, CapFraction: twentyPercent})
	assert.ErrorIs(t, err, ErrBankrollChanged)

	moved, err := m.Settle(ctx, SettleRequest{UserID: 1, GameID: "g", Bet: 1000, Payout: 2000, Won: 2000, CapFraction: twentyPercent})
	require.NoError(t, err)
	assert.True(t, moved)

	bankroll, err := m.GetBankroll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000), bankroll)
}

func TestMemoryStore_SettleUsesExactCapFraction(t *testing.T) {
	ctx := context.Background()
	fraction := decimal.RequireFromString("0.123456")

	cases := []struct {
		name     string
		bankroll int64
		bet      int64
		payout   int64
		wantErr  error
	}{
		// (1121 − 100) × 0.123456 = 126.048…
		{"at the limit", 1121, 100, 126, nil},
		{"one above", 1121, 100, 127, ErrBankrollChanged},
		// free × 10000 would overflow int64 here.
		{"large bankroll", 4_000_000_000_000_000_000, 1000, 493_823_999_999_999_876, nil},
		{"large bankroll above", 4_000_000_000_000_000_000, 1000, 493_823_999_999_999_877, ErrBankrollChanged},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m := NewMemoryStore()
			_, err := m.FundBankroll(ctx, tc.bankroll)
			require.NoError(t, err)
			_, err = m.Deposit(ctx, 1, tc.bet)
			require.NoError(t, err)
			require.NoError(t, m.LockBet(ctx, 1, tc.bet))

			moved, err := m.Settle(ctx, SettleRequest{UserID: 1, GameID: "g", Bet: tc.bet, Payout: tc.payout, Won: tc.payout, CapFraction: fraction})
			if tc.wantErr != nil {
				assert.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, moved)
		})
	}
}

func TestMemoryStore_SettleNeverOverdraws(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	require.NoError(t, func() error { _, err := m.Deposit(ctx, 1, 100); return err }())
	require.NoError(t, m.LockBet(ctx, 1, 100))

	_, err := m.Settle(ctx, SettleRequest{UserID: 1, GameID: "g", Bet: 100, Payout: 500, Won: 500})
	assert.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestMemoryStore_RateLimitWindow(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		ok, err := m.CheckRateLimit(ctx, 1, "reveal", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := m.CheckRateLimit(ctx, 1, "reveal", 3, time.Minute)
	assert.False(t, ok)

	now = now.Add(2 * time.Minute)
	ok, _ = m.CheckRateLimit(ctx, 1, "reveal", 3, time.Minute)
	assert.True(t, ok)
}

func TestMemoryStore_RevokedSessionsExpire(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }

	require.NoError(t, m.RevokeSession(ctx, "s1", time.Hour))
	revoked, err := m.IsSessionRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, revoked)

	now = now.Add(2 * time.Hour)
	revoked, err = m.IsSessionRevoked(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, revoked)
}
