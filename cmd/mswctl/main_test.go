package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCommitHashesGivenSeed(t *testing.T) {
	seed := "0x" + string(bytes.Repeat([]byte("01"), 32))
	out, err := run(t, "commit", "--seed", seed)
	require.NoError(t, err)

	var got map[string]fairness.Seed
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	parsed, err := fairness.ParseSeed(seed)
	require.NoError(t, err)
	assert.Equal(t, fairness.CommitmentHash(parsed), got["commitment_hash"])
}

func TestVerify(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	player := "0x" + string(bytes.Repeat([]byte("01"), 32))
	counterparty := "0x" + string(bytes.Repeat([]byte("02"), 32))
	ps, err := fairness.ParseSeed(player)
	require.NoError(t, err)

	out, err := run(t, "verify",
		"--player-seed", player,
		"--counterparty-seed", counterparty,
		"--commitment", fairness.CommitmentHash(ps).String(),
		"--nonce", "7",
		"--bet", "1000",
		"--reveals", "0,1,4",
	)
	require.NoError(t, err)

	var res game.VerifyResult
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.True(t, res.CommitmentValid)
	assert.Equal(t, []int{2, 3, 14, 22, 23, 26, 30, 33, 34}, res.Bombs)
	assert.EqualValues(t, 2318, res.Payout)

	_, err = run(t, "verify",
		"--player-seed", counterparty,
		"--counterparty-seed", counterparty,
		"--commitment", fairness.CommitmentHash(ps).String(),
	)
	assert.ErrorIs(t, err, game.ErrInvalidCommitment)
}
