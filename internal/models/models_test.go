package models_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/game"
	"monsweeper-backend/internal/models"
	"monsweeper-backend/internal/odds"
)

func TestGenerateIDs(t *testing.T) {
	a, b := models.GenerateGameID(), models.GenerateGameID()
	assert.True(t, strings.HasPrefix(a, "game_"))
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(models.GenerateTransactionID(), "tx_"))
}

func TestStartGameRequest_Validate(t *testing.T) {
	p := odds.DefaultPolicy()
	commitment := fairness.CommitmentHash(fairness.Seed{1})

	ok := models.StartGameRequest{Difficulty: odds.DifficultyGodOfWar, Bet: 50, CommitmentHash: commitment}
	assert.NoError(t, ok.Validate(p))

	cases := map[string]models.StartGameRequest{
		"below min":     {Bet: 0, CommitmentHash: commitment},
		"above max":     {Bet: p.MaxBet + 1, CommitmentHash: commitment},
		"unknown tier":  {Difficulty: 9, Bet: 10, CommitmentHash: commitment},
		"no commitment": {Bet: 10},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, req.Validate(p))
		})
	}
}

func TestGameEntry_NeedsSettlement(t *testing.T) {
	e := &models.GameEntry{Record: game.Record{ID: "g", Player: 7, Status: game.StatusActive}}
	assert.False(t, e.NeedsSettlement())
	assert.Equal(t, "g", e.ID())
	assert.Equal(t, int64(7), e.UserID())

	e.Record.Status = game.StatusLostOnBomb
	assert.True(t, e.NeedsSettlement())

	e.Settled = true
	assert.False(t, e.NeedsSettlement())
}

func TestNewGameEvent(t *testing.T) {
	ev := models.NewGameEvent(models.EventGameEnded, game.Info{ID: "g", Player: 3, Status: game.StatusWonCashedOut})
	assert.Equal(t, models.EventGameEnded, ev.Type)
	assert.Equal(t, "g", ev.GameID)
	assert.Equal(t, int64(3), ev.UserID)
	assert.NotZero(t, ev.Timestamp)
}
