package odds

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.NoError(t, p.Validate())

	bombs, err := p.BombCount(DifficultyNormal)
	require.NoError(t, err)
	assert.Equal(t, 9, bombs)

	safe, err := p.SafeTiles(DifficultyGodOfWar)
	require.NoError(t, err)
	assert.Equal(t, 24, safe)

	_, err = p.BombCount(Difficulty(5))
	assert.ErrorIs(t, err, ErrUnknownDifficulty)
}

func TestPolicy_Payout(t *testing.T) {
	p := DefaultPolicy()
	payout, m, err := p.Payout(DifficultyNormal, 1000, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2318), payout)
	assert.Equal(t, "2.318974", m.String())
}

func TestPolicy_Validate(t *testing.T) {
	mutations := map[string]func(*Policy){
		"grid":         func(p *Policy) { p.GridSize = 0 },
		"bombs":        func(p *Policy) { p.BombsNormal = 36 },
		"edge":         func(p *Policy) { p.HouseEdge = decimal.RequireFromString("1.5") },
		"cap":          func(p *Policy) { p.MultiplierCap = 0 },
		"cap fraction": func(p *Policy) { p.CapFraction = decimal.Zero },
		"bets":         func(p *Policy) { p.MaxBet = 0 },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			p := DefaultPolicy()
			mutate(&p)
			assert.ErrorIs(t, p.Validate(), ErrInvalidPolicy)
		})
	}
}

func TestDifficulty_Text(t *testing.T) {
	var d Difficulty
	require.NoError(t, json.Unmarshal([]byte(`"god_of_war"`), &d))
	assert.Equal(t, DifficultyGodOfWar, d)

	data, err := json.Marshal(DifficultyNormal)
	require.NoError(t, err)
	assert.Equal(t, `"normal"`, string(data))

	_, err = ParseDifficulty("hard")
	assert.ErrorIs(t, err, ErrUnknownDifficulty)
}
