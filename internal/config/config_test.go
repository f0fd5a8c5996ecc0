package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, StoreRedis, cfg.StoreBackend)
	assert.Equal(t, 10*time.Minute, cfg.StaleGameAfter)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)

	p, err := cfg.Policy()
	require.NoError(t, err)
	want := odds.DefaultPolicy()
	assert.Equal(t, want.GridSize, p.GridSize)
	assert.True(t, want.HouseEdge.Equal(p.HouseEdge))
	assert.True(t, want.CapFraction.Equal(p.CapFraction))

	scheme, err := cfg.Scheme()
	require.NoError(t, err)
	assert.Equal(t, fairness.SchemeV2, scheme)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("BOMBS_GOD_OF_WAR", "15")
	t.Setenv("HOUSE_EDGE", "0.97")
	t.Setenv("SEED_SCHEME", "v1")
	t.Setenv("STALE_GAME_AFTER", "90s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, StoreMemory, cfg.StoreBackend)
	assert.Equal(t, 90*time.Second, cfg.StaleGameAfter)

	p, err := cfg.Policy()
	require.NoError(t, err)
	assert.Equal(t, 15, p.BombsGodOfWar)
	assert.Equal(t, "0.97", p.HouseEdge.String())

	scheme, err := cfg.Scheme()
	require.NoError(t, err)
	assert.Equal(t, fairness.SchemeV1, scheme)
}

func TestLoad_Rejects(t *testing.T) {
	cases := map[string][2]string{
		"store backend":  {"STORE_BACKEND", "postgres"},
		"scheme":         {"SEED_SCHEME", "v9"},
		"house edge":     {"HOUSE_EDGE", "abc"},
		"too many bombs": {"BOMBS_NORMAL", "36"},
		"bet bounds":     {"MAX_BET", "0"},
		"redis db":       {"REDIS_DB", "one"},
	}
	for name, kv := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoad_ProductionNeedsSecret(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "s3cret")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProduction())
}
