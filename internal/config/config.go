package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"

	"monsweeper-backend/internal/fairness"
	"monsweeper-backend/internal/odds"
)

const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	Env  string `env:"APP_ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	StoreBackend string `env:"STORE_BACKEND" envDefault:"redis"`
	RedisURL     string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPass    string `env:"REDIS_PASSWORD"`
	RedisDB      int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	// NATSURL is optional; events are dropped when it is empty.
	NATSURL           string `env:"NATS_URL"`
	NATSSubjectPrefix string `env:"NATS_SUBJECT_PREFIX" envDefault:"monsweeper.games"`

	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	StaleGameAfter time.Duration `env:"STALE_GAME_AFTER" envDefault:"10m"`

	GridSize      int    `env:"GRID_SIZE" envDefault:"36"`
	BombsNormal   int    `env:"BOMBS_NORMAL" envDefault:"9"`
	BombsGodOfWar int    `env:"BOMBS_GOD_OF_WAR" envDefault:"12"`
	HouseEdge     string `env:"HOUSE_EDGE" envDefault:"0.95"`
	MultiplierCap int64  `env:"MULTIPLIER_CAP" envDefault:"500000"`
	CapFraction   string `env:"BANKROLL_CAP_FRACTION" envDefault:"0.20"`
	MinBet        int64  `env:"MIN_BET" envDefault:"1"`
	MaxBet        int64  `env:"MAX_BET" envDefault:"1000000000"`
	SeedScheme    string `env:"SEED_SCHEME" envDefault:"v2"`
}

// Load reads the process environment. Callers load .env files beforehand.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) validate() error {
	switch c.StoreBackend {
	case StoreRedis, StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreRedis, StoreMemory, c.StoreBackend)
	}
	if c.IsProduction() && c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required in production")
	}
	if c.StaleGameAfter <= 0 {
		return fmt.Errorf("STALE_GAME_AFTER must be positive")
	}
	if _, err := c.Scheme(); err != nil {
		return err
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	return nil
}

// Policy builds the validated game policy from the policy knobs.
func (c *Config) Policy() (odds.Policy, error) {
	edge, err := decimal.NewFromString(c.HouseEdge)
	if err != nil {
		return odds.Policy{}, fmt.Errorf("HOUSE_EDGE: %w", err)
	}
	fraction, err := decimal.NewFromString(c.CapFraction)
	if err != nil {
		return odds.Policy{}, fmt.Errorf("BANKROLL_CAP_FRACTION: %w", err)
	}

	p := odds.DefaultPolicy()
	p.GridSize = c.GridSize
	p.BombsNormal = c.BombsNormal
	p.BombsGodOfWar = c.BombsGodOfWar
	p.HouseEdge = edge
	p.MultiplierCap = c.MultiplierCap
	p.CapFraction = fraction
	p.MinBet = c.MinBet
	p.MaxBet = c.MaxBet
	if err := p.Validate(); err != nil {
		return odds.Policy{}, err
	}
	return p, nil
}

func (c *Config) Scheme() (fairness.Scheme, error) {
	return fairness.ParseScheme(c.SeedScheme)
}
