package config

import (
	"fmt"
	"math"
	"time"

	"github.com/caarlos0/env/v11"

	"fairplay-backend/internal/models"
)

// MaxWagerCeiling keeps every payout multiple of a wager within int64.
const MaxWagerCeiling = math.MaxInt64 / 200

// WagerLimits bounds the stake accepted for one game kind.
type WagerLimits struct {
	MinWager int64 `env:"MIN_WAGER" envDefault:"1"`
	MaxWager int64 `env:"MAX_WAGER" envDefault:"10000"`
}

type Config struct {
	Env  string `env:"ENV" envDefault:"development"`
	Port string `env:"PORT" envDefault:"8080"`

	DBPath string `env:"DB_PATH" envDefault:"fairplay.db"`

	RedisURL  string `env:"REDIS_URL"`
	RedisPass string `env:"REDIS_PASSWORD"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret string        `env:"JWT_SECRET"`
	JWTTTL    time.Duration `env:"JWT_TTL" envDefault:"24h"`

	SignupBonus         int64         `env:"SIGNUP_BONUS" envDefault:"100"`
	DailyRewardAmount   int64         `env:"DAILY_REWARD_AMOUNT" envDefault:"50"`
	DailyRewardCooldown time.Duration `env:"DAILY_REWARD_COOLDOWN" envDefault:"24h"`
	LedgerMaxRetries    int           `env:"LEDGER_MAX_RETRIES" envDefault:"3"`

	Shell    WagerLimits `envPrefix:"SHELL_"`
	Dice     WagerLimits `envPrefix:"DICE_"`
	Coinflip WagerLimits `envPrefix:"COINFLIP_"`

	RateLimitBets   int           `env:"RATE_LIMIT_BETS" envDefault:"30"`
	RateLimitWindow time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"1m"`
}

// Load reads the configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.SignupBonus < 0 || c.DailyRewardAmount <= 0 {
		return fmt.Errorf("signup bonus must be >= 0 and daily reward > 0")
	}
	if c.DailyRewardCooldown <= 0 {
		return fmt.Errorf("DAILY_REWARD_COOLDOWN must be positive")
	}
	if c.LedgerMaxRetries < 1 {
		return fmt.Errorf("LEDGER_MAX_RETRIES must be at least 1")
	}
	for kind, limits := range c.limits() {
		if limits.MinWager < 1 || limits.MaxWager < limits.MinWager || limits.MaxWager > MaxWagerCeiling {
			return fmt.Errorf("invalid wager limits for %s: min=%d max=%d", kind, limits.MinWager, limits.MaxWager)
		}
	}
	return nil
}

// GameLimits returns the wager bounds for kind. Unknown kinds get no bounds.
func (c *Config) GameLimits(kind models.GameKind) (WagerLimits, bool) {
	limits, ok := c.limits()[kind]
	return limits, ok
}

func (c *Config) limits() map[models.GameKind]WagerLimits {
	return map[models.GameKind]WagerLimits{
		models.GameKindShell:    c.Shell,
		models.GameKindDice:     c.Dice,
		models.GameKindCoinflip: c.Coinflip,
	}
}
