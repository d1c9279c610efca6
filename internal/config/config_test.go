package config

import (
	"testing"
	"time"

	"fairplay-backend/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "8080" || cfg.SignupBonus != 100 || cfg.DailyRewardCooldown != 24*time.Hour {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	limits, ok := cfg.GameLimits(models.GameKindShell)
	if !ok || limits.MinWager != 1 || limits.MaxWager != 10000 {
		t.Fatalf("shell limits = %+v ok=%v", limits, ok)
	}
	if _, ok := cfg.GameLimits("roulette"); ok {
		t.Fatal("unknown game should have no limits")
	}
}

func TestLoadPerGameOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("DICE_MIN_WAGER", "5")
	t.Setenv("DICE_MAX_WAGER", "500")
	t.Setenv("DAILY_REWARD_COOLDOWN", "90m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	limits, _ := cfg.GameLimits(models.GameKindDice)
	if limits.MinWager != 5 || limits.MaxWager != 500 {
		t.Fatalf("dice limits = %+v", limits)
	}
	if cfg.DailyRewardCooldown != 90*time.Minute {
		t.Fatalf("cooldown = %v", cfg.DailyRewardCooldown)
	}
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing secret", env: map[string]string{"JWT_SECRET": ""}},
		{name: "inverted limits", env: map[string]string{"JWT_SECRET": "s", "COINFLIP_MIN_WAGER": "10", "COINFLIP_MAX_WAGER": "5"}},
		{name: "max wager above ceiling", env: map[string]string{"JWT_SECRET": "s", "DICE_MAX_WAGER": "4611686018427387904"}},
		{name: "zero retries", env: map[string]string{"JWT_SECRET": "s", "LEDGER_MAX_RETRIES": "0"}},
		{name: "bad duration", env: map[string]string{"JWT_SECRET": "s", "JWT_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := Load(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestValidateAcceptsCeiling(t *testing.T) {
	cfg := Config{
		JWTSecret:           "s",
		DailyRewardAmount:   1,
		DailyRewardCooldown: time.Hour,
		LedgerMaxRetries:    1,
		Shell:               WagerLimits{MinWager: 1, MaxWager: MaxWagerCeiling},
		Dice:                WagerLimits{MinWager: 1, MaxWager: 1},
		Coinflip:            WagerLimits{MinWager: 1, MaxWager: 1},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	cfg.Shell.MaxWager = MaxWagerCeiling + 1
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error above the ceiling")
	}
}
