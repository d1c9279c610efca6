package services_test

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap/zaptest"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/games"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
	"fairplay-backend/internal/storage/sqlite"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, time.October, 1, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testEnv struct {
	store   *sqlite.Store
	ledger  *services.Ledger
	engine  *services.GameEngine
	rewards *services.RewardPolicy
	clock   *fakeClock
}

func testConfig(signupBonus int64) *config.Config {
	limits := config.WagerLimits{MinWager: 1, MaxWager: 1000}
	return &config.Config{
		JWTSecret:           "test-secret",
		JWTTTL:              time.Hour,
		SignupBonus:         signupBonus,
		DailyRewardAmount:   50,
		DailyRewardCooldown: 24 * time.Hour,
		LedgerMaxRetries:    3,
		Shell:               limits,
		Dice:                limits,
		Coinflip:            limits,
	}
}

func newTestEnv(t *testing.T, signupBonus int64) *testEnv {
	t.Helper()

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := testConfig(signupBonus)
	clock := newFakeClock()
	logger := zaptest.NewLogger(t)
	metrics := services.NewMetrics(prometheus.NewRegistry())

	ledger := services.NewLedger(store, services.LedgerConfig{
		MaxRetries:  cfg.LedgerMaxRetries,
		SignupBonus: cfg.SignupBonus,
		Now:         clock.Now,
	}, logger, metrics, nil)

	return &testEnv{
		store:   store,
		ledger:  ledger,
		engine:  services.NewGameEngine(ledger, store, games.Default(), cfg, logger, nil),
		rewards: services.NewRewardPolicy(ledger, cfg.DailyRewardAmount, cfg.DailyRewardCooldown, logger),
		clock:   clock,
	}
}

// shellWinner follows the prize through the committed swaps.
func shellWinner(t *testing.T, round models.Round) int {
	t.Helper()
	state, ok := round.State.(models.ShellState)
	if !ok {
		t.Fatalf("state type = %T, want ShellState", round.State)
	}
	pos := state.PrizePosition
	for _, sw := range state.Swaps {
		switch pos {
		case sw.A:
			pos = sw.B
		case sw.B:
			pos = sw.A
		}
	}
	return pos
}
