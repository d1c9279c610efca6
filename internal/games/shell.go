package games

import (
	"encoding/json"

	"fairplay-backend/internal/models"
)

const (
	shellContainers = 3
	shellMultiplier = 2
)

var shellSwaps = map[string]int{
	"easy":   5,
	"medium": 10,
	"hard":   20,
}

type ShellConfig struct {
	Difficulty string `json:"difficulty"`
}

type ShellMove struct {
	Guess *int `json:"guess"`
}

// Shell is the three-container pick-the-prize game. The prize is placed with
// nonce 0 and every swap draws two further nonces.
type Shell struct{}

func (Shell) Kind() models.GameKind { return models.GameKindShell }

func (Shell) NewState(seeds models.SeedPair, raw json.RawMessage) (models.GameState, uint64, error) {
	cfg := ShellConfig{Difficulty: "easy"}
	if err := decodeStrict(raw, &cfg); err != nil {
		return nil, 0, invalidConfig("%v", err)
	}
	if cfg.Difficulty == "" {
		cfg.Difficulty = "easy"
	}
	n, ok := shellSwaps[cfg.Difficulty]
	if !ok {
		return nil, 0, invalidConfig("unknown difficulty %q", cfg.Difficulty)
	}

	d := newDrawer(seeds)
	state := models.ShellState{
		Difficulty:    cfg.Difficulty,
		Containers:    shellContainers,
		PrizePosition: d.intn(0, shellContainers-1),
		Swaps:         make([]models.Swap, 0, n),
	}
	for i := 0; i < n; i++ {
		state.Swaps = append(state.Swaps, drawSwap(d, shellContainers))
	}
	return state, d.used(), nil
}

// drawSwap draws an ordered pair of distinct positions. The second draw has
// one fewer choice and skips over the first.
func drawSwap(d *drawer, containers int) models.Swap {
	a := d.intn(0, containers-1)
	b := d.intn(0, containers-2)
	if b >= a {
		b++
	}
	return models.Swap{A: a, B: b}
}

func (Shell) Config(state models.GameState) json.RawMessage {
	s, _ := state.(models.ShellState)
	raw, _ := json.Marshal(ShellConfig{Difficulty: s.Difficulty})
	return raw
}

func (Shell) Reveal(state models.GameState) any {
	s, _ := state.(models.ShellState)
	return map[string]any{
		"containers": s.Containers,
		"swaps":      s.Swaps,
	}
}

func (sh Shell) Resolve(state models.GameState, wager int64, raw json.RawMessage) (Outcome, error) {
	s, ok := state.(models.ShellState)
	if !ok {
		return Outcome{}, corrupt(models.GameKindShell, "unexpected state type %T", state)
	}
	final, err := sh.track(s)
	if err != nil {
		return Outcome{}, err
	}

	var move ShellMove
	if err := json.Unmarshal(raw, &move); err != nil {
		return Outcome{}, invalidMove("%v", err)
	}
	if move.Guess == nil {
		return Outcome{}, invalidMove("guess is required")
	}
	if *move.Guess < 0 || *move.Guess >= s.Containers {
		return Outcome{}, invalidMove("guess must be between 0 and %d", s.Containers-1)
	}

	won := *move.Guess == final
	out := Outcome{
		Won: won,
		Details: map[string]any{
			"guess":          *move.Guess,
			"prize_position": final,
			"start_position": s.PrizePosition,
		},
	}
	if won {
		p, err := payout(models.GameKindShell, wager, shellMultiplier, 1)
		if err != nil {
			return Outcome{}, err
		}
		out.Payout = p
	}
	return out, nil
}

// track follows the prize through the recorded swaps.
func (Shell) track(s models.ShellState) (int, error) {
	if s.Containers != shellContainers {
		return 0, corrupt(models.GameKindShell, "containers = %d", s.Containers)
	}
	if want, ok := shellSwaps[s.Difficulty]; !ok || want != len(s.Swaps) {
		return 0, corrupt(models.GameKindShell, "difficulty %q with %d swaps", s.Difficulty, len(s.Swaps))
	}
	if s.PrizePosition < 0 || s.PrizePosition >= s.Containers {
		return 0, corrupt(models.GameKindShell, "prize position %d", s.PrizePosition)
	}

	pos := s.PrizePosition
	for i, sw := range s.Swaps {
		if sw.A == sw.B || sw.A < 0 || sw.B < 0 || sw.A >= s.Containers || sw.B >= s.Containers {
			return 0, corrupt(models.GameKindShell, "swap %d is (%d,%d)", i, sw.A, sw.B)
		}
		switch pos {
		case sw.A:
			pos = sw.B
		case sw.B:
			pos = sw.A
		}
	}
	return pos, nil
}
