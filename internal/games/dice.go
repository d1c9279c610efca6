package games

import (
	"encoding/json"

	"fairplay-backend/internal/models"
)

const (
	diceFaces     = 100
	diceMinTarget = 1
	diceMaxTarget = 95
	// payout is wager * diceReturn / winning faces, i.e. a 1% edge.
	diceReturn = 99
)

type DiceMove struct {
	Target int  `json:"target"`
	Over   bool `json:"over"`
}

// Dice rolls 0..99 with nonce 0; the player calls over or under a target.
type Dice struct{}

func (Dice) Kind() models.GameKind { return models.GameKindDice }

func (Dice) NewState(seeds models.SeedPair, raw json.RawMessage) (models.GameState, uint64, error) {
	if err := noConfig(raw); err != nil {
		return nil, 0, err
	}
	d := newDrawer(seeds)
	return models.DiceState{Roll: d.intn(0, diceFaces-1)}, d.used(), nil
}

func (Dice) Config(models.GameState) json.RawMessage { return nil }

func (Dice) Reveal(models.GameState) any { return nil }

func (Dice) Resolve(state models.GameState, wager int64, raw json.RawMessage) (Outcome, error) {
	s, ok := state.(models.DiceState)
	if !ok {
		return Outcome{}, corrupt(models.GameKindDice, "unexpected state type %T", state)
	}
	if s.Roll < 0 || s.Roll >= diceFaces {
		return Outcome{}, corrupt(models.GameKindDice, "roll %d", s.Roll)
	}

	var move DiceMove
	if err := json.Unmarshal(raw, &move); err != nil {
		return Outcome{}, invalidMove("%v", err)
	}
	if move.Target < diceMinTarget || move.Target > diceMaxTarget {
		return Outcome{}, invalidMove("target must be between %d and %d", diceMinTarget, diceMaxTarget)
	}

	var won bool
	var faces int
	if move.Over {
		won = s.Roll > move.Target
		faces = diceFaces - 1 - move.Target
	} else {
		won = s.Roll < move.Target
		faces = move.Target
	}

	out := Outcome{
		Won: won,
		Details: map[string]any{
			"roll":   s.Roll,
			"target": move.Target,
			"over":   move.Over,
		},
	}
	if won {
		p, err := payout(models.GameKindDice, wager, diceReturn, int64(faces))
		if err != nil {
			return Outcome{}, err
		}
		out.Payout = p
	}
	return out, nil
}
