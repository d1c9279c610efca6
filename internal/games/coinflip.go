package games

import (
	"encoding/json"

	"fairplay-backend/internal/models"
)

var coinSides = [2]string{"heads", "tails"}

type CoinflipMove struct {
	Call string `json:"call"`
}

// Coinflip pays 1.95x on a correct call.
type Coinflip struct{}

func (Coinflip) Kind() models.GameKind { return models.GameKindCoinflip }

func (Coinflip) NewState(seeds models.SeedPair, raw json.RawMessage) (models.GameState, uint64, error) {
	if err := noConfig(raw); err != nil {
		return nil, 0, err
	}
	d := newDrawer(seeds)
	return models.CoinflipState{Side: d.intn(0, 1)}, d.used(), nil
}

func (Coinflip) Config(models.GameState) json.RawMessage { return nil }

func (Coinflip) Reveal(models.GameState) any { return nil }

func (Coinflip) Resolve(state models.GameState, wager int64, raw json.RawMessage) (Outcome, error) {
	s, ok := state.(models.CoinflipState)
	if !ok {
		return Outcome{}, corrupt(models.GameKindCoinflip, "unexpected state type %T", state)
	}
	if s.Side != 0 && s.Side != 1 {
		return Outcome{}, corrupt(models.GameKindCoinflip, "side %d", s.Side)
	}

	var move CoinflipMove
	if err := json.Unmarshal(raw, &move); err != nil {
		return Outcome{}, invalidMove("%v", err)
	}
	if move.Call != coinSides[0] && move.Call != coinSides[1] {
		return Outcome{}, invalidMove("call must be heads or tails")
	}

	won := move.Call == coinSides[s.Side]
	out := Outcome{
		Won: won,
		Details: map[string]any{
			"side": coinSides[s.Side],
			"call": move.Call,
		},
	}
	if won {
		p, err := payout(models.GameKindCoinflip, wager, 195, 100)
		if err != nil {
			return Outcome{}, err
		}
		out.Payout = p
	}
	return out, nil
}
