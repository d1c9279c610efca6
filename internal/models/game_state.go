package models

import (
	"encoding/json"
	"fmt"
)

// GameState is the per-game portion of a round. Each game kind has exactly
// one concrete state type; DecodeGameState is the only way back from storage.
type GameState interface {
	Kind() GameKind
}

type Swap struct {
	A int `json:"a"`
	B int `json:"b"`
}

type ShellState struct {
	Difficulty    string `json:"difficulty"`
	Containers    int    `json:"containers"`
	PrizePosition int    `json:"prize_position"`
	Swaps         []Swap `json:"swaps"`
}

func (ShellState) Kind() GameKind { return GameKindShell }

type DiceState struct {
	Roll int `json:"roll"`
}

func (DiceState) Kind() GameKind { return GameKindDice }

type CoinflipState struct {
	Side int `json:"side"`
}

func (CoinflipState) Kind() GameKind { return GameKindCoinflip }

func EncodeGameState(state GameState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("game state is required")
	}
	return json.Marshal(state)
}

func DecodeGameState(kind GameKind, raw []byte) (GameState, error) {
	switch kind {
	case GameKindShell:
		var s ShellState
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode shell state: %w", err)
		}
		return s, nil
	case GameKindDice:
		var s DiceState
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode dice state: %w", err)
		}
		return s, nil
	case GameKindCoinflip:
		var s CoinflipState
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("decode coinflip state: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown game kind %q", kind)
	}
}
