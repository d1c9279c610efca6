package models

import (
	"encoding/hex"
	"encoding/json"
	"time"
)

type GameKind string

const (
	GameKindShell    GameKind = "shell"
	GameKindDice     GameKind = "dice"
	GameKindCoinflip GameKind = "coinflip"
)

type RoundStatus string

const (
	RoundStatusActive    RoundStatus = "active"
	RoundStatusCompleted RoundStatus = "completed"
	RoundStatusCancelled RoundStatus = "cancelled"
)

func (s RoundStatus) Terminal() bool {
	return s == RoundStatusCompleted || s == RoundStatusCancelled
}

// SeedPair binds a round to its committed randomness. SecretSeed stays
// server-side until the round reaches a terminal status.
type SeedPair struct {
	SecretSeed     []byte `json:"-"`
	SecretSeedHash string `json:"secret_seed_hash"`
	ClientSeed     string `json:"client_seed"`
	NonceCount     uint64 `json:"nonce_count"`
}

// Nonces lists every nonce drawn for the round, in order.
func (p SeedPair) Nonces() []uint64 {
	nonces := make([]uint64, p.NonceCount)
	for i := range nonces {
		nonces[i] = uint64(i)
	}
	return nonces
}

func (p SeedPair) RevealedSeed() string {
	return hex.EncodeToString(p.SecretSeed)
}

type Round struct {
	ID           string          `json:"id"`
	GameKind     GameKind        `json:"game_kind"`
	PlayerID     string          `json:"player_id"`
	PlayerKind   PlayerKind      `json:"player_kind"`
	Status       RoundStatus     `json:"status"`
	Wager        int64           `json:"wager"`
	Payout       int64           `json:"payout"`
	Seeds        SeedPair        `json:"seeds"`
	State        GameState       `json:"-"`
	Move         json.RawMessage `json:"move,omitempty"`
	CancelReason string          `json:"cancel_reason,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	CompletedAt  *time.Time      `json:"completed_at,omitempty"`
}
