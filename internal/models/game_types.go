package models

import (
	"encoding/json"
	"time"
)

type CreateRoundRequest struct {
	GameKind   GameKind        `json:"game_kind" binding:"required"`
	Wager      int64           `json:"wager" binding:"required"`
	ClientSeed string          `json:"client_seed" binding:"max=64"`
	Config     json.RawMessage `json:"config"`
}

type ResolveRoundRequest struct {
	Move json.RawMessage `json:"move" binding:"required"`
}

type CancelRoundRequest struct {
	Reason string `json:"reason" binding:"required,max=128"`
}

type VerifyRequest struct {
	SecretSeed     string   `json:"secret_seed" binding:"required,len=64,hexadecimal"`
	SecretSeedHash string   `json:"secret_seed_hash"`
	ClientSeed     string   `json:"client_seed" binding:"required"`
	Nonce          uint64   `json:"nonce"`
	Outcome        *float64 `json:"outcome"`
	Min            *int     `json:"min"`
	Max            *int     `json:"max"`
	Value          *int     `json:"value"`
}

// RoundReceipt is what a player sees right after placing a wager.
type RoundReceipt struct {
	RoundID        string    `json:"round_id"`
	GameKind       GameKind  `json:"game_kind"`
	SecretSeedHash string    `json:"secret_seed_hash"`
	ClientSeed     string    `json:"client_seed"`
	Reveal         any       `json:"reveal,omitempty"`
	Bet            int64     `json:"bet"`
	Balance        int64     `json:"balance"`
	CreatedAt      time.Time `json:"created_at"`
}

// Resolution carries everything a third party needs to re-run the draws.
type Resolution struct {
	RoundID            string   `json:"round_id"`
	Won                bool     `json:"won"`
	Payout             int64    `json:"payout"`
	NewBalance         int64    `json:"new_balance"`
	RevealedSecretSeed string   `json:"revealed_secret_seed"`
	SecretSeedHash     string   `json:"secret_seed_hash"`
	ClientSeed         string   `json:"client_seed"`
	Nonces             []uint64 `json:"nonces"`
	Outcome            any      `json:"outcome"`
}

type Cancellation struct {
	RoundID            string      `json:"round_id"`
	Status             RoundStatus `json:"status"`
	Refund             int64       `json:"refund"`
	NewBalance         int64       `json:"new_balance"`
	RevealedSecretSeed string      `json:"revealed_secret_seed"`
}

type ClaimResult struct {
	Granted          bool      `json:"granted"`
	Amount           int64     `json:"amount,omitempty"`
	Balance          int64     `json:"balance"`
	NextEligibleAt   time.Time `json:"next_eligible_at"`
	RemainingSeconds int64     `json:"remaining_seconds,omitempty"`
}

// RoundAudit is the outcome of replaying a terminal round from its revealed seed.
type RoundAudit struct {
	RoundID          string   `json:"round_id"`
	CommitmentValid  bool     `json:"commitment_valid"`
	StateReproduced  bool     `json:"state_reproduced"`
	PayoutReproduced bool     `json:"payout_reproduced"`
	Nonces           []uint64 `json:"nonces"`
}

// Reconciliation is the result of replaying an account's ledger from zero.
type Reconciliation struct {
	PlayerID      string `json:"player_id"`
	Transactions  int    `json:"transactions"`
	ReplayBalance int64  `json:"replay_balance"`
	Balance       int64  `json:"balance"`
	Consistent    bool   `json:"consistent"`
	FirstBadSeq   int64  `json:"first_bad_seq,omitempty"`
}
