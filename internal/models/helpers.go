package models

import (
	"fmt"

	"github.com/google/uuid"
)

func GenerateRoundID() string {
	return fmt.Sprintf("rnd_%s", uuid.NewString())
}

func GenerateTransactionID() string {
	return fmt.Sprintf("tx_%s", uuid.NewString())
}

// RoundView strips the secret seed from a live round; terminal rounds reveal it.
func RoundView(r Round) map[string]any {
	view := map[string]any{
		"id":               r.ID,
		"game_kind":        r.GameKind,
		"player_id":        r.PlayerID,
		"player_kind":      r.PlayerKind,
		"status":           r.Status,
		"wager":            r.Wager,
		"secret_seed_hash": r.Seeds.SecretSeedHash,
		"client_seed":      r.Seeds.ClientSeed,
		"nonce_count":      r.Seeds.NonceCount,
		"created_at":       r.CreatedAt,
	}
	if r.Status.Terminal() {
		view["revealed_secret_seed"] = r.Seeds.RevealedSeed()
		view["state"] = r.State
		view["completed_at"] = r.CompletedAt
	}
	if r.Status == RoundStatusCompleted {
		view["payout"] = r.Payout
		view["move"] = r.Move
	}
	if r.Status == RoundStatusCancelled {
		view["cancel_reason"] = r.CancelReason
	}
	return view
}
