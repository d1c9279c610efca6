package services

import "fairplay-backend/internal/models"

// RoundEvent is pushed to a player when one of their rounds changes state.
type RoundEvent struct {
	RoundID  string             `json:"round_id"`
	GameKind models.GameKind    `json:"game_kind"`
	Status   models.RoundStatus `json:"status"`
	Payout   int64              `json:"payout,omitempty"`
}

// Broadcaster delivers post-commit notifications. Implementations must not block.
type Broadcaster interface {
	NotifyBalance(playerID string, balance int64)
	NotifyRound(playerID string, event RoundEvent)
}

type nopBroadcaster struct{}

func (nopBroadcaster) NotifyBalance(string, int64) {}
func (nopBroadcaster) NotifyRound(string, RoundEvent) {}
