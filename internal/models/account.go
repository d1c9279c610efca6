package models

import "time"

type PlayerKind string

const (
	PlayerKindUser  PlayerKind = "user"
	PlayerKindAgent PlayerKind = "agent"
)

func (k PlayerKind) Valid() bool {
	return k == PlayerKindUser || k == PlayerKindAgent
}

type Account struct {
	PlayerID   string     `json:"player_id"`
	PlayerKind PlayerKind `json:"player_kind"`
	Balance    int64      `json:"balance"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}
