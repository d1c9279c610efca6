package models

import "time"

type TransactionKind string

const (
	TransactionKindWager       TransactionKind = "wager"
	TransactionKindPayout      TransactionKind = "payout"
	TransactionKindDailyReward TransactionKind = "daily-reward"
	TransactionKindSignupBonus TransactionKind = "signup-bonus"
	TransactionKindRefund      TransactionKind = "refund"
)

func (k TransactionKind) Valid() bool {
	switch k {
	case TransactionKindWager, TransactionKindPayout, TransactionKindDailyReward,
		TransactionKindSignupBonus, TransactionKindRefund:
		return true
	}
	return false
}

// Transaction is one immutable ledger entry. Seq orders entries globally.
type Transaction struct {
	ID           string          `json:"id"`
	Seq          int64           `json:"seq"`
	PlayerID     string          `json:"player_id"`
	Kind         TransactionKind `json:"kind"`
	Amount       int64           `json:"amount"`
	BalanceAfter int64           `json:"balance_after"`
	RoundID      string          `json:"round_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
