// Package storage defines the persistence contract for accounts, the
// transaction log and rounds.
package storage

import (
	"context"
	"errors"

	"fairplay-backend/internal/models"
)

var (
	ErrNotFound      = errors.New("record not found")
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInsufficientFunds is returned when a balance change would go below zero.
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrRoundNotActive is returned when finishing a round that already left active.
	ErrRoundNotActive = errors.New("round is not active")
	// ErrConflict marks a write that lost to a concurrent writer and may be retried.
	ErrConflict = errors.New("write conflict")
)

type TransactionFilter struct {
	PlayerID  string
	Kind      models.TransactionKind
	Limit     int
	BeforeSeq int64
	// Ascending returns oldest first; the default is newest first.
	Ascending bool
}

type RoundFilter struct {
	PlayerID string
	Status   models.RoundStatus
	Limit    int
}

// Store is the read side plus the entry point for atomic writes.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error

	GetAccount(ctx context.Context, playerID string) (models.Account, error)
	GetRound(ctx context.Context, roundID string) (models.Round, error)
	ListRounds(ctx context.Context, filter RoundFilter) ([]models.Round, error)
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]models.Transaction, error)
	// SumByKind totals transaction amounts per kind across all players.
	SumByKind(ctx context.Context) (map[models.TransactionKind]int64, error)

	Close() error
}

// Tx is a unit of work; everything done through it commits or rolls back together.
type Tx interface {
	InsertAccount(ctx context.Context, account models.Account) error
	GetAccount(ctx context.Context, playerID string) (models.Account, error)
	// AddToBalance applies delta only if the result stays non-negative.
	AddToBalance(ctx context.Context, playerID string, delta int64) (int64, error)
	AppendTransaction(ctx context.Context, record *models.Transaction) error
	LatestTransaction(ctx context.Context, playerID string, kind models.TransactionKind) (models.Transaction, error)

	InsertRound(ctx context.Context, round models.Round) error
	// FinishRound writes a terminal round only if the stored row is still active.
	FinishRound(ctx context.Context, round models.Round) error
}
