package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/storage"
)

const retryBackoff = 10 * time.Millisecond

// Mutation is a single balance change. Debits carry a negative Amount.
type Mutation struct {
	PlayerID string
	Kind     models.TransactionKind
	Amount   int64
	RoundID  string
}

// TxHook runs inside the same storage transaction as a mutation. It must use
// only the tx it is given.
type TxHook func(tx storage.Tx) error

type LedgerConfig struct {
	MaxRetries  int
	SignupBonus int64
	// Now defaults to time.Now.
	Now func() time.Time
}

// Totals is the platform-wide sum of every recorded amount.
type Totals struct {
	ByKind map[models.TransactionKind]int64 `json:"by_kind"`
	// Outstanding is what the platform owes players right now.
	Outstanding int64 `json:"outstanding"`
}

// Ledger is the only writer of account balances. Every balance change is
// committed together with the transaction record that explains it.
type Ledger struct {
	store       storage.Store
	locks       *accountLocks
	maxRetries  int
	signupBonus int64
	now         func() time.Time
	logger      *zap.Logger
	metrics     *Metrics
	notifier    Broadcaster
}

func NewLedger(store storage.Store, cfg LedgerConfig, logger *zap.Logger, metrics *Metrics, notifier Broadcaster) *Ledger {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 1
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if notifier == nil {
		notifier = nopBroadcaster{}
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Ledger{
		store:       store,
		locks:       newAccountLocks(),
		maxRetries:  cfg.MaxRetries,
		signupBonus: cfg.SignupBonus,
		now:         cfg.Now,
		logger:      logger,
		metrics:     metrics,
		notifier:    notifier,
	}
}

// Mutate applies m and records it, or does neither.
func (l *Ledger) Mutate(ctx context.Context, m Mutation) (models.Transaction, error) {
	return l.MutateWith(ctx, m, nil)
}

// MutateWith runs hook and then applies m in one storage transaction. An
// error from hook aborts both.
func (l *Ledger) MutateWith(ctx context.Context, m Mutation, hook TxHook) (models.Transaction, error) {
	if err := validateMutation(m); err != nil {
		return models.Transaction{}, err
	}

	var rec models.Transaction
	err := l.atomic(ctx, m.PlayerID, func(tx storage.Tx) error {
		if hook != nil {
			if err := hook(tx); err != nil {
				return err
			}
		}
		var err error
		rec, err = l.apply(ctx, tx, m)
		return err
	})
	if err != nil {
		return models.Transaction{}, err
	}
	l.committed(rec)
	return rec, nil
}

// OpenAccount creates the player's account and credits the signup bonus. An
// existing account is returned unchanged with created=false.
func (l *Ledger) OpenAccount(ctx context.Context, playerID string, kind models.PlayerKind) (models.Account, bool, error) {
	if playerID == "" {
		return models.Account{}, false, apperr.New(apperr.CodeInvalidInput, "player id is required")
	}
	if !kind.Valid() {
		return models.Account{}, false, apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown player kind %q", kind),
			map[string]any{"player_kind": kind})
	}

	var account models.Account
	var created bool
	var bonus models.Transaction
	err := l.atomic(ctx, playerID, func(tx storage.Tx) error {
		existing, err := tx.GetAccount(ctx, playerID)
		if err == nil {
			account = existing
			return nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return err
		}

		now := l.now()
		account = models.Account{
			PlayerID:   playerID,
			PlayerKind: kind,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertAccount(ctx, account); err != nil {
			return err
		}
		created = true
		if l.signupBonus > 0 {
			bonus, err = l.apply(ctx, tx, Mutation{
				PlayerID: playerID,
				Kind:     models.TransactionKindSignupBonus,
				Amount:   l.signupBonus,
			})
			if err != nil {
				return err
			}
			account.Balance = bonus.BalanceAfter
		}
		return nil
	})
	if err != nil {
		return models.Account{}, false, err
	}
	if created {
		l.logger.Info("account opened",
			zap.String("player_id", playerID),
			zap.String("player_kind", string(kind)),
			zap.Int64("balance", account.Balance))
		if bonus.ID != "" {
			l.committed(bonus)
		}
	}
	return account, created, nil
}

func (l *Ledger) Balance(ctx context.Context, playerID string) (int64, error) {
	account, err := l.store.GetAccount(ctx, playerID)
	if err != nil {
		return 0, accountError(playerID, err)
	}
	return account.Balance, nil
}

// History lists the player's records, newest first unless filter says otherwise.
func (l *Ledger) History(ctx context.Context, playerID string, filter storage.TransactionFilter) ([]models.Transaction, error) {
	if filter.Kind != "" && !filter.Kind.Valid() {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown transaction kind %q", filter.Kind),
			map[string]any{"kind": filter.Kind})
	}
	if filter.Limit < 0 {
		return nil, apperr.New(apperr.CodeInvalidInput, "limit must not be negative")
	}
	filter.PlayerID = playerID
	records, err := l.store.ListTransactions(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return records, nil
}

// Reconcile replays the player's records from a zero balance and compares
// every running total with what was stored.
func (l *Ledger) Reconcile(ctx context.Context, playerID string) (models.Reconciliation, error) {
	unlock := l.locks.lock(playerID)
	defer unlock()

	account, err := l.store.GetAccount(ctx, playerID)
	if err != nil {
		return models.Reconciliation{}, accountError(playerID, err)
	}
	records, err := l.store.ListTransactions(ctx, storage.TransactionFilter{PlayerID: playerID, Ascending: true})
	if err != nil {
		return models.Reconciliation{}, fmt.Errorf("list transactions: %w", err)
	}

	result := models.Reconciliation{
		PlayerID:     playerID,
		Transactions: len(records),
		Balance:      account.Balance,
		Consistent:   true,
	}
	var running int64
	for _, rec := range records {
		running += rec.Amount
		if result.Consistent && (running < 0 || running != rec.BalanceAfter) {
			result.Consistent = false
			result.FirstBadSeq = rec.Seq
		}
	}
	result.ReplayBalance = running
	if running != account.Balance {
		result.Consistent = false
	}
	if !result.Consistent {
		l.logger.Error("ledger replay mismatch",
			zap.String("player_id", playerID),
			zap.Int64("replay_balance", running),
			zap.Int64("balance", account.Balance),
			zap.Int64("first_bad_seq", result.FirstBadSeq))
	}
	return result, nil
}

func (l *Ledger) Totals(ctx context.Context) (Totals, error) {
	byKind, err := l.store.SumByKind(ctx)
	if err != nil {
		return Totals{}, fmt.Errorf("sum transactions: %w", err)
	}
	totals := Totals{ByKind: byKind}
	for _, sum := range byKind {
		totals.Outstanding += sum
	}
	return totals, nil
}

// atomic runs fn in one storage transaction while holding the player's lock.
// Storage conflicts are retried up to maxRetries attempts.
func (l *Ledger) atomic(ctx context.Context, playerID string, fn func(tx storage.Tx) error) error {
	unlock := l.locks.lock(playerID)
	defer unlock()

	var err error
	for attempt := 1; attempt <= l.maxRetries; attempt++ {
		err = l.store.InTx(ctx, fn)
		if !errors.Is(err, storage.ErrConflict) {
			break
		}
		l.logger.Warn("ledger write conflict",
			zap.String("player_id", playerID),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if attempt == l.maxRetries {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * retryBackoff):
		}
	}

	switch {
	case err == nil:
		return nil
	case apperr.CodeOf(err) != "":
		if apperr.CodeOf(err) == apperr.CodeInsufficientFunds {
			l.metrics.LedgerRejections.WithLabelValues("insufficient_funds").Inc()
		}
		return err
	case errors.Is(err, storage.ErrConflict):
		l.metrics.LedgerRejections.WithLabelValues("transient").Inc()
		return apperr.WithMetadata(apperr.CodeTransientFailure,
			"ledger is busy, try again",
			map[string]any{"attempts": l.maxRetries})
	default:
		return fmt.Errorf("ledger: %w", err)
	}
}

// apply changes the balance and appends the record inside tx. The caller
// must be inside atomic for m.PlayerID.
func (l *Ledger) apply(ctx context.Context, tx storage.Tx, m Mutation) (models.Transaction, error) {
	balance, err := tx.AddToBalance(ctx, m.PlayerID, m.Amount)
	if err != nil {
		if errors.Is(err, storage.ErrInsufficientFunds) {
			account, lookupErr := tx.GetAccount(ctx, m.PlayerID)
			if lookupErr != nil {
				return models.Transaction{}, lookupErr
			}
			return models.Transaction{}, apperr.WithMetadata(apperr.CodeInsufficientFunds,
				fmt.Sprintf("insufficient funds: have %d, need %d", account.Balance, -m.Amount),
				map[string]any{"balance": account.Balance, "required": -m.Amount})
		}
		return models.Transaction{}, accountError(m.PlayerID, err)
	}

	rec := models.Transaction{
		ID:           models.GenerateTransactionID(),
		PlayerID:     m.PlayerID,
		Kind:         m.Kind,
		Amount:       m.Amount,
		BalanceAfter: balance,
		RoundID:      m.RoundID,
		CreatedAt:    l.now(),
	}
	if err := tx.AppendTransaction(ctx, &rec); err != nil {
		return models.Transaction{}, err
	}
	return rec, nil
}

// committed runs the side effects of a record that is now durable.
func (l *Ledger) committed(rec models.Transaction) {
	l.metrics.LedgerMutations.WithLabelValues(string(rec.Kind)).Inc()
	l.logger.Debug("ledger mutation",
		zap.String("player_id", rec.PlayerID),
		zap.String("kind", string(rec.Kind)),
		zap.Int64("amount", rec.Amount),
		zap.Int64("balance", rec.BalanceAfter),
		zap.Int64("seq", rec.Seq))
	l.notifier.NotifyBalance(rec.PlayerID, rec.BalanceAfter)
}

func validateMutation(m Mutation) error {
	if m.PlayerID == "" {
		return apperr.New(apperr.CodeInvalidInput, "player id is required")
	}
	if !m.Kind.Valid() {
		return apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown transaction kind %q", m.Kind),
			map[string]any{"kind": m.Kind})
	}
	if m.Amount == 0 {
		return apperr.New(apperr.CodeInvalidInput, "amount must not be zero")
	}
	debit := m.Kind == models.TransactionKindWager
	if debit != (m.Amount < 0) {
		return apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("amount %d has the wrong sign for %s", m.Amount, m.Kind),
			map[string]any{"kind": m.Kind, "amount": m.Amount})
	}
	return nil
}

func accountError(playerID string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return apperr.WithMetadata(apperr.CodeAccountNotFound,
			"account not found",
			map[string]any{"player_id": playerID})
	}
	return err
}
