// Package sqlite provides the SQLite-backed ledger and round storage.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/storage"
	"fairplay-backend/internal/storage/sqlite/migrations"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"
)

// Store persists accounts, transactions and rounds in SQLite.
//
// The pool holds a single connection, so every transaction is serialized
// at the database handle.
type Store struct {
	sqlDB *sql.DB
}

var _ storage.Store = (*Store)(nil)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)&_txlock=immediate"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(context.Background(), sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// InTx runs fn inside one database transaction. Any error from fn rolls back.
func (s *Store) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	sqlTx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return classify(fmt.Errorf("begin tx: %w", err))
	}
	if err := fn(&tx{q: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return classify(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, playerID string) (models.Account, error) {
	return getAccount(ctx, s.sqlDB, playerID)
}

func (s *Store) GetRound(ctx context.Context, roundID string) (models.Round, error) {
	row := s.sqlDB.QueryRowContext(ctx, selectRound+` WHERE id = ?`, roundID)
	r, err := scanRound(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Round{}, storage.ErrNotFound
		}
		return models.Round{}, fmt.Errorf("get round: %w", err)
	}
	return r, nil
}

func (s *Store) ListRounds(ctx context.Context, filter storage.RoundFilter) ([]models.Round, error) {
	query := selectRound + ` WHERE player_id = ?`
	args := []any{filter.PlayerID}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, pageSize(filter.Limit))

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var rounds []models.Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, fmt.Errorf("scan round: %w", err)
		}
		rounds = append(rounds, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rounds: %w", err)
	}
	return rounds, nil
}

func (s *Store) ListTransactions(ctx context.Context, filter storage.TransactionFilter) ([]models.Transaction, error) {
	query := selectTransaction + ` WHERE player_id = ?`
	args := []any{filter.PlayerID}
	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.BeforeSeq > 0 {
		query += ` AND seq < ?`
		args = append(args, filter.BeforeSeq)
	}
	if filter.Ascending {
		query += ` ORDER BY seq ASC`
	} else {
		query += ` ORDER BY seq DESC`
	}
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
	}

	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var records []models.Transaction
	for rows.Next() {
		rec, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return records, nil
}

func (s *Store) SumByKind(ctx context.Context) (map[models.TransactionKind]int64, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT kind, COALESCE(SUM(amount), 0) FROM transactions GROUP BY kind`)
	if err != nil {
		return nil, fmt.Errorf("sum transactions: %w", err)
	}
	defer rows.Close()

	totals := make(map[models.TransactionKind]int64)
	for rows.Next() {
		var kind string
		var sum int64
		if err := rows.Scan(&kind, &sum); err != nil {
			return nil, fmt.Errorf("scan sum: %w", err)
		}
		totals[models.TransactionKind(kind)] = sum
	}
	return totals, rows.Err()
}

// tx implements storage.Tx over a *sql.Tx.
type tx struct {
	q querier
}

func (t *tx) InsertAccount(ctx context.Context, account models.Account) error {
	_, err := t.q.ExecContext(ctx,
		`INSERT INTO accounts (player_id, player_kind, balance, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		account.PlayerID,
		string(account.PlayerKind),
		account.Balance,
		toMillis(account.CreatedAt),
		toMillis(account.UpdatedAt),
	)
	if err != nil {
		return classify(fmt.Errorf("insert account: %w", err))
	}
	return nil
}

func (t *tx) GetAccount(ctx context.Context, playerID string) (models.Account, error) {
	return getAccount(ctx, t.q, playerID)
}

func (t *tx) AddToBalance(ctx context.Context, playerID string, delta int64) (int64, error) {
	var balance int64
	err := t.q.QueryRowContext(ctx,
		`UPDATE accounts
		    SET balance = balance + ?, updated_at = ?
		  WHERE player_id = ? AND balance + ? >= 0
		 RETURNING balance`,
		delta, toMillis(time.Now()), playerID, delta,
	).Scan(&balance)
	if err == nil {
		return balance, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, classify(fmt.Errorf("update balance: %w", err))
	}
	if _, err := getAccount(ctx, t.q, playerID); err != nil {
		return 0, err
	}
	return 0, storage.ErrInsufficientFunds
}

func (t *tx) AppendTransaction(ctx context.Context, record *models.Transaction) error {
	var roundID sql.NullString
	if record.RoundID != "" {
		roundID = sql.NullString{String: record.RoundID, Valid: true}
	}
	err := t.q.QueryRowContext(ctx,
		`INSERT INTO transactions (id, player_id, kind, amount, balance_after, round_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 RETURNING seq`,
		record.ID,
		record.PlayerID,
		string(record.Kind),
		record.Amount,
		record.BalanceAfter,
		roundID,
		toMillis(record.CreatedAt),
	).Scan(&record.Seq)
	if err != nil {
		return classify(fmt.Errorf("append transaction: %w", err))
	}
	return nil
}

func (t *tx) LatestTransaction(ctx context.Context, playerID string, kind models.TransactionKind) (models.Transaction, error) {
	row := t.q.QueryRowContext(ctx,
		selectTransaction+` WHERE player_id = ? AND kind = ? ORDER BY seq DESC LIMIT 1`,
		playerID, string(kind),
	)
	rec, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Transaction{}, storage.ErrNotFound
		}
		return models.Transaction{}, classify(fmt.Errorf("latest transaction: %w", err))
	}
	return rec, nil
}

func (t *tx) InsertRound(ctx context.Context, r models.Round) error {
	state, err := models.EncodeGameState(r.State)
	if err != nil {
		return err
	}
	_, err = t.q.ExecContext(ctx,
		`INSERT INTO rounds (
		   id, game_kind, player_id, player_kind, status, wager, payout,
		   secret_seed, secret_seed_hash, client_seed, nonce_count,
		   state, move, cancel_reason, created_at, completed_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, NULL)`,
		r.ID,
		string(r.GameKind),
		r.PlayerID,
		string(r.PlayerKind),
		string(r.Status),
		r.Wager,
		r.Payout,
		r.Seeds.SecretSeed,
		r.Seeds.SecretSeedHash,
		r.Seeds.ClientSeed,
		int64(r.Seeds.NonceCount),
		string(state),
		toMillis(r.CreatedAt),
	)
	if err != nil {
		return classify(fmt.Errorf("insert round: %w", err))
	}
	return nil
}

func (t *tx) FinishRound(ctx context.Context, r models.Round) error {
	if !r.Status.Terminal() {
		return fmt.Errorf("finish round: status %q is not terminal", r.Status)
	}
	var move, reason sql.NullString
	if len(r.Move) > 0 {
		move = sql.NullString{String: string(r.Move), Valid: true}
	}
	if r.CancelReason != "" {
		reason = sql.NullString{String: r.CancelReason, Valid: true}
	}
	completedAt := time.Now()
	if r.CompletedAt != nil {
		completedAt = *r.CompletedAt
	}

	res, err := t.q.ExecContext(ctx,
		`UPDATE rounds
		    SET status = ?, payout = ?, move = ?, cancel_reason = ?, completed_at = ?
		  WHERE id = ? AND status = ?`,
		string(r.Status), r.Payout, move, reason, toMillis(completedAt),
		r.ID, string(models.RoundStatusActive),
	)
	if err != nil {
		return classify(fmt.Errorf("finish round: %w", err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish round rows: %w", err)
	}
	if n == 1 {
		return nil
	}

	var found int
	err = t.q.QueryRowContext(ctx, `SELECT 1 FROM rounds WHERE id = ?`, r.ID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		return classify(fmt.Errorf("finish round lookup: %w", err))
	}
	return storage.ErrRoundNotActive
}

func getAccount(ctx context.Context, q querier, playerID string) (models.Account, error) {
	var account models.Account
	var kind string
	var createdAt, updatedAt int64
	err := q.QueryRowContext(ctx,
		`SELECT player_id, player_kind, balance, created_at, updated_at
		   FROM accounts
		  WHERE player_id = ?`,
		playerID,
	).Scan(&account.PlayerID, &kind, &account.Balance, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Account{}, storage.ErrNotFound
		}
		return models.Account{}, classify(fmt.Errorf("get account: %w", err))
	}
	account.PlayerKind = models.PlayerKind(kind)
	account.CreatedAt = fromMillis(createdAt)
	account.UpdatedAt = fromMillis(updatedAt)
	return account, nil
}

const selectTransaction = `SELECT seq, id, player_id, kind, amount, balance_after, round_id, created_at FROM transactions`

type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (models.Transaction, error) {
	var rec models.Transaction
	var kind string
	var roundID sql.NullString
	var createdAt int64
	if err := row.Scan(&rec.Seq, &rec.ID, &rec.PlayerID, &kind, &rec.Amount, &rec.BalanceAfter, &roundID, &createdAt); err != nil {
		return models.Transaction{}, err
	}
	rec.Kind = models.TransactionKind(kind)
	rec.RoundID = roundID.String
	rec.CreatedAt = fromMillis(createdAt)
	return rec, nil
}

const selectRound = `SELECT id, game_kind, player_id, player_kind, status, wager, payout,
       secret_seed, secret_seed_hash, client_seed, nonce_count,
       state, move, cancel_reason, created_at, completed_at
  FROM rounds`

func scanRound(row scanner) (models.Round, error) {
	var r models.Round
	var gameKind, playerKind, status, state string
	var nonceCount, createdAt int64
	var move, reason sql.NullString
	var completedAt sql.NullInt64
	err := row.Scan(
		&r.ID, &gameKind, &r.PlayerID, &playerKind, &status, &r.Wager, &r.Payout,
		&r.Seeds.SecretSeed, &r.Seeds.SecretSeedHash, &r.Seeds.ClientSeed, &nonceCount,
		&state, &move, &reason, &createdAt, &completedAt,
	)
	if err != nil {
		return models.Round{}, err
	}
	r.GameKind = models.GameKind(gameKind)
	r.PlayerKind = models.PlayerKind(playerKind)
	r.Status = models.RoundStatus(status)
	r.Seeds.NonceCount = uint64(nonceCount)
	r.CreatedAt = fromMillis(createdAt)
	r.CancelReason = reason.String
	if move.Valid {
		r.Move = []byte(move.String)
	}
	if completedAt.Valid {
		t := fromMillis(completedAt.Int64)
		r.CompletedAt = &t
	}
	// A state that does not decode is left nil; resolution treats that as corrupt.
	if decoded, err := models.DecodeGameState(r.GameKind, []byte(state)); err == nil {
		r.State = decoded
	}
	return r, nil
}

func pageSize(limit int) int {
	if limit <= 0 || limit > 100 {
		return 50
	}
	return limit
}

// classify maps driver errors onto storage sentinels.
func classify(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return fmt.Errorf("%w: %v", storage.ErrAlreadyExists, err)
		case sqlite3lib.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
		}
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", storage.ErrConflict, err)
		}
	}
	return err
}
