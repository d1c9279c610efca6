package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"fairplay-backend/internal/models"
	"fairplay-backend/internal/storage"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "ledger.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func seedAccount(t *testing.T, store *Store, playerID string, balance int64) {
	t.Helper()
	now := time.Date(2026, time.October, 1, 12, 0, 0, 0, time.UTC)
	err := store.InTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertAccount(context.Background(), models.Account{
			PlayerID:   playerID,
			PlayerKind: models.PlayerKindUser,
			Balance:    balance,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
	if err != nil {
		t.Fatalf("seed account: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(""); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	first, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	_ = first.Close()
	second, err := Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	_ = second.Close()
}

func TestInsertAccountDuplicate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	seedAccount(t, store, "p1", 0)

	err := store.InTx(context.Background(), func(tx storage.Tx) error {
		return tx.InsertAccount(context.Background(), models.Account{PlayerID: "p1", PlayerKind: models.PlayerKindUser})
	})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate insert error = %v, want %v", err, storage.ErrAlreadyExists)
	}
}

func TestAddToBalance(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	seedAccount(t, store, "p1", 100)

	var got int64
	err := store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		got, err = tx.AddToBalance(ctx, "p1", -25)
		return err
	})
	if err != nil {
		t.Fatalf("debit: %v", err)
	}
	if got != 75 {
		t.Fatalf("balance = %d, want 75", got)
	}

	err = store.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AddToBalance(ctx, "p1", -76)
		return err
	})
	if !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("overdraft error = %v, want %v", err, storage.ErrInsufficientFunds)
	}

	err = store.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.AddToBalance(ctx, "ghost", 10)
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing account error = %v, want %v", err, storage.ErrNotFound)
	}

	account, err := store.GetAccount(ctx, "p1")
	if err != nil {
		t.Fatalf("get account: %v", err)
	}
	if account.Balance != 75 {
		t.Fatalf("balance = %d, want 75", account.Balance)
	}
}

func TestInTxRollsBackOnError(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	seedAccount(t, store, "p1", 100)

	boom := errors.New("boom")
	err := store.InTx(ctx, func(tx storage.Tx) error {
		balance, err := tx.AddToBalance(ctx, "p1", 50)
		if err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &models.Transaction{
			ID: "tx-1", PlayerID: "p1", Kind: models.TransactionKindPayout, Amount: 50, BalanceAfter: balance, CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}

	account, _ := store.GetAccount(ctx, "p1")
	if account.Balance != 100 {
		t.Fatalf("balance = %d, want 100 after rollback", account.Balance)
	}
	records, err := store.ListTransactions(ctx, storage.TransactionFilter{PlayerID: "p1"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 0 {
		t.Fatalf("records = %d, want 0 after rollback", len(records))
	}
}

func TestTransactionsOrderingAndFilters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	seedAccount(t, store, "p1", 0)

	kinds := []models.TransactionKind{
		models.TransactionKindSignupBonus,
		models.TransactionKindWager,
		models.TransactionKindPayout,
		models.TransactionKindWager,
	}
	amounts := []int64{100, -25, 50, -10}
	var balance int64
	for i, kind := range kinds {
		balance += amounts[i]
		rec := &models.Transaction{
			ID:           models.GenerateTransactionID(),
			PlayerID:     "p1",
			Kind:         kind,
			Amount:       amounts[i],
			BalanceAfter: balance,
			RoundID:      "rnd_1",
			CreatedAt:    time.Now(),
		}
		if err := store.InTx(ctx, func(tx storage.Tx) error { return tx.AppendTransaction(ctx, rec) }); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if rec.Seq == 0 {
			t.Fatalf("append %d: seq not assigned", i)
		}
	}

	all, err := store.ListTransactions(ctx, storage.TransactionFilter{PlayerID: "p1", Ascending: true})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 || all[0].Kind != models.TransactionKindSignupBonus || all[3].BalanceAfter != 115 {
		t.Fatalf("ascending = %+v", all)
	}
	if all[1].RoundID != "rnd_1" {
		t.Fatalf("round id = %q, want rnd_1", all[1].RoundID)
	}

	wagers, err := store.ListTransactions(ctx, storage.TransactionFilter{PlayerID: "p1", Kind: models.TransactionKindWager})
	if err != nil {
		t.Fatalf("list wagers: %v", err)
	}
	if len(wagers) != 2 || wagers[0].Amount != -10 {
		t.Fatalf("wagers = %+v", wagers)
	}

	page, err := store.ListTransactions(ctx, storage.TransactionFilter{PlayerID: "p1", Limit: 2, BeforeSeq: all[3].Seq})
	if err != nil {
		t.Fatalf("list page: %v", err)
	}
	if len(page) != 2 || page[0].Seq != all[2].Seq {
		t.Fatalf("page = %+v", page)
	}

	var latest models.Transaction
	err = store.InTx(ctx, func(tx storage.Tx) error {
		var err error
		latest, err = tx.LatestTransaction(ctx, "p1", models.TransactionKindWager)
		return err
	})
	if err != nil || latest.Amount != -10 {
		t.Fatalf("latest = %+v err = %v", latest, err)
	}
	err = store.InTx(ctx, func(tx storage.Tx) error {
		_, err := tx.LatestTransaction(ctx, "p1", models.TransactionKindDailyReward)
		return err
	})
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("latest reward err = %v, want %v", err, storage.ErrNotFound)
	}

	totals, err := store.SumByKind(ctx)
	if err != nil {
		t.Fatalf("sum: %v", err)
	}
	if totals[models.TransactionKindWager] != -35 || totals[models.TransactionKindPayout] != 50 {
		t.Fatalf("totals = %v", totals)
	}
}

func TestRoundLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	seedAccount(t, store, "p1", 100)

	created := time.Date(2026, time.October, 2, 9, 30, 0, 0, time.UTC)
	round := models.Round{
		ID:         "rnd_1",
		GameKind:   models.GameKindShell,
		PlayerID:   "p1",
		PlayerKind: models.PlayerKindUser,
		Status:     models.RoundStatusActive,
		Wager:      25,
		Seeds: models.SeedPair{
			SecretSeed:     []byte{1, 2, 3},
			SecretSeedHash: "hash",
			ClientSeed:     "client",
			NonceCount:     11,
		},
		State: models.ShellState{
			Difficulty:    "easy",
			Containers:    3,
			PrizePosition: 1,
			Swaps:         []models.Swap{{A: 0, B: 1}},
		},
		CreatedAt: created,
	}
	if err := store.InTx(ctx, func(tx storage.Tx) error { return tx.InsertRound(ctx, round) }); err != nil {
		t.Fatalf("insert round: %v", err)
	}

	got, err := store.GetRound(ctx, "rnd_1")
	if err != nil {
		t.Fatalf("get round: %v", err)
	}
	if got.Status != models.RoundStatusActive || got.Seeds.NonceCount != 11 || !got.CreatedAt.Equal(created) {
		t.Fatalf("round = %+v", got)
	}
	shell, ok := got.State.(models.ShellState)
	if !ok || shell.PrizePosition != 1 || len(shell.Swaps) != 1 {
		t.Fatalf("state = %#v", got.State)
	}

	done := created.Add(time.Minute)
	got.Status = models.RoundStatusCompleted
	got.Payout = 50
	got.Move = []byte(`{"guess":0}`)
	got.CompletedAt = &done
	if err := store.InTx(ctx, func(tx storage.Tx) error { return tx.FinishRound(ctx, got) }); err != nil {
		t.Fatalf("finish round: %v", err)
	}

	err = store.InTx(ctx, func(tx storage.Tx) error { return tx.FinishRound(ctx, got) })
	if !errors.Is(err, storage.ErrRoundNotActive) {
		t.Fatalf("second finish err = %v, want %v", err, storage.ErrRoundNotActive)
	}

	got.ID = "rnd_missing"
	err = store.InTx(ctx, func(tx storage.Tx) error { return tx.FinishRound(ctx, got) })
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing finish err = %v, want %v", err, storage.ErrNotFound)
	}

	final, err := store.GetRound(ctx, "rnd_1")
	if err != nil {
		t.Fatalf("get final: %v", err)
	}
	if final.Status != models.RoundStatusCompleted || final.Payout != 50 || string(final.Move) != `{"guess":0}` || final.CompletedAt == nil {
		t.Fatalf("final round = %+v", final)
	}

	active, err := store.ListRounds(ctx, storage.RoundFilter{PlayerID: "p1", Status: models.RoundStatusActive})
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 0 {
		t.Fatalf("active rounds = %d, want 0", len(active))
	}

	if _, err := store.GetRound(ctx, "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("get missing err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestInsertRoundForUnknownPlayer(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)

	round := models.Round{
		ID:         "rnd_ghost",
		GameKind:   models.GameKindDice,
		PlayerID:   "ghost",
		PlayerKind: models.PlayerKindUser,
		Status:     models.RoundStatusActive,
		Wager:      5,
		Seeds:      models.SeedPair{SecretSeed: []byte{1}, SecretSeedHash: "hash", ClientSeed: "c", NonceCount: 1},
		State:      models.DiceState{Roll: 4},
		CreatedAt:  time.Date(2026, time.October, 2, 9, 30, 0, 0, time.UTC),
	}
	err := store.InTx(ctx, func(tx storage.Tx) error { return tx.InsertRound(ctx, round) })
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, storage.ErrNotFound)
	}
}
