package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/config"
	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/games"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/storage"
)

const (
	maxClientSeedLen   = 64
	maxCancelReasonLen = 128
)

// CreateRound is a request to open a round on behalf of an authenticated player.
type CreateRound struct {
	PlayerID   string
	PlayerKind models.PlayerKind
	GameKind   models.GameKind
	Wager      int64
	ClientSeed string
	Config     json.RawMessage
}

// GameEngine drives rounds through active -> completed | cancelled. Every
// transition commits together with the ledger entry it causes.
type GameEngine struct {
	ledger   *Ledger
	store    storage.Store
	games    *games.Registry
	cfg      *config.Config
	logger   *zap.Logger
	metrics  *Metrics
	notifier Broadcaster
}

func NewGameEngine(ledger *Ledger, store storage.Store, registry *games.Registry, cfg *config.Config, logger *zap.Logger, notifier Broadcaster) *GameEngine {
	if notifier == nil {
		notifier = nopBroadcaster{}
	}
	return &GameEngine{
		ledger:   ledger,
		store:    store,
		games:    registry,
		cfg:      cfg,
		logger:   logger,
		metrics:  ledger.metrics,
		notifier: notifier,
	}
}

// CreateRound commits a fresh seed, draws the game state and debits the
// wager. The round row and the debit are written in one transaction, so an
// insufficient balance leaves nothing behind.
func (ge *GameEngine) CreateRound(ctx context.Context, req CreateRound) (*models.RoundReceipt, error) {
	rules, err := ge.games.Lookup(req.GameKind)
	if err != nil {
		return nil, err
	}
	if err := ge.validateWager(req.GameKind, req.Wager); err != nil {
		return nil, err
	}
	if !req.PlayerKind.Valid() {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown player kind %q", req.PlayerKind),
			map[string]any{"player_kind": req.PlayerKind})
	}

	clientSeed := req.ClientSeed
	if clientSeed == "" {
		clientSeed, err = fairness.NewClientSeed()
		if err != nil {
			return nil, fmt.Errorf("client seed: %w", err)
		}
	}
	if len(clientSeed) > maxClientSeedLen {
		return nil, apperr.New(apperr.CodeInvalidInput,
			fmt.Sprintf("client seed longer than %d characters", maxClientSeedLen))
	}

	commitment, err := fairness.Commit()
	if err != nil {
		return nil, fmt.Errorf("commit seed: %w", err)
	}
	seeds := models.SeedPair{
		SecretSeed:     commitment.Secret,
		SecretSeedHash: commitment.Hash,
		ClientSeed:     clientSeed,
	}
	state, used, err := rules.NewState(seeds, req.Config)
	if err != nil {
		return nil, err
	}
	seeds.NonceCount = used

	round := models.Round{
		ID:         models.GenerateRoundID(),
		GameKind:   req.GameKind,
		PlayerID:   req.PlayerID,
		PlayerKind: req.PlayerKind,
		Status:     models.RoundStatusActive,
		Wager:      req.Wager,
		Seeds:      seeds,
		State:      state,
		CreatedAt:  ge.ledger.now(),
	}

	rec, err := ge.ledger.MutateWith(ctx, Mutation{
		PlayerID: req.PlayerID,
		Kind:     models.TransactionKindWager,
		Amount:   -req.Wager,
		RoundID:  round.ID,
	}, func(tx storage.Tx) error {
		if _, err := tx.GetAccount(ctx, req.PlayerID); err != nil {
			return accountError(req.PlayerID, err)
		}
		return tx.InsertRound(ctx, round)
	})
	if err != nil {
		return nil, err
	}

	ge.metrics.Rounds.WithLabelValues(string(round.GameKind), "created").Inc()
	ge.logger.Info("round created",
		zap.String("round_id", round.ID),
		zap.String("player_id", round.PlayerID),
		zap.String("game_kind", string(round.GameKind)),
		zap.Int64("wager", round.Wager),
		zap.Uint64("nonces", seeds.NonceCount))
	ge.notifier.NotifyRound(round.PlayerID, RoundEvent{
		RoundID:  round.ID,
		GameKind: round.GameKind,
		Status:   round.Status,
	})

	return &models.RoundReceipt{
		RoundID:        round.ID,
		GameKind:       round.GameKind,
		SecretSeedHash: seeds.SecretSeedHash,
		ClientSeed:     seeds.ClientSeed,
		Reveal:         rules.Reveal(state),
		Bet:            round.Wager,
		Balance:        rec.BalanceAfter,
		CreatedAt:      round.CreatedAt,
	}, nil
}

// ResolveRound settles the player's move against the committed state and
// credits any payout. The status change is conditional on the round still
// being active, so a round pays out at most once.
func (ge *GameEngine) ResolveRound(ctx context.Context, roundID, playerID string, move json.RawMessage) (*models.Resolution, error) {
	round, err := ge.activeRound(ctx, roundID, playerID)
	if err != nil {
		return nil, err
	}
	rules, err := ge.games.Lookup(round.GameKind)
	if err != nil {
		return nil, ge.inconsistent(round, err)
	}
	if round.State == nil || round.State.Kind() != round.GameKind {
		return nil, ge.inconsistent(round, errors.New("stored state does not decode"))
	}

	outcome, err := rules.Resolve(round.State, round.Wager, move)
	if err != nil {
		if apperr.CodeOf(err) == apperr.CodeInternalInconsistency {
			return nil, ge.inconsistent(round, err)
		}
		return nil, err
	}
	if outcome.Payout < 0 || outcome.Won != (outcome.Payout > 0) {
		return nil, ge.inconsistent(round, fmt.Errorf("payout %d for won=%t", outcome.Payout, outcome.Won))
	}

	completedAt := ge.ledger.now()
	round.Status = models.RoundStatusCompleted
	round.Payout = outcome.Payout
	round.Move = compactMove(move)
	round.CompletedAt = &completedAt

	finish := func(tx storage.Tx) error {
		return finishRound(ctx, tx, round)
	}

	var balance int64
	if outcome.Payout > 0 {
		rec, err := ge.ledger.MutateWith(ctx, Mutation{
			PlayerID: playerID,
			Kind:     models.TransactionKindPayout,
			Amount:   outcome.Payout,
			RoundID:  round.ID,
		}, finish)
		if err != nil {
			return nil, err
		}
		balance = rec.BalanceAfter
	} else {
		err := ge.ledger.atomic(ctx, playerID, func(tx storage.Tx) error {
			if err := finish(tx); err != nil {
				return err
			}
			account, err := tx.GetAccount(ctx, playerID)
			if err != nil {
				return accountError(playerID, err)
			}
			balance = account.Balance
			return nil
		})
		if err != nil {
			return nil, err
		}
	}

	ge.metrics.Rounds.WithLabelValues(string(round.GameKind), "resolved").Inc()
	ge.logger.Info("round resolved",
		zap.String("round_id", round.ID),
		zap.String("player_id", playerID),
		zap.Bool("won", outcome.Won),
		zap.Int64("payout", outcome.Payout),
		zap.Int64("balance", balance))
	ge.notifier.NotifyRound(playerID, RoundEvent{
		RoundID:  round.ID,
		GameKind: round.GameKind,
		Status:   round.Status,
		Payout:   round.Payout,
	})

	return &models.Resolution{
		RoundID:            round.ID,
		Won:                outcome.Won,
		Payout:             outcome.Payout,
		NewBalance:         balance,
		RevealedSecretSeed: round.Seeds.RevealedSeed(),
		SecretSeedHash:     round.Seeds.SecretSeedHash,
		ClientSeed:         round.Seeds.ClientSeed,
		Nonces:             round.Seeds.Nonces(),
		Outcome:            outcome.Details,
	}, nil
}

// CancelRound abandons an active round and refunds the wager.
func (ge *GameEngine) CancelRound(ctx context.Context, roundID, playerID, reason string) (*models.Cancellation, error) {
	if reason == "" || len(reason) > maxCancelReasonLen {
		return nil, apperr.New(apperr.CodeInvalidInput,
			fmt.Sprintf("cancel reason must be 1 to %d characters", maxCancelReasonLen))
	}
	round, err := ge.activeRound(ctx, roundID, playerID)
	if err != nil {
		return nil, err
	}

	completedAt := ge.ledger.now()
	round.Status = models.RoundStatusCancelled
	round.CancelReason = reason
	round.CompletedAt = &completedAt

	rec, err := ge.ledger.MutateWith(ctx, Mutation{
		PlayerID: playerID,
		Kind:     models.TransactionKindRefund,
		Amount:   round.Wager,
		RoundID:  round.ID,
	}, func(tx storage.Tx) error {
		return finishRound(ctx, tx, round)
	})
	if err != nil {
		return nil, err
	}

	ge.metrics.Rounds.WithLabelValues(string(round.GameKind), "cancelled").Inc()
	ge.logger.Info("round cancelled",
		zap.String("round_id", round.ID),
		zap.String("player_id", playerID),
		zap.String("reason", reason),
		zap.Int64("refund", round.Wager))
	ge.notifier.NotifyRound(playerID, RoundEvent{
		RoundID:  round.ID,
		GameKind: round.GameKind,
		Status:   round.Status,
	})

	return &models.Cancellation{
		RoundID:            round.ID,
		Status:             round.Status,
		Refund:             round.Wager,
		NewBalance:         rec.BalanceAfter,
		RevealedSecretSeed: round.Seeds.RevealedSeed(),
	}, nil
}

// GetRound returns the player's round. Rounds owned by someone else are
// reported as missing.
func (ge *GameEngine) GetRound(ctx context.Context, roundID, playerID string) (models.Round, error) {
	round, err := ge.store.GetRound(ctx, roundID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Round{}, roundNotFound(roundID)
		}
		return models.Round{}, fmt.Errorf("get round: %w", err)
	}
	if round.PlayerID != playerID {
		return models.Round{}, roundNotFound(roundID)
	}
	return round, nil
}

func (ge *GameEngine) ListRounds(ctx context.Context, playerID string, status models.RoundStatus, limit int) ([]models.Round, error) {
	switch status {
	case "", models.RoundStatusActive, models.RoundStatusCompleted, models.RoundStatusCancelled:
	default:
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("unknown round status %q", status),
			map[string]any{"status": status})
	}
	rounds, err := ge.store.ListRounds(ctx, storage.RoundFilter{PlayerID: playerID, Status: status, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	return rounds, nil
}

// AuditRound replays a terminal round from its revealed seed and checks the
// commitment, the stored state and the settled payout against the replay.
func (ge *GameEngine) AuditRound(ctx context.Context, roundID, playerID string) (*models.RoundAudit, error) {
	round, err := ge.GetRound(ctx, roundID, playerID)
	if err != nil {
		return nil, err
	}
	if !round.Status.Terminal() {
		return nil, apperr.WithMetadata(apperr.CodeInvalidInput,
			"round is still active; its seed is not revealed yet",
			map[string]any{"round_id": round.ID})
	}
	rules, err := ge.games.Lookup(round.GameKind)
	if err != nil {
		return nil, ge.inconsistent(round, err)
	}

	audit := &models.RoundAudit{
		RoundID:         round.ID,
		CommitmentValid: fairness.VerifyCommitment(round.Seeds.SecretSeed, round.Seeds.SecretSeedHash),
		Nonces:          round.Seeds.Nonces(),
	}
	if round.State == nil {
		return audit, nil
	}

	replayed, used, err := rules.NewState(round.Seeds, rules.Config(round.State))
	if err != nil {
		ge.logger.Error("round audit failed",
			zap.String("round_id", round.ID),
			zap.String("stage", "replay"),
			zap.Error(err))
		return audit, nil
	}
	want, err := models.EncodeGameState(round.State)
	if err != nil {
		ge.logger.Error("round audit failed",
			zap.String("round_id", round.ID),
			zap.String("stage", "encode stored state"),
			zap.Error(err))
		return audit, nil
	}
	got, err := models.EncodeGameState(replayed)
	if err != nil {
		ge.logger.Error("round audit failed",
			zap.String("round_id", round.ID),
			zap.String("stage", "encode replayed state"),
			zap.Error(err))
		return audit, nil
	}
	audit.StateReproduced = used == round.Seeds.NonceCount && bytes.Equal(want, got)

	switch round.Status {
	case models.RoundStatusCancelled:
		audit.PayoutReproduced = round.Payout == 0
	case models.RoundStatusCompleted:
		outcome, err := rules.Resolve(replayed, round.Wager, round.Move)
		audit.PayoutReproduced = err == nil && outcome.Payout == round.Payout
	}

	if !audit.CommitmentValid || !audit.StateReproduced || !audit.PayoutReproduced {
		ge.logger.Error("round audit failed",
			zap.String("round_id", round.ID),
			zap.Bool("commitment_valid", audit.CommitmentValid),
			zap.Bool("state_reproduced", audit.StateReproduced),
			zap.Bool("payout_reproduced", audit.PayoutReproduced))
	}
	return audit, nil
}

// ActiveRoundOwner reports the owner of roundID if it is still active.
func (ge *GameEngine) ActiveRoundOwner(ctx context.Context, roundID string) (string, bool) {
	round, err := ge.store.GetRound(ctx, roundID)
	if err != nil || round.Status != models.RoundStatusActive {
		return "", false
	}
	return round.PlayerID, true
}

func (ge *GameEngine) activeRound(ctx context.Context, roundID, playerID string) (models.Round, error) {
	round, err := ge.GetRound(ctx, roundID, playerID)
	if err != nil {
		return models.Round{}, err
	}
	if round.Status.Terminal() {
		return models.Round{}, alreadyResolved(round.ID, round.Status)
	}
	return round, nil
}

func (ge *GameEngine) validateWager(kind models.GameKind, wager int64) error {
	if wager <= 0 {
		return apperr.WithMetadata(apperr.CodeInvalidInput,
			"wager must be positive",
			map[string]any{"wager": wager})
	}
	if ge.cfg == nil {
		return nil
	}
	limits, ok := ge.cfg.GameLimits(kind)
	if !ok {
		return nil
	}
	if wager < limits.MinWager || wager > limits.MaxWager {
		return apperr.WithMetadata(apperr.CodeInvalidInput,
			fmt.Sprintf("wager must be between %d and %d", limits.MinWager, limits.MaxWager),
			map[string]any{"wager": wager, "min_wager": limits.MinWager, "max_wager": limits.MaxWager})
	}
	return nil
}

// inconsistent fails a round closed when its persisted data cannot be trusted.
func (ge *GameEngine) inconsistent(round models.Round, cause error) error {
	ge.logger.Error("round state is inconsistent",
		zap.String("round_id", round.ID),
		zap.String("game_kind", string(round.GameKind)),
		zap.Error(cause))
	if apperr.CodeOf(cause) == apperr.CodeInternalInconsistency {
		return cause
	}
	return apperr.Wrap(apperr.CodeInternalInconsistency, "round state is inconsistent", cause)
}

func finishRound(ctx context.Context, tx storage.Tx, round models.Round) error {
	err := tx.FinishRound(ctx, round)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, storage.ErrRoundNotActive):
		return alreadyResolved(round.ID, "")
	case errors.Is(err, storage.ErrNotFound):
		return roundNotFound(round.ID)
	default:
		return err
	}
}

func roundNotFound(roundID string) error {
	return apperr.WithMetadata(apperr.CodeRoundNotFound,
		"round not found",
		map[string]any{"round_id": roundID})
}

func alreadyResolved(roundID string, status models.RoundStatus) error {
	meta := map[string]any{"round_id": roundID}
	if status != "" {
		meta["status"] = status
	}
	return apperr.WithMetadata(apperr.CodeRoundAlreadyResolved, "round already resolved", meta)
}

func compactMove(move json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, move); err != nil {
		return move
	}
	return buf.Bytes()
}

