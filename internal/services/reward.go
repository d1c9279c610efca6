package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"fairplay-backend/internal/apperr"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/storage"
)

// RewardPolicy grants a fixed credit at most once per cooldown window.
type RewardPolicy struct {
	ledger   *Ledger
	amount   int64
	cooldown time.Duration
	logger   *zap.Logger
	metrics  *Metrics
}

func NewRewardPolicy(ledger *Ledger, amount int64, cooldown time.Duration, logger *zap.Logger) *RewardPolicy {
	return &RewardPolicy{
		ledger:   ledger,
		amount:   amount,
		cooldown: cooldown,
		logger:   logger,
		metrics:  ledger.metrics,
	}
}

// Claim credits the reward if the player's last one is at least a cooldown
// old. The eligibility check and the credit share one storage transaction
// under the account lock, so concurrent claims grant once.
func (p *RewardPolicy) Claim(ctx context.Context, playerID string) (models.ClaimResult, error) {
	if playerID == "" {
		return models.ClaimResult{}, apperr.New(apperr.CodeInvalidInput, "player id is required")
	}

	var result models.ClaimResult
	var rec models.Transaction
	err := p.ledger.atomic(ctx, playerID, func(tx storage.Tx) error {
		result, rec = models.ClaimResult{}, models.Transaction{}
		now := p.ledger.now()

		last, err := tx.LatestTransaction(ctx, playerID, models.TransactionKindDailyReward)
		switch {
		case err == nil:
			next := last.CreatedAt.Add(p.cooldown)
			if now.Before(next) {
				account, err := tx.GetAccount(ctx, playerID)
				if err != nil {
					return accountError(playerID, err)
				}
				result = models.ClaimResult{
					Granted:          false,
					Balance:          account.Balance,
					NextEligibleAt:   next,
					RemainingSeconds: remainingSeconds(next.Sub(now)),
				}
				return nil
			}
		case errors.Is(err, storage.ErrNotFound):
		default:
			return err
		}

		rec, err = p.ledger.apply(ctx, tx, Mutation{
			PlayerID: playerID,
			Kind:     models.TransactionKindDailyReward,
			Amount:   p.amount,
		})
		if err != nil {
			return err
		}
		result = models.ClaimResult{
			Granted:        true,
			Amount:         p.amount,
			Balance:        rec.BalanceAfter,
			NextEligibleAt: rec.CreatedAt.Add(p.cooldown),
		}
		return nil
	})
	if err != nil {
		return models.ClaimResult{}, err
	}

	if result.Granted {
		p.metrics.RewardClaims.WithLabelValues("granted").Inc()
		p.ledger.committed(rec)
		p.logger.Info("daily reward granted",
			zap.String("player_id", playerID),
			zap.Int64("amount", p.amount),
			zap.Int64("balance", rec.BalanceAfter))
	} else {
		p.metrics.RewardClaims.WithLabelValues("cooldown").Inc()
	}
	return result, nil
}

// remainingSeconds rounds d up to whole seconds.
func remainingSeconds(d time.Duration) int64 {
	secs := int64(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
