package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
	"fairplay-backend/internal/storage"
)

// UserHandler serves the caller's account: balance, history and rewards.
type UserHandler struct {
	ledger  *services.Ledger
	rewards *services.RewardPolicy
	logger  *zap.Logger
}

func NewUserHandler(ledger *services.Ledger, rewards *services.RewardPolicy, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		ledger:  ledger,
		rewards: rewards,
		logger:  logger,
	}
}

func (h *UserHandler) OpenAccount(c *gin.Context) {
	account, created, err := h.ledger.OpenAccount(c.Request.Context(), middleware.PlayerID(c), middleware.PlayerKind(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"success":   true,
		"created":   created,
		"player_id": account.PlayerID,
		"balance":   account.Balance,
	})
}

func (h *UserHandler) GetBalance(c *gin.Context) {
	playerID := middleware.PlayerID(c)

	balance, err := h.ledger.Balance(c.Request.Context(), playerID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":   true,
		"player_id": playerID,
		"balance":   balance,
	})
}

func (h *UserHandler) ClaimDailyReward(c *gin.Context) {
	result, err := h.rewards.Claim(c.Request.Context(), middleware.PlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"reward":  result,
	})
}

func (h *UserHandler) GetTransactions(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}
	var before int64
	if raw := c.Query("before"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || v <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "before must be a positive sequence number"})
			return
		}
		before = v
	}
	if limit == 0 || limit > 100 {
		limit = 50
	}

	records, err := h.ledger.History(c.Request.Context(), middleware.PlayerID(c), storage.TransactionFilter{
		Kind:      models.TransactionKind(c.Query("kind")),
		Limit:     limit,
		BeforeSeq: before,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if records == nil {
		records = []models.Transaction{}
	}

	response := gin.H{
		"success":      true,
		"transactions": records,
		"count":        len(records),
	}
	if len(records) == limit {
		response["next_before"] = records[len(records)-1].Seq
	}
	c.JSON(http.StatusOK, response)
}

func (h *UserHandler) Reconcile(c *gin.Context) {
	result, err := h.ledger.Reconcile(c.Request.Context(), middleware.PlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"reconciliation": result,
	})
}
