package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"fairplay-backend/internal/fairness"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/models"
	"fairplay-backend/internal/services"
)

// maxVerifyBound caps the ranges the public endpoint computes.
const maxVerifyBound = 1_000_000_000

type GameHandler struct {
	gameEngine *services.GameEngine
	logger     *zap.Logger
}

func NewGameHandler(gameEngine *services.GameEngine, logger *zap.Logger) *GameHandler {
	return &GameHandler{
		gameEngine: gameEngine,
		logger:     logger,
	}
}

func (h *GameHandler) CreateRound(c *gin.Context) {
	var req models.CreateRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	receipt, err := h.gameEngine.CreateRound(c.Request.Context(), services.CreateRound{
		PlayerID:   middleware.PlayerID(c),
		PlayerKind: middleware.PlayerKind(c),
		GameKind:   req.GameKind,
		Wager:      req.Wager,
		ClientSeed: req.ClientSeed,
		Config:     req.Config,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"round":   receipt,
	})
}

func (h *GameHandler) ResolveRound(c *gin.Context) {
	var req models.ResolveRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.ResolveRound(c.Request.Context(), c.Param("id"), middleware.PlayerID(c), req.Move)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) CancelRound(c *gin.Context) {
	var req models.CancelRoundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gameEngine.CancelRound(c.Request.Context(), c.Param("id"), middleware.PlayerID(c), req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"result":  result,
	})
}

func (h *GameHandler) GetRound(c *gin.Context) {
	round, err := h.gameEngine.GetRound(c.Request.Context(), c.Param("id"), middleware.PlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"round":   models.RoundView(round),
	})
}

func (h *GameHandler) AuditRound(c *gin.Context) {
	audit, err := h.gameEngine.AuditRound(c.Request.Context(), c.Param("id"), middleware.PlayerID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"audit":   audit,
	})
}

func (h *GameHandler) ListRounds(c *gin.Context) {
	limit, ok := queryInt(c, "limit", 50)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
		return
	}

	rounds, err := h.gameEngine.ListRounds(c.Request.Context(), middleware.PlayerID(c), models.RoundStatus(c.Query("status")), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	response := make([]map[string]any, 0, len(rounds))
	for _, r := range rounds {
		response = append(response, models.RoundView(r))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"rounds":  response,
		"count":   len(response),
	})
}

// VerifyRound recomputes draws from a revealed seed. It needs no account and
// reads no service state.
func (h *GameHandler) VerifyRound(c *gin.Context) {
	var req models.VerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	secret, err := fairness.DecodeSeed(req.SecretSeed)
	if err != nil {
		badRequest(c, err)
		return
	}
	if (req.Min == nil) != (req.Max == nil) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min and max must be given together"})
		return
	}
	if req.Min != nil && (*req.Min > *req.Max || *req.Min < -maxVerifyBound || *req.Max > maxVerifyBound) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "min must not exceed max and both must be within ±1e9"})
		return
	}
	if req.Value != nil && req.Min == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "value needs min and max"})
		return
	}

	response := gin.H{
		"success":          true,
		"secret_seed_hash": fairness.HashSeed(secret),
		"client_seed":      req.ClientSeed,
		"nonce":            req.Nonce,
		"outcome":          fairness.Derive(secret, req.ClientSeed, req.Nonce),
	}
	if req.SecretSeedHash != "" {
		response["commitment_valid"] = fairness.VerifyCommitment(secret, req.SecretSeedHash)
	}
	if req.Outcome != nil {
		response["outcome_valid"] = fairness.Verify(secret, req.ClientSeed, req.Nonce, *req.Outcome)
	}
	if req.Min != nil {
		response["value"] = fairness.DeriveInRange(secret, req.ClientSeed, req.Nonce, *req.Min, *req.Max)
		if req.Value != nil {
			response["value_valid"] = fairness.VerifyInRange(secret, req.ClientSeed, req.Nonce, *req.Min, *req.Max, *req.Value)
		}
	}

	c.JSON(http.StatusOK, response)
}
