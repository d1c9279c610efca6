package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
)

// RouterConfig collects what the HTTP surface is built from.
type RouterConfig struct {
	Game      *GameHandler
	User      *UserHandler
	WebSocket *WebSocketHandler
	Auth      middleware.TokenValidator
	// Limiter is optional; without it round creation is not rate limited.
	Limiter         middleware.RateLimiter
	RateLimitBets   int
	RateLimitWindow time.Duration
	Gatherer        prometheus.Gatherer
	Metrics         *services.Metrics
	Health          func(ctx context.Context) error
	Logger          *zap.Logger
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(cfg.Logger, cfg.Metrics), middleware.CORS())

	router.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "details": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}
	router.POST("/verify", cfg.Game.VerifyRound)

	protected := router.Group("/api")
	protected.Use(middleware.AuthMiddleware(cfg.Auth))
	{
		protected.POST("/account", cfg.User.OpenAccount)
		protected.GET("/balance", cfg.User.GetBalance)
		protected.GET("/transactions", cfg.User.GetTransactions)
		protected.GET("/ledger/reconcile", cfg.User.Reconcile)
		protected.POST("/rewards/daily", cfg.User.ClaimDailyReward)

		protected.GET("/ws", cfg.WebSocket.HandleWebSocket)

		rounds := protected.Group("/rounds")
		{
			rounds.POST("", limited(cfg, "bet", cfg.RateLimitBets, cfg.Game.CreateRound)...)
			rounds.GET("", cfg.Game.ListRounds)
			rounds.GET("/:id", cfg.Game.GetRound)
			rounds.GET("/:id/audit", cfg.Game.AuditRound)
			rounds.POST("/:id/resolve", limited(cfg, "resolve", services.DefaultRateLimitResolve, cfg.Game.ResolveRound)...)
			rounds.POST("/:id/cancel", cfg.Game.CancelRound)
		}
	}

	return router
}

// limited prefixes h with a per-player rate limit when a limiter is configured.
func limited(cfg RouterConfig, action string, limit int, h gin.HandlerFunc) []gin.HandlerFunc {
	if cfg.Limiter == nil {
		return []gin.HandlerFunc{h}
	}
	if limit <= 0 {
		limit = services.DefaultRateLimitBets
	}
	window := cfg.RateLimitWindow
	if window <= 0 {
		window = services.DefaultRateLimitWindow
	}
	return []gin.HandlerFunc{
		middleware.RateLimitMiddleware(cfg.Limiter, action, limit, window, cfg.Logger),
		h,
	}
}
