package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"fairplay-backend/internal/config"
	"fairplay-backend/internal/games"
	"fairplay-backend/internal/handlers"
	"fairplay-backend/internal/logger"
	"fairplay-backend/internal/middleware"
	"fairplay-backend/internal/services"
	"fairplay-backend/internal/storage/sqlite"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	hub := handlers.NewWebSocketHub(zl)
	go hub.Run(ctx)

	ledger := services.NewLedger(store, services.LedgerConfig{
		MaxRetries:  cfg.LedgerMaxRetries,
		SignupBonus: cfg.SignupBonus,
	}, zl, metrics, hub)
	services.RegisterOutstanding(registry, ledger)

	gameEngine := services.NewGameEngine(ledger, store, games.Default(), cfg, zl, hub)
	rewards := services.NewRewardPolicy(ledger, cfg.DailyRewardAmount, cfg.DailyRewardCooldown, zl)
	jwtService := services.NewJWTService(cfg)

	var limiter middleware.RateLimiter
	var redisService *services.RedisService
	if cfg.RedisURL != "" {
		redisService, err = services.NewRedisService(cfg)
		if err != nil {
			return err
		}
		defer redisService.Close()
		limiter = redisService
	} else {
		zl.Warn("REDIS_URL not set, rate limiting disabled")
	}

	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := handlers.NewRouter(handlers.RouterConfig{
		Game:            handlers.NewGameHandler(gameEngine, zl),
		User:            handlers.NewUserHandler(ledger, rewards, zl),
		WebSocket:       handlers.NewWebSocketHandler(hub, gameEngine, ledger, zl),
		Auth:            jwtService,
		Limiter:         limiter,
		RateLimitBets:   cfg.RateLimitBets,
		RateLimitWindow: cfg.RateLimitWindow,
		Gatherer:        registry,
		Metrics:         metrics,
		Logger:          zl,
		Health: func(ctx context.Context) error {
			if redisService != nil {
				if err := redisService.Ping(ctx); err != nil {
					return err
				}
			}
			_, err := ledger.Totals(ctx)
			return err
		},
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting", zap.String("port", cfg.Port), zap.String("db_path", cfg.DBPath))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
