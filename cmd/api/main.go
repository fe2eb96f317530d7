package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"poker-leaderboard-backend/internal/api"
	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/handlers"
	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/services"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		logger.Info("No .env file found, using environment variables")
	}

	if err := run(*configPath); err != nil {
		logger.Error("%v", err)
		os.Exit(1)
	}
}

// run owns every resource, so its defers close them on both clean shutdown
// and server failure.
func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
		logger.SetDebug(false)
	}

	store, limiter, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", cfg.Store.Driver, err)
	}
	defer store.Close()
	logger.Success("Connected to %s store %q", cfg.Store.Driver, cfg.Store.Name)

	metrics := services.NewMetrics(prometheus.DefaultRegisterer)
	leaderboard := services.NewLeaderboardService(store, metrics)
	hub := handlers.NewWebSocketHub(leaderboard, metrics)
	defer hub.Close()
	leaderboard.SetBroadcaster(hub)

	gameService := services.NewGameService(store, leaderboard, metrics)

	var jwtService *services.JWTService
	if cfg.AdminEnabled() {
		jwtService = services.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	} else {
		logger.Warning("ADMIN_JWT_SECRET not set, admin endpoints are disabled")
	}

	startup, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	if entries, err := leaderboard.Rebuild(startup); err != nil {
		logger.Warning("Initial leaderboard rebuild failed: %v", err)
	} else {
		logger.Info("Leaderboard ready with %d players", len(entries))
	}
	cancel()

	router := api.SetupRouter(&api.Dependencies{
		Config:      cfg,
		Store:       store,
		Games:       gameService,
		Leaderboard: leaderboard,
		Hub:         hub,
		JWT:         jwtService,
		RateLimiter: limiter,
		Gatherer:    prometheus.DefaultGatherer,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("Server starting on port %s", cfg.Port)
	return serve(ctx, srv, 10*time.Second)
}

// serve runs srv until ctx is done, then shuts it down gracefully. A listen
// failure is returned instead of ending the process.
func serve(ctx context.Context, srv *http.Server, shutdownTimeout time.Duration) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	logger.Success("Server stopped")
	return nil
}

// openStore returns the configured store and, for redis, the rate limiter
// sharing its connection pool.
func openStore(cfg *config.Config) (services.Store, services.RateLimiter, error) {
	switch cfg.Store.Driver {
	case config.DriverPostgres:
		store, err := services.NewPostgresService(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, nil, nil
	default:
		store, err := services.NewRedisService(cfg)
		if err != nil {
			return nil, nil, err
		}
		return store, store, nil
	}
}
