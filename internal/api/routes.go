package api

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/handlers"
	"poker-leaderboard-backend/internal/middleware"
	"poker-leaderboard-backend/internal/services"
)

type Dependencies struct {
	Config      *config.Config
	Store       services.Store
	Games       *services.GameService
	Leaderboard *services.LeaderboardService
	Hub         *handlers.WebSocketHub

	// Optional.
	JWT         *services.JWTService
	RateLimiter services.RateLimiter
	Gatherer    prometheus.Gatherer
}

func SetupRouter(deps *Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger())
	router.Use(middleware.CORS())

	gameHandler := handlers.NewGameHandler(deps.Games, deps.Store, deps.Config.Sessions.RecentLimit)
	playerHandler := handlers.NewPlayerHandler(deps.Store)
	leaderboardHandler := handlers.NewLeaderboardHandler(deps.Leaderboard, deps.Store)
	adminHandler := handlers.NewAdminHandler(deps.Store, deps.Leaderboard)
	healthHandler := handlers.NewHealthHandler(deps.Store)

	router.GET("/health", healthHandler.Health)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	adminOnly := middleware.AdminAuthMiddleware(deps.JWT)
	gameLimit := middleware.RateLimitMiddleware(deps.RateLimiter, services.ActionRecordGame,
		deps.Config.RateLimit.GamesPerMinute, services.RateLimitWindow)

	api := router.Group("/api")
	{
		api.GET("/players", playerHandler.GetPlayers)
		api.GET("/players/:name", playerHandler.GetPlayer)
		api.GET("/sessions", gameHandler.GetSessions)
		api.POST("/game", gameLimit, gameHandler.RecordGame)

		api.GET("/leaderboard", leaderboardHandler.GetLeaderboard)
		api.POST("/leaderboard/rebuild", adminOnly, leaderboardHandler.Rebuild)
		api.GET("/stats", leaderboardHandler.GetStats)
		api.GET("/export", leaderboardHandler.Export)

		api.DELETE("/clear-all", adminOnly, adminHandler.ClearAll)

		if deps.Hub != nil {
			api.GET("/ws", deps.Hub.HandleWebSocket)
		}
	}

	if dir := deps.Config.StaticDir; dir != "" {
		router.NoRoute(staticFiles(dir))
	} else {
		router.NoRoute(notFound)
	}

	return router
}

func notFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "Not found"})
}

// staticFiles serves the browser client from dir, with / mapped to
// index.html. API paths never fall through to it.
func staticFiles(dir string) gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		if c.Request.Method != http.MethodGet || strings.HasPrefix(path, "/api/") {
			notFound(c)
			return
		}

		if path == "/" {
			path = "/index.html"
		}

		file := filepath.Join(dir, filepath.FromSlash(filepath.Clean("/"+path)))
		info, err := os.Stat(file)
		if err != nil || info.IsDir() {
			notFound(c)
			return
		}

		c.File(file)
	}
}
