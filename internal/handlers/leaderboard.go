package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/models"
	"poker-leaderboard-backend/internal/services"
)

type LeaderboardHandler struct {
	leaderboard *services.LeaderboardService
	store       services.Store
}

func NewLeaderboardHandler(leaderboard *services.LeaderboardService, store services.Store) *LeaderboardHandler {
	return &LeaderboardHandler{
		leaderboard: leaderboard,
		store:       store,
	}
}

func (h *LeaderboardHandler) GetLeaderboard(c *gin.Context) {
	entries, err := h.leaderboard.Snapshot(c.Request.Context())
	if err != nil {
		logger.Error("Failed to fetch leaderboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch leaderboard"})
		return
	}

	c.JSON(http.StatusOK, entries)
}

func (h *LeaderboardHandler) Rebuild(c *gin.Context) {
	entries, err := h.leaderboard.Rebuild(c.Request.Context())
	if err != nil {
		logger.Error("Manual leaderboard rebuild failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to rebuild leaderboard"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"leaderboard": entries,
	})
}

func (h *LeaderboardHandler) GetStats(c *gin.Context) {
	players, err := h.store.ListPlayers(c.Request.Context())
	if err != nil {
		logger.Error("Failed to fetch stats: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch stats"})
		return
	}

	c.JSON(http.StatusOK, models.Summarize(players))
}

// Export dumps every player, session and the current leaderboard.
func (h *LeaderboardHandler) Export(c *gin.Context) {
	ctx := c.Request.Context()

	players, err := h.store.ListPlayers(ctx)
	if err != nil {
		logger.Error("Export failed loading players: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	sessions, err := h.store.RecentSessions(ctx, 0)
	if err != nil {
		logger.Error("Export failed loading sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	entries, err := h.leaderboard.Snapshot(ctx)
	if err != nil {
		logger.Error("Export failed loading leaderboard: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to export data"})
		return
	}

	exportDate := time.Now().UTC()
	c.Header("Content-Disposition", "attachment; filename=poker-data-"+exportDate.Format("2006-01-02")+".json")
	c.JSON(http.StatusOK, gin.H{
		"players":     players,
		"sessions":    sessions,
		"leaderboard": entries,
		"exportDate":  exportDate,
	})
}
