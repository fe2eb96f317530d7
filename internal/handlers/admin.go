package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/services"
)

type AdminHandler struct {
	store       services.Store
	leaderboard *services.LeaderboardService
}

func NewAdminHandler(store services.Store, leaderboard *services.LeaderboardService) *AdminHandler {
	return &AdminHandler{
		store:       store,
		leaderboard: leaderboard,
	}
}

// ClearAll wipes players, sessions and the leaderboard, then publishes the
// empty leaderboard.
func (h *AdminHandler) ClearAll(c *gin.Context) {
	ctx := c.Request.Context()

	if err := h.store.ClearAll(ctx); err != nil {
		logger.Error("Failed to clear data: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to clear data"})
		return
	}

	if _, err := h.leaderboard.Rebuild(context.WithoutCancel(ctx)); err != nil {
		logger.Error("Leaderboard rebuild after clear failed: %v", err)
	}

	logger.Warning("All data cleared by %s", c.GetString("admin_subject"))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "All data cleared",
	})
}

type HealthHandler struct {
	store services.Store
}

func NewHealthHandler(store services.Store) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := h.store.Ping(ctx); err != nil {
		logger.Warning("Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"error":  "Store unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
