package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/services"
)

const playerHistoryLimit = 20

type PlayerHandler struct {
	store services.Store
}

func NewPlayerHandler(store services.Store) *PlayerHandler {
	return &PlayerHandler{store: store}
}

func (h *PlayerHandler) GetPlayers(c *gin.Context) {
	players, err := h.store.ListPlayers(c.Request.Context())
	if err != nil {
		logger.Error("Failed to fetch players: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch players"})
		return
	}

	c.JSON(http.StatusOK, players)
}

func (h *PlayerHandler) GetPlayer(c *gin.Context) {
	name := c.Param("name")

	player, err := h.store.GetPlayer(c.Request.Context(), name)
	if errors.Is(err, services.ErrPlayerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Player not found"})
		return
	}
	if err != nil {
		logger.Error("Failed to fetch player %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch player"})
		return
	}

	sessions, err := h.store.PlayerSessions(c.Request.Context(), name, playerHistoryLimit)
	if err != nil {
		logger.Error("Failed to fetch sessions for %s: %v", name, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"player":   player,
		"winRate":  player.WinRate(),
		"avgWin":   player.AvgWin(),
		"sessions": sessions,
	})
}
