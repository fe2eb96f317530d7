package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/models"
	"poker-leaderboard-backend/internal/services"
)

const maxSessionsLimit = 100

type GameHandler struct {
	gameService *services.GameService
	store       services.Store
	recentLimit int
}

func NewGameHandler(gameService *services.GameService, store services.Store, recentLimit int) *GameHandler {
	if recentLimit <= 0 || recentLimit > maxSessionsLimit {
		recentLimit = 50
	}
	return &GameHandler{
		gameService: gameService,
		store:       store,
		recentLimit: recentLimit,
	}
}

func (h *GameHandler) RecordGame(c *gin.Context) {
	var req models.GameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "All fields are required",
				"details": err.Error(),
			})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "Invalid request",
			"details": err.Error(),
		})
		return
	}

	outcome, err := h.gameService.RecordGame(c.Request.Context(), &req)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "Invalid " + verr.Field,
				"details": verr.Error(),
			})
			return
		}

		logger.Error("Failed to record game: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record game"})
		return
	}

	logger.Success("Recorded %s of %.2f for %s", outcome.Session.Result, outcome.Session.Amount, outcome.Player.Name)

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Game recorded successfully",
		"player":  outcome.Player,
		"session": outcome.Session,
	})
}

// GetSessions returns the most recent sessions, newest first.
func (h *GameHandler) GetSessions(c *gin.Context) {
	limit := h.recentLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err == nil && parsed > 0 && parsed <= maxSessionsLimit {
			limit = parsed
		}
	}

	sessions, err := h.store.RecentSessions(c.Request.Context(), limit)
	if err != nil {
		logger.Error("Failed to fetch sessions: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch sessions"})
		return
	}

	c.JSON(http.StatusOK, sessions)
}
