package services

import "poker-leaderboard-backend/internal/models"

// Broadcaster pushes a freshly rebuilt leaderboard to live clients.
type Broadcaster interface {
	BroadcastLeaderboard(entries []models.LeaderboardEntry)
}
