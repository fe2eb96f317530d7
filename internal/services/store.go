package services

import (
	"context"
	"errors"
	"time"

	"poker-leaderboard-backend/internal/models"
)

var (
	ErrPlayerNotFound = errors.New("player not found")
	ErrTxConflict     = errors.New("transaction retries exhausted")
)

// Store persists players, sessions and the leaderboard snapshot.
//
// RecordGame applies the game to the player aggregate (creating it on first
// use) and appends the session as one atomic unit. ReplaceLeaderboard swaps
// the whole snapshot so readers see either the old or the new one.
type Store interface {
	RecordGame(ctx context.Context, game *models.Game, now time.Time) (*models.Player, *models.Session, error)
	ListPlayers(ctx context.Context) ([]*models.Player, error)
	GetPlayer(ctx context.Context, name string) (*models.Player, error)

	// RecentSessions returns sessions newest first. limit <= 0 returns all.
	RecentSessions(ctx context.Context, limit int) ([]*models.Session, error)
	PlayerSessions(ctx context.Context, name string, limit int) ([]*models.Session, error)

	ReplaceLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error
	Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error)

	ClearAll(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// RateLimiter counts actions per client in a fixed window.
type RateLimiter interface {
	CheckRateLimit(ctx context.Context, clientID, action string, limit int, window time.Duration) (bool, error)
}

var (
	_ Store       = (*RedisService)(nil)
	_ Store       = (*PostgresService)(nil)
	_ RateLimiter = (*RedisService)(nil)
)
