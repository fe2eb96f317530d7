package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/models"
)

// GameService records submitted games and keeps the leaderboard in step.
type GameService struct {
	store       Store
	leaderboard *LeaderboardService
	metrics     *Metrics

	mu  sync.RWMutex
	now func() time.Time
}

type GameOutcome struct {
	Player      *models.Player            `json:"player"`
	Session     *models.Session           `json:"session"`
	Leaderboard []models.LeaderboardEntry `json:"-"`
}

func NewGameService(store Store, leaderboard *LeaderboardService, metrics *Metrics) *GameService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &GameService{
		store:       store,
		leaderboard: leaderboard,
		metrics:     metrics,
		now:         time.Now,
	}
}

func (s *GameService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *GameService) clock() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.now()
}

// RecordGame validates the request, applies it to the player and appends the
// session, then rebuilds the leaderboard. Invalid requests return a
// *models.ValidationError and touch nothing. A failed rebuild is logged and
// leaves Leaderboard nil; the game itself stays recorded.
func (s *GameService) RecordGame(ctx context.Context, req *models.GameRequest) (*GameOutcome, error) {
	game, err := req.Validate()
	if err != nil {
		return nil, err
	}

	player, session, err := s.store.RecordGame(ctx, game, s.clock())
	if err != nil {
		s.metrics.StoreErrors.WithLabelValues("record_game").Inc()
		return nil, fmt.Errorf("failed to record game for %s: %w", game.PlayerName, err)
	}
	s.metrics.GamesRecorded.WithLabelValues(string(game.Result)).Inc()

	outcome := &GameOutcome{Player: player, Session: session}

	// The rebuild must not be cut short by the client hanging up.
	entries, err := s.leaderboard.Rebuild(context.WithoutCancel(ctx))
	if err != nil {
		logger.Error("Leaderboard rebuild after game for %s failed: %v", game.PlayerName, err)
		return outcome, nil
	}
	outcome.Leaderboard = entries

	return outcome, nil
}
