package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"poker-leaderboard-backend/internal/models"
)

// LeaderboardService recomputes the ranked snapshot from every player
// aggregate. Rebuilds in one process never overlap, so a slower rebuild
// cannot overwrite a newer snapshot.
type LeaderboardService struct {
	mu          sync.Mutex
	store       Store
	metrics     *Metrics
	broadcaster Broadcaster
	now         func() time.Time
}

func NewLeaderboardService(store Store, metrics *Metrics) *LeaderboardService {
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &LeaderboardService{
		store:   store,
		metrics: metrics,
		now:     time.Now,
	}
}

func (s *LeaderboardService) SetBroadcaster(b Broadcaster) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcaster = b
}

func (s *LeaderboardService) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Rebuild replaces the stored leaderboard with one derived from the current
// players and returns it.
func (s *LeaderboardService) Rebuild(ctx context.Context) ([]models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()

	players, err := s.store.ListPlayers(ctx)
	if err != nil {
		s.metrics.RebuildFailures.Inc()
		return nil, fmt.Errorf("failed to load players: %w", err)
	}

	entries := models.BuildLeaderboard(players, s.now())

	if err := s.store.ReplaceLeaderboard(ctx, entries); err != nil {
		s.metrics.RebuildFailures.Inc()
		return nil, fmt.Errorf("failed to store leaderboard: %w", err)
	}

	s.metrics.Rebuilds.Inc()
	s.metrics.RebuildDuration.Observe(time.Since(start).Seconds())
	s.metrics.LeaderboardSize.Set(float64(len(entries)))

	if s.broadcaster != nil {
		s.broadcaster.BroadcastLeaderboard(entries)
	}

	return entries, nil
}

// WithSnapshot calls fn with the stored leaderboard while no rebuild can run,
// so whatever fn hands on is ordered before the next broadcast.
func (s *LeaderboardService) WithSnapshot(ctx context.Context, fn func([]models.LeaderboardEntry) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := s.store.Leaderboard(ctx)
	if err != nil {
		return fmt.Errorf("failed to load leaderboard: %w", err)
	}
	return fn(entries)
}

// Snapshot returns the last stored leaderboard.
func (s *LeaderboardService) Snapshot(ctx context.Context) ([]models.LeaderboardEntry, error) {
	return s.store.Leaderboard(ctx)
}
