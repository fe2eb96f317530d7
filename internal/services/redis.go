package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/models"

	"github.com/redis/go-redis/v9"
)

// RedisService stores players and sessions as JSON documents. The leaderboard
// snapshot is a list of JSON entries in rank order.
type RedisService struct {
	client *redis.Client
	prefix string
}

func NewRedisService(cfg *config.Config) (*RedisService, error) {
	opts, err := redisOptions(cfg.Store.URL)
	if err != nil {
		return nil, err
	}
	opts.DialTimeout = cfg.Store.Timeout
	opts.ReadTimeout = cfg.Store.SocketTimeout
	opts.WriteTimeout = cfg.Store.SocketTimeout
	if cfg.Store.PoolSize > 0 {
		opts.PoolSize = cfg.Store.PoolSize
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisServiceWithClient(client, cfg.Store.Name), nil
}

// NewRedisServiceWithClient wraps an existing client. All keys are namespaced
// under name.
func NewRedisServiceWithClient(client *redis.Client, name string) *RedisService {
	return &RedisService{
		client: client,
		prefix: name + ":",
	}
}

func redisOptions(url string) (*redis.Options, error) {
	if !strings.Contains(url, "://") {
		return &redis.Options{Addr: url}, nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}
	return opts, nil
}

func (s *RedisService) key(format string, args ...interface{}) string {
	return s.prefix + fmt.Sprintf(format, args...)
}

func (s *RedisService) RecordGame(ctx context.Context, game *models.Game, now time.Time) (*models.Player, *models.Session, error) {
	playerKey := s.key(KeyPlayer, game.PlayerName)

	var player *models.Player
	var session *models.Session

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, playerKey).Bytes()
		switch {
		case err == redis.Nil:
			player = models.NewPlayer(game.PlayerName, now)
		case err != nil:
			return fmt.Errorf("failed to get player: %w", err)
		default:
			player = &models.Player{}
			if err := json.Unmarshal(data, player); err != nil {
				return fmt.Errorf("failed to unmarshal player: %w", err)
			}
		}

		signed := player.ApplyGame(game.Result, game.Amount, now)
		session = models.NewSession(player, game, signed, now)

		playerData, err := json.Marshal(player)
		if err != nil {
			return fmt.Errorf("failed to marshal player: %w", err)
		}
		sessionData, err := json.Marshal(session)
		if err != nil {
			return fmt.Errorf("failed to marshal session: %w", err)
		}

		score := float64(session.CreatedAt.UnixMilli())

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, playerKey, playerData, 0)
			pipe.SAdd(ctx, s.key(KeyPlayers), game.PlayerName)
			pipe.Set(ctx, s.key(KeySession, session.ID), sessionData, 0)
			pipe.ZAdd(ctx, s.key(KeyRecentSessions), redis.Z{Score: score, Member: session.ID})
			pipe.ZAdd(ctx, s.key(KeyPlayerSessions, game.PlayerName), redis.Z{Score: score, Member: session.ID})
			return nil
		})
		return err
	}

	// Each failed round means another writer committed first, so at most
	// one retry per concurrent writer is needed.
	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, playerKey)
		if err == nil {
			return player, session, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, nil, fmt.Errorf("failed to record game: %w", err)
	}

	return nil, nil, ErrTxConflict
}

func (s *RedisService) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	names, err := s.client.SMembers(ctx, s.key(KeyPlayers)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get player names: %w", err)
	}

	players, err := s.bulkGetPlayers(ctx, names)
	if err != nil {
		return nil, err
	}

	sort.Slice(players, func(i, j int) bool {
		if !players[i].CreatedAt.Equal(players[j].CreatedAt) {
			return players[i].CreatedAt.Before(players[j].CreatedAt)
		}
		return players[i].Name < players[j].Name
	})

	return players, nil
}

func (s *RedisService) bulkGetPlayers(ctx context.Context, names []string) ([]*models.Player, error) {
	players := make([]*models.Player, 0, len(names))
	if len(names) == 0 {
		return players, nil
	}

	cmds := make([]*redis.StringCmd, len(names))
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, name := range names {
			cmds[i] = pipe.Get(ctx, s.key(KeyPlayer, name))
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var player models.Player
		if err := json.Unmarshal(data, &player); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player: %w", err)
		}
		players = append(players, &player)
	}

	return players, nil
}

func (s *RedisService) GetPlayer(ctx context.Context, name string) (*models.Player, error) {
	data, err := s.client.Get(ctx, s.key(KeyPlayer, name)).Bytes()
	if err == redis.Nil {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}

	var player models.Player
	if err := json.Unmarshal(data, &player); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	return &player, nil
}

func (s *RedisService) RecentSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	return s.sessionsFromIndex(ctx, s.key(KeyRecentSessions), limit)
}

func (s *RedisService) PlayerSessions(ctx context.Context, name string, limit int) ([]*models.Session, error) {
	return s.sessionsFromIndex(ctx, s.key(KeyPlayerSessions, name), limit)
}

func (s *RedisService) sessionsFromIndex(ctx context.Context, indexKey string, limit int) ([]*models.Session, error) {
	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}

	ids, err := s.client.ZRevRange(ctx, indexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get session ids: %w", err)
	}

	sessions := make([]*models.Session, 0, len(ids))
	if len(ids) == 0 {
		return sessions, nil
	}

	cmds := make([]*redis.StringCmd, len(ids))
	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.Get(ctx, s.key(KeySession, id))
		}
		return nil
	})
	if err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to get sessions: %w", err)
	}

	for _, cmd := range cmds {
		data, err := cmd.Bytes()
		if err != nil {
			continue
		}

		var session models.Session
		if err := json.Unmarshal(data, &session); err != nil {
			return nil, fmt.Errorf("failed to unmarshal session: %w", err)
		}
		sessions = append(sessions, &session)
	}

	return sessions, nil
}

func (s *RedisService) ReplaceLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error {
	values := make([]interface{}, len(entries))
	for i, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal leaderboard entry: %w", err)
		}
		values[i] = data
	}

	key := s.key(KeyLeaderboard)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		if len(values) > 0 {
			pipe.RPush(ctx, key, values...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to replace leaderboard: %w", err)
	}

	return nil
}

func (s *RedisService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	items, err := s.client.LRange(ctx, s.key(KeyLeaderboard), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]models.LeaderboardEntry, len(items))
	for i, item := range items {
		if err := json.Unmarshal([]byte(item), &entries[i]); err != nil {
			return nil, fmt.Errorf("failed to unmarshal leaderboard entry: %w", err)
		}
	}

	return entries, nil
}

// ClearAll removes every player, session and the leaderboard. Rate limit
// counters are left to expire. The indexes are watched while the key list is
// collected, so a game recorded in between forces another round instead of
// leaving its player behind.
func (s *RedisService) ClearAll(ctx context.Context) error {
	playersKey := s.key(KeyPlayers)
	recentKey := s.key(KeyRecentSessions)

	txf := func(tx *redis.Tx) error {
		names, err := tx.SMembers(ctx, playersKey).Result()
		if err != nil {
			return fmt.Errorf("failed to get player names: %w", err)
		}

		sessionIDs, err := tx.ZRange(ctx, recentKey, 0, -1).Result()
		if err != nil {
			return fmt.Errorf("failed to get session ids: %w", err)
		}

		keys := []string{playersKey, recentKey, s.key(KeyLeaderboard)}
		for _, name := range names {
			keys = append(keys, s.key(KeyPlayer, name), s.key(KeyPlayerSessions, name))
		}
		for _, id := range sessionIDs {
			keys = append(keys, s.key(KeySession, id))
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for start := 0; start < len(keys); start += 500 {
				end := start + 500
				if end > len(keys) {
					end = len(keys)
				}
				pipe.Del(ctx, keys[start:end]...)
			}
			return nil
		})
		return err
	}

	for i := 0; i < maxTxRetries; i++ {
		err := s.client.Watch(ctx, txf, playersKey, recentKey)
		if err == nil {
			return nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return fmt.Errorf("failed to clear data: %w", err)
	}

	return ErrTxConflict
}

func (s *RedisService) CheckRateLimit(ctx context.Context, clientID, action string, limit int, window time.Duration) (bool, error) {
	key := s.key(KeyRateLimit, clientID, action)

	count, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}

	if count == 1 {
		s.client.Expire(ctx, key, window)
	}

	return count <= int64(limit), nil
}

func (s *RedisService) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisService) Close() error {
	return s.client.Close()
}
