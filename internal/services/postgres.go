package services

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/logger"
	"poker-leaderboard-backend/internal/models"

	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const playerColumns = `id, name, total_winnings, games_played, wins, losses,
	biggest_win, total_won, total_lost, created_at, updated_at`

const sessionColumns = `id, player_id, player_name, result, amount, game_type, date, created_at`

const leaderboardColumns = `rank, player_id, name, total_winnings, games_played, wins, losses,
	biggest_win, total_won, total_lost, win_rate, avg_win, created_at, updated_at`

// PostgresService keeps the same documents as relational rows inside the
// schema named by the store name.
type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(cfg *config.Config) (*PostgresService, error) {
	dsn, err := postgresDSN(cfg.Store.URL, cfg.Store.Name, cfg.Store.Timeout)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if cfg.Store.PoolSize > 0 {
		db.SetMaxOpenConns(cfg.Store.PoolSize)
		db.SetMaxIdleConns(cfg.Store.PoolSize)
	}
	db.SetConnMaxIdleTime(cfg.Store.SocketTimeout)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Store.Timeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	service := &PostgresService{db: db}
	if err := service.Migrate(ctx, cfg.Store.Name); err != nil {
		db.Close()
		return nil, err
	}

	return service, nil
}

// postgresDSN pins search_path to schema on every pooled connection. Both
// URL and key=value connection strings are accepted.
func postgresDSN(dsn, schema string, timeout time.Duration) (string, error) {
	seconds := int(timeout.Seconds())

	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("failed to parse postgres url: %w", err)
		}
		q := u.Query()
		q.Set("search_path", schema)
		if seconds > 0 && q.Get("connect_timeout") == "" {
			q.Set("connect_timeout", fmt.Sprint(seconds))
		}
		u.RawQuery = q.Encode()
		return u.String(), nil
	}

	parts := []string{dsn, "search_path=" + schema}
	if seconds > 0 && !strings.Contains(dsn, "connect_timeout=") {
		parts = append(parts, fmt.Sprintf("connect_timeout=%d", seconds))
	}
	return strings.Join(parts, " "), nil
}

func (s *PostgresService) Migrate(ctx context.Context, schema string) error {
	if _, err := s.db.ExecContext(ctx, "CREATE SCHEMA IF NOT EXISTS "+pq.QuoteIdentifier(schema)); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", schema, err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("failed to read migrations: %w", err)
	}

	for _, entry := range entries {
		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", entry.Name(), err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", entry.Name(), err)
		}
		logger.Debug("Applied migration %s", entry.Name())
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*models.Player, error) {
	var p models.Player
	err := row.Scan(&p.ID, &p.Name, &p.TotalWinnings, &p.GamesPlayed, &p.Wins, &p.Losses,
		&p.BiggestWin, &p.TotalWon, &p.TotalLost, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func scanSession(row rowScanner) (*models.Session, error) {
	var s models.Session
	var result string
	err := row.Scan(&s.ID, &s.PlayerID, &s.PlayerName, &result, &s.Amount, &s.GameType, &s.Date, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	s.Result = models.GameResult(result)
	return &s, nil
}

func (s *PostgresService) RecordGame(ctx context.Context, game *models.Game, now time.Time) (*models.Player, *models.Session, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO players (id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $3)
		ON CONFLICT (name) DO NOTHING
	`, models.GeneratePlayerID(), game.PlayerName, now)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create player: %w", err)
	}

	player, err := scanPlayer(tx.QueryRowContext(ctx,
		`SELECT `+playerColumns+` FROM players WHERE name = $1 FOR UPDATE`, game.PlayerName))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to lock player: %w", err)
	}

	signed := player.ApplyGame(game.Result, game.Amount, now)

	_, err = tx.ExecContext(ctx, `
		UPDATE players
		SET total_winnings = $2, games_played = $3, wins = $4, losses = $5,
			biggest_win = $6, total_won = $7, total_lost = $8, updated_at = $9
		WHERE id = $1
	`, player.ID, player.TotalWinnings, player.GamesPlayed, player.Wins, player.Losses,
		player.BiggestWin, player.TotalWon, player.TotalLost, player.UpdatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to update player: %w", err)
	}

	session := models.NewSession(player, game, signed, now)
	_, err = tx.ExecContext(ctx, `INSERT INTO sessions (`+sessionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		session.ID, session.PlayerID, session.PlayerName, string(session.Result),
		session.Amount, session.GameType, session.Date, session.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to insert session: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit game: %w", err)
	}

	return player, session, nil
}

func (s *PostgresService) ListPlayers(ctx context.Context) ([]*models.Player, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+playerColumns+` FROM players ORDER BY created_at, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %w", err)
	}
	defer rows.Close()

	players := []*models.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %w", err)
		}
		players = append(players, p)
	}

	return players, rows.Err()
}

func (s *PostgresService) GetPlayer(ctx context.Context, name string) (*models.Player, error) {
	p, err := scanPlayer(s.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE name = $1`, name))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return p, nil
}

func sqlLimit(limit int) sql.NullInt64 {
	if limit <= 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(limit), Valid: true}
}

func (s *PostgresService) RecentSessions(ctx context.Context, limit int) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions ORDER BY created_at DESC, id DESC LIMIT $1`, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions: %w", err)
	}
	return collectSessions(rows)
}

func (s *PostgresService) PlayerSessions(ctx context.Context, name string, limit int) ([]*models.Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM sessions WHERE player_name = $1 ORDER BY created_at DESC, id DESC LIMIT $2`,
		name, sqlLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query player sessions: %w", err)
	}
	return collectSessions(rows)
}

func collectSessions(rows *sql.Rows) ([]*models.Session, error) {
	defer rows.Close()

	sessions := []*models.Session{}
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

func (s *PostgresService) ReplaceLeaderboard(ctx context.Context, entries []models.LeaderboardEntry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM leaderboard`); err != nil {
		return fmt.Errorf("failed to clear leaderboard: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO leaderboard (`+leaderboardColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`)
	if err != nil {
		return fmt.Errorf("failed to prepare leaderboard insert: %w", err)
	}
	defer stmt.Close()

	for _, e := range entries {
		_, err := stmt.ExecContext(ctx, e.Rank, e.ID, e.Name, e.TotalWinnings, e.GamesPlayed, e.Wins, e.Losses,
			e.BiggestWin, e.TotalWon, e.TotalLost, e.WinRate, e.AvgWin, e.CreatedAt, e.UpdatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert leaderboard entry %d: %w", e.Rank, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit leaderboard: %w", err)
	}

	return nil
}

func (s *PostgresService) Leaderboard(ctx context.Context) ([]models.LeaderboardEntry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+leaderboardColumns+` FROM leaderboard ORDER BY rank`)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	entries := []models.LeaderboardEntry{}
	for rows.Next() {
		var e models.LeaderboardEntry
		err := rows.Scan(&e.Rank, &e.ID, &e.Name, &e.TotalWinnings, &e.GamesPlayed, &e.Wins, &e.Losses,
			&e.BiggestWin, &e.TotalWon, &e.TotalLost, &e.WinRate, &e.AvgWin, &e.CreatedAt, &e.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

func (s *PostgresService) ClearAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `TRUNCATE leaderboard, sessions, players`); err != nil {
		return fmt.Errorf("failed to clear data: %w", err)
	}
	return nil
}

func (s *PostgresService) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresService) Close() error {
	return s.db.Close()
}
