package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"poker-leaderboard-backend/internal/api"
	"poker-leaderboard-backend/internal/config"
	"poker-leaderboard-backend/internal/handlers"
	"poker-leaderboard-backend/internal/models"
	"poker-leaderboard-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testServer struct {
	router *gin.Engine
	store  *services.RedisService
	jwt    *services.JWTService
	mr     *miniredis.Miniredis
}

func newTestServer(t *testing.T, mutate func(cfg *config.Config)) *testServer {
	t.Helper()

	cfg := &config.Config{
		Env:       "test",
		RateLimit: config.RateLimitConfig{GamesPerMinute: 1000},
		Sessions:  config.SessionsConfig{RecentLimit: 50},
		Admin:     config.AdminConfig{JWTSecret: "test-secret", TokenTTL: time.Hour},
	}
	if mutate != nil {
		mutate(cfg)
	}

	mr := miniredis.RunT(t)
	store := services.NewRedisServiceWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test")
	t.Cleanup(func() { store.Close() })

	registry := prometheus.NewRegistry()
	metrics := services.NewMetrics(registry)
	leaderboard := services.NewLeaderboardService(store, metrics)
	hub := handlers.NewWebSocketHub(leaderboard, metrics)
	t.Cleanup(hub.Close)
	leaderboard.SetBroadcaster(hub)

	var jwtService *services.JWTService
	if cfg.AdminEnabled() {
		jwtService = services.NewJWTService(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL)
	}

	router := api.SetupRouter(&api.Dependencies{
		Config:      cfg,
		Store:       store,
		Games:       services.NewGameService(store, leaderboard, metrics),
		Leaderboard: leaderboard,
		Hub:         hub,
		JWT:         jwtService,
		RateLimiter: store,
		Gatherer:    registry,
	})

	return &testServer{router: router, store: store, jwt: jwtService, mr: mr}
}

func (s *testServer) do(t *testing.T, method, path string, body interface{}, headers ...string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		if err != nil {
			t.Fatalf("Failed to encode body: %v", err)
		}
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) submit(t *testing.T, name, result string, amount float64) {
	t.Helper()
	w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": name, "result": result, "amount": amount, "gameType": "cash"})
	if w.Code != http.StatusOK {
		t.Fatalf("Submitting %s %s %.0f failed with %d: %s", name, result, amount, w.Code, w.Body.String())
	}
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("Failed to decode %q: %v", w.Body.String(), err)
	}
	return v
}

func (s *testServer) leaderboard(t *testing.T) []models.LeaderboardEntry {
	t.Helper()
	w := s.do(t, http.MethodGet, "/api/leaderboard", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /api/leaderboard failed with %d", w.Code)
	}
	return decode[[]models.LeaderboardEntry](t, w)
}

func TestRecordGameScenarios(t *testing.T) {
	s := newTestServer(t, nil)

	// A: first win on an empty store.
	w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": "Alice", "result": "win", "amount": 100, "gameType": "cash"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode[map[string]interface{}](t, w)
	if resp["success"] != true || resp["message"] != "Game recorded successfully" {
		t.Errorf("Unexpected response: %v", resp)
	}

	players := decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil))
	if len(players) != 1 {
		t.Fatalf("Expected 1 player, got %d", len(players))
	}
	alice := players[0]
	if alice.TotalWinnings != 100 || alice.GamesPlayed != 1 || alice.Wins != 1 || alice.TotalWon != 100 || alice.BiggestWin != 100 {
		t.Errorf("Unexpected Alice after scenario A: %+v", alice)
	}

	sessions := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions", nil))
	if len(sessions) != 1 || sessions[0].Amount != 100 || sessions[0].PlayerID != alice.ID {
		t.Errorf("Unexpected sessions after scenario A: %+v", sessions)
	}

	board := s.leaderboard(t)
	if len(board) != 1 || board[0].Rank != 1 || board[0].Name != "Alice" {
		t.Errorf("Unexpected leaderboard after scenario A: %+v", board)
	}

	// B: Alice loses 40.
	s.submit(t, "Alice", "loss", 40)
	players = decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil))
	alice = players[0]
	if alice.TotalWinnings != 60 || alice.GamesPlayed != 2 || alice.Losses != 1 || alice.TotalLost != 40 {
		t.Errorf("Unexpected Alice after scenario B: %+v", alice)
	}
	if board = s.leaderboard(t); board[0].TotalWinnings != 60 {
		t.Errorf("Leaderboard should show 60 for Alice, got %.2f", board[0].TotalWinnings)
	}

	// C: Bob overtakes Alice.
	s.submit(t, "Bob", "win", 150)
	board = s.leaderboard(t)
	if len(board) != 2 || board[0].Name != "Bob" || board[0].Rank != 1 || board[1].Name != "Alice" || board[1].Rank != 2 {
		t.Errorf("Expected Bob rank 1 and Alice rank 2, got %+v", board)
	}

	for _, p := range decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil)) {
		if p.TotalWinnings != p.TotalWon-p.TotalLost || p.Wins+p.Losses != p.GamesPlayed {
			t.Errorf("Aggregate invariant broken for %s: %+v", p.Name, p)
		}
	}
}

func TestRecordGameMissingAmount(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": "Alice", "result": "win", "gameType": "cash"})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}
	if body := decode[map[string]interface{}](t, w); body["error"] == "" || body["error"] == nil {
		t.Errorf("400 body should carry an error message, got %v", body)
	}

	players := decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil))
	sessions := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions", nil))
	if len(players) != 0 || len(sessions) != 0 {
		t.Errorf("Rejected submission must not mutate state: %d players, %d sessions", len(players), len(sessions))
	}
}

func TestRecordGameValidation(t *testing.T) {
	s := newTestServer(t, nil)

	bodies := map[string]interface{}{
		"malformed json":   "{not json",
		"missing name":     gin.H{"result": "win", "amount": 10, "gameType": "cash"},
		"zero amount":      gin.H{"playerName": "Alice", "result": "win", "amount": 0, "gameType": "cash"},
		"negative amount":  gin.H{"playerName": "Alice", "result": "loss", "amount": -10, "gameType": "cash"},
		"unknown result":   gin.H{"playerName": "Alice", "result": "fold", "amount": 10, "gameType": "cash"},
		"blank name":       gin.H{"playerName": "   ", "result": "win", "amount": 10, "gameType": "cash"},
		"uppercase result": gin.H{"playerName": "Alice", "result": "WIN", "amount": 10, "gameType": "cash"},
		"huge amount":      gin.H{"playerName": "Alice", "result": "win", "amount": 1.5e308, "gameType": "cash"},
	}

	for name, body := range bodies {
		t.Run(name, func(t *testing.T) {
			w := s.do(t, http.MethodPost, "/api/game", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("Expected 400, got %d: %s", w.Code, w.Body.String())
			}
		})
	}

	if players := decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil)); len(players) != 0 {
		t.Errorf("Invalid submissions created %d players", len(players))
	}
}

func TestHugeAmountsKeepStatsServable(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)

	for i := 0; i < 3; i++ {
		w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": "Whale", "result": "win", "amount": 1.5e308, "gameType": "cash"})
		if w.Code != http.StatusBadRequest {
			t.Fatalf("Attempt %d: expected 400, got %d: %s", i+1, w.Code, w.Body.String())
		}
		if body := decode[map[string]interface{}](t, w); body["error"] != "Invalid amount" {
			t.Errorf("Unexpected error body: %v", body)
		}
	}

	w := s.do(t, http.MethodGet, "/api/stats", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from stats, got %d", w.Code)
	}
	if stats := decode[models.Summary](t, w); stats.TotalGames != 1 || stats.AvgPot != 100 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}

func TestFractionalAmountsKeepTotalsConsistent(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Carol", "win", 0.1)
	s.submit(t, "Carol", "loss", 0.2)
	s.submit(t, "Carol", "win", 0.3)

	body := decode[struct {
		Player models.Player `json:"player"`
	}](t, s.do(t, http.MethodGet, "/api/players/Carol", nil))

	p := body.Player
	if p.TotalWinnings != p.TotalWon-p.TotalLost {
		t.Errorf("totalWinnings %v != totalWon %v - totalLost %v", p.TotalWinnings, p.TotalWon, p.TotalLost)
	}

	board := s.leaderboard(t)
	if len(board) != 1 || board[0].TotalWinnings != p.TotalWinnings {
		t.Errorf("Leaderboard should carry the same totals: %+v", board)
	}
}

func TestRecordGameStoreFailure(t *testing.T) {
	s := newTestServer(t, nil)
	s.mr.Close()

	w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": "Alice", "result": "win", "amount": 10, "gameType": "cash"})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("Expected 500, got %d", w.Code)
	}
	if body := decode[map[string]interface{}](t, w); body["error"] != "Failed to record game" {
		t.Errorf("Unexpected error body: %v", body)
	}

	if w := s.do(t, http.MethodGet, "/api/players", nil); w.Code != http.StatusInternalServerError {
		t.Errorf("Expected 500 from players, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected 503 from health, got %d", w.Code)
	}
}

func TestRecentSessionsLimit(t *testing.T) {
	s := newTestServer(t, nil)

	for i := 1; i <= 60; i++ {
		s.submit(t, fmt.Sprintf("Player%d", i%5), "win", float64(i))
	}

	sessions := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions", nil))
	if len(sessions) != 50 {
		t.Fatalf("Expected 50 sessions, got %d", len(sessions))
	}
	for i, session := range sessions {
		if session.Amount != float64(60-i) {
			t.Fatalf("Position %d: expected amount %d, got %.0f", i, 60-i, session.Amount)
		}
	}

	if got := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions?limit=5", nil)); len(got) != 5 {
		t.Errorf("Expected 5 sessions with limit=5, got %d", len(got))
	}
	if got := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions?limit=abc", nil)); len(got) != 50 {
		t.Errorf("Invalid limit should fall back to 50, got %d", len(got))
	}
}

func TestGetPlayer(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)
	s.submit(t, "Alice", "loss", 40)

	w := s.do(t, http.MethodGet, "/api/players/Alice", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	body := decode[struct {
		Player   models.Player    `json:"player"`
		WinRate  float64          `json:"winRate"`
		Sessions []models.Session `json:"sessions"`
	}](t, w)
	if body.Player.GamesPlayed != 2 || body.WinRate != 50 || len(body.Sessions) != 2 || body.Sessions[0].Amount != -40 {
		t.Errorf("Unexpected player detail: %+v", body)
	}

	if w := s.do(t, http.MethodGet, "/api/players/Nobody", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown player, got %d", w.Code)
	}
}

func TestStatsAndExport(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)
	s.submit(t, "Alice", "loss", 40)
	s.submit(t, "Bob", "win", 60)

	stats := decode[models.Summary](t, s.do(t, http.MethodGet, "/api/stats", nil))
	if stats.TotalGames != 3 || stats.TotalPlayers != 2 || stats.BiggestWin != 100 || math.Abs(stats.AvgPot-200.0/3) > 1e-9 {
		t.Errorf("Unexpected stats: %+v", stats)
	}

	w := s.do(t, http.MethodGet, "/api/export", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Header().Get("Content-Disposition"), "attachment") {
		t.Error("Export should be served as an attachment")
	}
	export := decode[struct {
		Players     []models.Player           `json:"players"`
		Sessions    []models.Session          `json:"sessions"`
		Leaderboard []models.LeaderboardEntry `json:"leaderboard"`
		ExportDate  time.Time                 `json:"exportDate"`
	}](t, w)
	if len(export.Players) != 2 || len(export.Sessions) != 3 || len(export.Leaderboard) != 2 || export.ExportDate.IsZero() {
		t.Errorf("Unexpected export: %+v", export)
	}
}

func TestClearAll(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)

	if w := s.do(t, http.MethodDelete, "/api/clear-all", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("Expected 401 without a token, got %d", w.Code)
	}
	if players := decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil)); len(players) != 1 {
		t.Fatal("Unauthorized clear must not remove data")
	}

	token, err := s.jwt.GenerateAdminToken("host")
	if err != nil {
		t.Fatalf("Failed to generate token: %v", err)
	}

	w := s.do(t, http.MethodDelete, "/api/clear-all", nil, "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	players := decode[[]models.Player](t, s.do(t, http.MethodGet, "/api/players", nil))
	sessions := decode[[]models.Session](t, s.do(t, http.MethodGet, "/api/sessions", nil))
	if len(players) != 0 || len(sessions) != 0 || len(s.leaderboard(t)) != 0 {
		t.Error("Clear-all should leave players, sessions and leaderboard empty")
	}
}

func TestAdminDisabled(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.Admin.JWTSecret = "" })

	if w := s.do(t, http.MethodDelete, "/api/clear-all", nil, "Authorization", "Bearer whatever"); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 when admin is disabled, got %d", w.Code)
	}
	if w := s.do(t, http.MethodPost, "/api/leaderboard/rebuild", nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 when admin is disabled, got %d", w.Code)
	}
}

func TestManualRebuild(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)

	if err := s.store.ReplaceLeaderboard(context.Background(), nil); err != nil {
		t.Fatalf("Failed to wipe leaderboard: %v", err)
	}
	if len(s.leaderboard(t)) != 0 {
		t.Fatal("Leaderboard should be empty before rebuild")
	}

	token, _ := s.jwt.GenerateAdminToken("host")
	w := s.do(t, http.MethodPost, "/api/leaderboard/rebuild", nil, "Authorization", "Bearer "+token)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if board := s.leaderboard(t); len(board) != 1 || board[0].Name != "Alice" {
		t.Errorf("Rebuild should restore the leaderboard, got %+v", board)
	}
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(cfg *config.Config) { cfg.RateLimit.GamesPerMinute = 2 })

	s.submit(t, "Alice", "win", 1)
	s.submit(t, "Alice", "win", 1)

	w := s.do(t, http.MethodPost, "/api/game", gin.H{"playerName": "Alice", "result": "win", "amount": 1, "gameType": "cash"})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429, got %d", w.Code)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)
	s.submit(t, "Alice", "win", 100)

	if w := s.do(t, http.MethodGet, "/health", nil); w.Code != http.StatusOK {
		t.Errorf("Expected healthy store, got %d", w.Code)
	}

	w := s.do(t, http.MethodGet, "/metrics", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200 from metrics, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), `poker_games_recorded_total{result="win"} 1`) {
		t.Errorf("Metrics missing recorded game counter:\n%s", w.Body.String())
	}
}

func TestStaticFiles(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>Poker</h1>"), 0o644); err != nil {
		t.Fatalf("Failed to write index: %v", err)
	}

	s := newTestServer(t, func(cfg *config.Config) { cfg.StaticDir = dir })

	w := s.do(t, http.MethodGet, "/", nil)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "Poker") {
		t.Errorf("Expected index page, got %d: %s", w.Code, w.Body.String())
	}

	if w := s.do(t, http.MethodGet, "/../../etc/passwd", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for path outside static dir, got %d", w.Code)
	}
	if w := s.do(t, http.MethodGet, "/api/unknown", nil); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown api route, got %d", w.Code)
	}
}
