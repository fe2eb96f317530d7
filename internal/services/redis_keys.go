package services

import "time"

// Keys are prefixed with the store name and ":".
const (
	KeyPlayer         = "player:%s"
	KeyPlayers        = "players"
	KeySession        = "session:%s"
	KeyRecentSessions = "sessions:recent"
	KeyPlayerSessions = "player_sessions:%s"
	KeyLeaderboard    = "leaderboard"
	KeyRateLimit      = "ratelimit:%s:%s"

	ActionRecordGame = "game"

	RateLimitWindow = time.Minute

	maxTxRetries = 100
)
