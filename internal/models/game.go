package models

import (
	"time"
)

type GameResult string

const (
	ResultWin  GameResult = "win"
	ResultLoss GameResult = "loss"
)

// GameRequest is the body of POST /api/game.
type GameRequest struct {
	PlayerName string     `json:"playerName" binding:"required"`
	Result     GameResult `json:"result" binding:"required"`
	Amount     *float64   `json:"amount" binding:"required"`
	GameType   string     `json:"gameType" binding:"required"`
}

// Game is a validated submission. Amount is always positive; the sign is
// derived from Result when the game is applied.
type Game struct {
	PlayerName string
	Result     GameResult
	Amount     float64
	GameType   string
}

// Session is the immutable record of one submitted game.
type Session struct {
	ID         string     `json:"id"`
	PlayerName string     `json:"playerName"`
	PlayerID   string     `json:"playerId"`
	Result     GameResult `json:"result"`
	Amount     float64    `json:"amount"`
	GameType   string     `json:"gameType"`
	Date       time.Time  `json:"date"`
	CreatedAt  time.Time  `json:"createdAt"`
}

func NewSession(player *Player, game *Game, signedAmount float64, now time.Time) *Session {
	return &Session{
		ID:         GenerateSessionID(),
		PlayerName: player.Name,
		PlayerID:   player.ID,
		Result:     game.Result,
		Amount:     signedAmount,
		GameType:   game.GameType,
		Date:       now,
		CreatedAt:  now,
	}
}
