package models

import "time"

// Player is the running aggregate for one player name.
// TotalWinnings always equals TotalWon - TotalLost and Wins + Losses always
// equals GamesPlayed.
type Player struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	TotalWinnings float64   `json:"totalWinnings"`
	GamesPlayed   int       `json:"gamesPlayed"`
	Wins          int       `json:"wins"`
	Losses        int       `json:"losses"`
	BiggestWin    float64   `json:"biggestWin"`
	TotalWon      float64   `json:"totalWon"`
	TotalLost     float64   `json:"totalLost"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func NewPlayer(name string, now time.Time) *Player {
	return &Player{
		ID:        GeneratePlayerID(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// ApplyGame folds one game into the aggregate and returns the signed amount
// recorded on the session.
func (p *Player) ApplyGame(result GameResult, amount float64, now time.Time) float64 {
	signed := -amount
	if result == ResultWin {
		signed = amount
	}

	p.GamesPlayed++
	p.UpdatedAt = now

	if result == ResultWin {
		p.Wins++
		p.TotalWon += amount
		if amount > p.BiggestWin {
			p.BiggestWin = amount
		}
	} else {
		p.Losses++
		p.TotalLost += amount
	}

	// Recomputed, not accumulated: a running sum rounds differently.
	p.TotalWinnings = p.TotalWon - p.TotalLost

	return signed
}

// WinRate is the percentage of games won, 0 when no games were played.
func (p *Player) WinRate() float64 {
	if p.GamesPlayed == 0 {
		return 0
	}
	return float64(p.Wins) / float64(p.GamesPlayed) * 100
}

// AvgWin is the mean amount of a winning game, 0 when there are no wins.
func (p *Player) AvgWin() float64 {
	if p.Wins == 0 {
		return 0
	}
	return p.TotalWon / float64(p.Wins)
}
