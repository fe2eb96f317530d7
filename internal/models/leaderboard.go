package models

import (
	"sort"
	"time"
)

type LeaderboardEntry struct {
	Player
	Rank    int     `json:"rank"`
	WinRate float64 `json:"winRate"`
	AvgWin  float64 `json:"avgWin"`
}

// BuildLeaderboard ranks players by total winnings, highest first. Equal
// winnings are ordered by name so the result only depends on the input set.
// UpdatedAt on every entry is set to now.
func BuildLeaderboard(players []*Player, now time.Time) []LeaderboardEntry {
	sorted := make([]*Player, 0, len(players))
	for _, p := range players {
		if p != nil {
			sorted = append(sorted, p)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].TotalWinnings != sorted[j].TotalWinnings {
			return sorted[i].TotalWinnings > sorted[j].TotalWinnings
		}
		return sorted[i].Name < sorted[j].Name
	})

	entries := make([]LeaderboardEntry, len(sorted))
	for i, p := range sorted {
		entry := LeaderboardEntry{
			Player:  *p,
			Rank:    i + 1,
			WinRate: p.WinRate(),
			AvgWin:  p.AvgWin(),
		}
		entry.UpdatedAt = now
		entries[i] = entry
	}

	return entries
}

// Summary holds the totals shown above the tables.
type Summary struct {
	TotalGames   int     `json:"totalGames"`
	TotalPlayers int     `json:"totalPlayers"`
	BiggestWin   float64 `json:"biggestWin"`
	AvgPot       float64 `json:"avgPot"`
}

// Summarize derives the totals from player aggregates. AvgPot is the mean
// absolute session amount, accumulated per player so it stays finite even
// when the summed volume would not be.
func Summarize(players []*Player) Summary {
	var s Summary

	for _, p := range players {
		if p == nil {
			continue
		}
		s.TotalPlayers++
		s.TotalGames += p.GamesPlayed
		if p.BiggestWin > s.BiggestWin {
			s.BiggestWin = p.BiggestWin
		}
	}

	if s.TotalGames == 0 {
		return s
	}

	games := float64(s.TotalGames)
	for _, p := range players {
		if p == nil {
			continue
		}
		s.AvgPot += p.TotalWon/games + p.TotalLost/games
	}

	return s
}
