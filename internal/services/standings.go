package services

import (
	"context"
	"math"

	"go.uber.org/zap"

	"dispute-arena/internal/models"
	"dispute-arena/internal/rating"
	"dispute-arena/internal/store"
)

// Standings answers read-only leaderboard and argument-history queries.
type Standings struct {
	store  store.Store
	logger *zap.Logger
}

func NewStandings(st store.Store, logger *zap.Logger) *Standings {
	return &Standings{store: st, logger: logger.With(zap.String("component", "standings"))}
}

// GetLeaderboard returns one page of a game's leaderboard. Unknown sort keys
// fall back to rank. Rank is the 1-based position in the requested order.
func (s *Standings) GetLeaderboard(ctx context.Context, gameID, sortKey string, skip, limit int) ([]*models.LeaderboardEntry, error) {
	if skip < 0 {
		skip = 0
	}
	rows, err := s.store.ListLeaderboard(ctx, gameID, store.ParseSortKey(sortKey), skip, clampLimit(limit, 100, 500))
	if err != nil {
		return nil, err
	}
	for i, e := range rows {
		e.Rank = skip + i + 1
		e.Tier = rating.TierFor(e.EloRating)
	}
	return rows, nil
}

func (s *Standings) GetArgumentHistory(ctx context.Context, gameID string) ([]*models.ArgumentHistory, error) {
	return s.store.ListArgumentHistory(ctx, gameID)
}

func (s *Standings) GetGameStats(ctx context.Context, gameID string) (*models.GameStats, error) {
	rows, err := s.store.ListLeaderboard(ctx, gameID, store.SortRank, 0, 0)
	if err != nil {
		return nil, err
	}
	stats := &models.GameStats{GameID: gameID, TotalPlayers: len(rows)}
	if len(rows) == 0 {
		return stats, nil
	}
	var winRates float64
	for _, e := range rows {
		winRates += e.WinRate
		stats.TotalMatches += e.Wins + e.Losses
	}
	stats.AverageWinRate = round2(winRates / float64(len(rows)))
	return stats, nil
}

// GetUserStanding returns a player's rows across games and their aggregates.
func (s *Standings) GetUserStanding(ctx context.Context, userID string) (*models.UserStanding, error) {
	rows, err := s.store.ListUserEntries(ctx, userID)
	if err != nil {
		return nil, err
	}
	standing := &models.UserStanding{UserID: userID, Entries: rows}
	for _, e := range rows {
		e.Tier = rating.TierFor(e.EloRating)
		a := &standing.Achievements
		a.TotalWins += e.Wins
		a.TotalLosses += e.Losses
		a.MaxElo = max(a.MaxElo, e.EloRating)
		a.MaxStreak = max(a.MaxStreak, e.CurrentStreak)
	}
	if n := standing.Achievements.TotalWins + standing.Achievements.TotalLosses; n > 0 {
		standing.Achievements.WinRate = round2(float64(standing.Achievements.TotalWins) / float64(n) * 100)
	}
	return standing, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
