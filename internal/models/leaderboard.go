package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dispute-arena/internal/rating"
)

// LeaderboardEntry is a player's standing in one game. Wins, Losses,
// TotalMatches and WinRate mirror the player's account-wide totals, so a
// player without an account record keeps them at zero while ratings move.
type LeaderboardEntry struct {
	ID               primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	UserID           string             `json:"userId" bson:"userId"`
	GameID           string             `json:"gameId" bson:"gameId"`
	Wins             int                `json:"wins" bson:"wins"`
	Losses           int                `json:"losses" bson:"losses"`
	TotalMatches     int                `json:"totalMatches" bson:"totalMatches"`
	WinRate          float64            `json:"winRate" bson:"winRate"` // percentage
	CurrentStreak    int                `json:"currentStreak" bson:"currentStreak"`
	LongestStreak    int                `json:"longestStreak" bson:"longestStreak"`
	EloRating        int                `json:"eloRating" bson:"eloRating"`
	GlickoRating     int                `json:"glickoRating" bson:"glickoRating"`
	GlickoDeviation  int                `json:"glickoRatingDeviation" bson:"glickoRatingDeviation"`
	GlickoVolatility float64            `json:"glickoVolatility" bson:"glickoVolatility"`
	CreatedAt        time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt" bson:"updatedAt"`

	// Computed on read
	Rank int         `json:"rank,omitempty" bson:"-"`
	Tier rating.Tier `json:"tier,omitempty" bson:"-"`
}

// NewLeaderboardEntry returns a fresh row with default ratings.
func NewLeaderboardEntry(userID, gameID string, now time.Time) *LeaderboardEntry {
	g := rating.NewGlicko()
	return &LeaderboardEntry{
		UserID:           userID,
		GameID:           gameID,
		EloRating:        rating.InitialRating,
		GlickoRating:     g.Rating,
		GlickoDeviation:  g.Deviation,
		GlickoVolatility: g.Volatility,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (e *LeaderboardEntry) Glicko() rating.Glicko {
	return rating.Glicko{Rating: e.GlickoRating, Deviation: e.GlickoDeviation, Volatility: e.GlickoVolatility}
}

func (e *LeaderboardEntry) SetGlicko(g rating.Glicko) {
	e.GlickoRating = g.Rating
	e.GlickoDeviation = g.Deviation
	e.GlickoVolatility = g.Volatility
}

// GameStats summarizes one game's leaderboard.
type GameStats struct {
	GameID         string  `json:"gameId"`
	TotalPlayers   int     `json:"totalPlayers"`
	AverageWinRate float64 `json:"averageWinRate"`
	TotalMatches   int     `json:"totalMatches"`
}

// Achievements are cross-game aggregates of a player's rows.
type Achievements struct {
	TotalWins   int     `json:"totalWins"`
	TotalLosses int     `json:"totalLosses"`
	WinRate     float64 `json:"winRate"`
	MaxElo      int     `json:"maxElo"`
	MaxStreak   int     `json:"maxStreak"`
}

type UserStanding struct {
	UserID       string              `json:"userId"`
	Entries      []*LeaderboardEntry `json:"entries"`
	Achievements Achievements        `json:"achievements"`
}
