package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// User is the slice of the account record the dispute core reads: identity
// for opponent resolution and the global running totals.
type User struct {
	ID          primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Email       string             `json:"email" bson:"email"`
	DisplayName string             `json:"displayName" bson:"displayName"`
	Totals      PlayerTotals       `json:"totals" bson:"totals"`
	CreatedAt   time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time          `json:"updatedAt" bson:"updatedAt"`
}

// PlayerTotals are a player's all-games match counters.
type PlayerTotals struct {
	Wins          int   `json:"totalWins" bson:"totalWins"`
	Losses        int   `json:"totalLosses" bson:"totalLosses"`
	MatchesPlayed int   `json:"totalMatchesPlayed" bson:"totalMatchesPlayed"`
	Earned        Money `json:"totalEarned" bson:"totalEarned"`
}

// WinRate is the win percentage, 0 before any match.
func (t PlayerTotals) WinRate() float64 {
	if t.MatchesPlayed == 0 {
		return 0
	}
	return float64(t.Wins) / float64(t.MatchesPlayed) * 100
}
