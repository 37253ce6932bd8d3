package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MatchHistory is the append-only record of a completed dispute. One per dispute.
type MatchHistory struct {
	ID         primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	DisputeID  primitive.ObjectID `json:"disputeId" bson:"disputeId"`
	GameID     string             `json:"gameId" bson:"gameId"`
	WinnerID   string             `json:"winnerId" bson:"winnerId"`
	LoserID    string             `json:"loserId" bson:"loserId"`
	Score      string             `json:"score" bson:"score"`
	ProofRefs  []string           `json:"proofRefs,omitempty" bson:"proofRefs,omitempty"`
	Notes      string             `json:"notes,omitempty" bson:"notes,omitempty"`
	EntryFee   Money              `json:"entryFee" bson:"entryFee"`
	Currency   string             `json:"currency" bson:"currency"`
	Verified   bool               `json:"verified" bson:"verified"`
	Confidence float64            `json:"confidence" bson:"confidence"`
	CreatedAt  time.Time          `json:"createdAt" bson:"createdAt"`
}

// ArgumentHistory aggregates outcomes per (argument title, game).
type ArgumentHistory struct {
	ID           primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	ArgumentName string             `json:"argumentName" bson:"argumentName"`
	GameID       string             `json:"gameId" bson:"gameId"`
	SideAName    string             `json:"sideAName" bson:"sideAName"`
	SideBName    string             `json:"sideBName" bson:"sideBName"`
	SideAWins    int                `json:"sideAWins" bson:"sideAWins"`
	SideBWins    int                `json:"sideBWins" bson:"sideBWins"`
	TotalMatches int                `json:"totalMatches" bson:"totalMatches"`
	CreatedAt    time.Time          `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time          `json:"updatedAt" bson:"updatedAt"`
}
