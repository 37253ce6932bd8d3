package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dispute-arena/internal/verification"
)

type DisputeStatus string

const (
	DisputeStatusPending   DisputeStatus = "PENDING"
	DisputeStatusConfirmed DisputeStatus = "CONFIRMED"
	// DisputeStatusInProgress is reserved. No transition produces or consumes it.
	DisputeStatusInProgress DisputeStatus = "IN_PROGRESS"
	DisputeStatusCompleted  DisputeStatus = "COMPLETED"
	DisputeStatusCancelled  DisputeStatus = "CANCELLED"
	// DisputeStatusDisputed is only reachable through manual moderator override.
	DisputeStatusDisputed DisputeStatus = "DISPUTED"
)

type VerificationStatus string

const (
	VerificationVerified VerificationStatus = "verified"
	VerificationPending  VerificationStatus = "pending"
)

// ProjectionStatus tracks whether a completed dispute's leaderboard delta has
// been applied. It doubles as the dedupe key for replays.
type ProjectionStatus string

const (
	ProjectionPending ProjectionStatus = "pending"
	ProjectionApplied ProjectionStatus = "applied"
)

// MaxSignalStrength caps the weight a dispute may lend to a linked claim.
const MaxSignalStrength = 0.02

type PaymentMethod string

const (
	PaymentMethodCard   PaymentMethod = "card"
	PaymentMethodCrypto PaymentMethod = "crypto"
)

type Dispute struct {
	ID          primitive.ObjectID    `json:"id" bson:"_id,omitempty"`
	Title       string                `json:"title" bson:"title"`
	Description string                `json:"description,omitempty" bson:"description,omitempty"`
	GameID      string                `json:"gameId" bson:"gameId"`
	GameType    verification.GameType `json:"gameType" bson:"gameType"`

	ChallengerID   string  `json:"challengerId" bson:"challengerId"`
	OpponentID     *string `json:"opponentId,omitempty" bson:"opponentId,omitempty"` // nil until the invitee registers
	ChallengerSide string  `json:"challengerSide" bson:"challengerSide"`
	OpponentSide   string  `json:"opponentSide" bson:"opponentSide"`

	EntryFee      Money         `json:"entryFee" bson:"entryFee"`
	Currency      string        `json:"currency" bson:"currency"`
	PaymentMethod PaymentMethod `json:"paymentMethod" bson:"paymentMethod"`

	Status DisputeStatus `json:"status" bson:"status"`

	WinnerID           string               `json:"winnerId,omitempty" bson:"winnerId,omitempty"`
	Score              string               `json:"score,omitempty" bson:"score,omitempty"`
	ProofRef           string               `json:"proofRef,omitempty" bson:"proofRef,omitempty"`
	VerificationStatus VerificationStatus   `json:"verificationStatus,omitempty" bson:"verificationStatus,omitempty"`
	Verification       *verification.Result `json:"verification,omitempty" bson:"verification,omitempty"`

	// Payout bookkeeping. PayoutProcessed is set only by the payment collaborator.
	PayoutProcessed   bool       `json:"payoutProcessed" bson:"payoutProcessed"`
	PayoutRequestedAt *time.Time `json:"payoutRequestedAt,omitempty" bson:"payoutRequestedAt,omitempty"`
	PayoutProofRef    string     `json:"payoutProofRef,omitempty" bson:"payoutProofRef,omitempty"`
	PayoutTxID        string     `json:"payoutTxId,omitempty" bson:"payoutTxId,omitempty"`

	IsStreamed bool   `json:"isStreamed" bson:"isStreamed"`
	StreamURL  string `json:"streamUrl,omitempty" bson:"streamUrl,omitempty"`

	ClaimID        string  `json:"claimId,omitempty" bson:"claimId,omitempty"`
	SignalStrength float64 `json:"signalStrength" bson:"signalStrength"`

	ProjectionStatus ProjectionStatus `json:"projectionStatus,omitempty" bson:"projectionStatus,omitempty"`
	Version          int64            `json:"-" bson:"version"`

	CreatedAt   time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt" bson:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
}

// Opponent returns the opponent id, or "" while the invite is unresolved.
func (d *Dispute) Opponent() string {
	if d.OpponentID == nil {
		return ""
	}
	return *d.OpponentID
}

func (d *Dispute) IsParticipant(userID string) bool {
	if userID == "" {
		return false
	}
	return userID == d.ChallengerID || userID == d.Opponent()
}

// OtherParticipant returns the participant that is not userID.
func (d *Dispute) OtherParticipant(userID string) string {
	if userID == d.ChallengerID {
		return d.Opponent()
	}
	return d.ChallengerID
}

// SideOf returns the side label userID argued.
func (d *Dispute) SideOf(userID string) string {
	if userID == d.ChallengerID {
		return d.ChallengerSide
	}
	return d.OpponentSide
}

// ArgumentID is the identifier external indexers use for this dispute's argument.
func (d *Dispute) ArgumentID() string {
	return "dispute_" + d.ID.Hex()
}

// Clone returns a deep copy safe to mutate independently.
func (d *Dispute) Clone() *Dispute {
	c := *d
	if d.OpponentID != nil {
		opp := *d.OpponentID
		c.OpponentID = &opp
	}
	if d.Verification != nil {
		v := *d.Verification
		c.Verification = &v
	}
	if d.PayoutRequestedAt != nil {
		t := *d.PayoutRequestedAt
		c.PayoutRequestedAt = &t
	}
	if d.CompletedAt != nil {
		t := *d.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
