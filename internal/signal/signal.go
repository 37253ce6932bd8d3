// Package signal forwards completed-dispute outcomes to the Truth Archive
// indexer. Delivery is best-effort: at most once, never retried, and
// failures only reach the log.
package signal

import (
	"context"
	"time"

	"github.com/google/uuid"

	"dispute-arena/internal/models"
)

const TypePlayfulSignal = "PlayfulSignal"

type MatchMeta struct {
	GameType               string    `json:"gameType"`
	VerificationConfidence float64   `json:"verificationConfidence"`
	VerificationMethod     string    `json:"verificationMethod"`
	DisputeID              string    `json:"disputeId"`
	Timestamp              time.Time `json:"timestamp"`
}

// Outcome is the payload posted for a claim-linked dispute.
type Outcome struct {
	Type           string    `json:"type"`
	SignalID       string    `json:"signalId"`
	ClaimID        string    `json:"claimId"`
	ArgumentID     string    `json:"argumentId"`
	WinnerSide     string    `json:"winnerSide"`
	SignalStrength float64   `json:"signalStrength"`
	MatchMeta      MatchMeta `json:"matchMeta"`
}

// OutcomeFor builds the signal for a completed dispute that carries a claim link.
func OutcomeFor(d *models.Dispute, now time.Time) Outcome {
	confidence := 0.5
	method := ""
	if d.Verification != nil {
		method = d.Verification.Method
		if d.Verification.Verified {
			confidence = 1.0
		}
	}
	return Outcome{
		Type:           TypePlayfulSignal,
		SignalID:       uuid.NewString(),
		ClaimID:        d.ClaimID,
		ArgumentID:     d.ArgumentID(),
		WinnerSide:     d.SideOf(d.WinnerID),
		SignalStrength: ClampStrength(d.SignalStrength),
		MatchMeta: MatchMeta{
			GameType:               string(d.GameType),
			VerificationConfidence: confidence,
			VerificationMethod:     method,
			DisputeID:              d.ID.Hex(),
			Timestamp:              now,
		},
	}
}

// ClampStrength bounds s to [0, models.MaxSignalStrength].
func ClampStrength(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > models.MaxSignalStrength {
		return models.MaxSignalStrength
	}
	return s
}

// Emitter delivers one outcome to the indexer.
type Emitter interface {
	EmitOutcome(ctx context.Context, o Outcome) error
}

// Hook is what the dispute core calls after commit. Neither method blocks.
type Hook interface {
	Dispatch(o Outcome)
	Linked(claimID, argumentID string)
}
