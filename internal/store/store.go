// Package store defines the persistence contract of the dispute core and
// its two implementations: an in-memory arena used by tests and local runs,
// and a MongoDB store.
package store

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dispute-arena/internal/models"
)

// SortKey orders leaderboard listings. Every key sorts descending.
type SortKey string

const (
	SortRank          SortKey = "rank" // Elo descending
	SortWins          SortKey = "wins"
	SortWinRate       SortKey = "win_rate"
	SortEloRating     SortKey = "elo_rating"
	SortGlickoRating  SortKey = "glicko_rating"
	SortCurrentStreak SortKey = "current_streak"
)

// ParseSortKey maps unknown or empty keys to SortRank.
func ParseSortKey(s string) SortKey {
	switch k := SortKey(s); k {
	case SortWins, SortWinRate, SortEloRating, SortGlickoRating, SortCurrentStreak:
		return k
	default:
		return SortRank
	}
}

// DisputeFilter selects disputes for listing. Zero fields do not filter.
type DisputeFilter struct {
	ParticipantID string
	Status        models.DisputeStatus
	GameID        string
	Skip          int
	Limit         int
}

// Store persists disputes and the standings derived from them.
type Store interface {
	// CreateDispute assigns an id when unset and stores d at version 1.
	CreateDispute(ctx context.Context, d *models.Dispute) error
	GetDispute(ctx context.Context, id primitive.ObjectID) (*models.Dispute, error)
	// UpdateDispute writes d only if the stored version equals d.Version and
	// then advances d.Version. A concurrent writer yields models.ErrConflict.
	UpdateDispute(ctx context.Context, d *models.Dispute) error
	// CompleteDispute performs the UpdateDispute write and appends the match
	// history row as one unit. A second history row for the dispute yields
	// models.ErrDuplicate.
	CompleteDispute(ctx context.Context, d *models.Dispute, history *models.MatchHistory) error
	ListDisputes(ctx context.Context, filter DisputeFilter) ([]*models.Dispute, int64, error)
	// ListPendingProjections returns completed disputes whose leaderboard
	// delta is still unapplied and that completed before the cutoff.
	ListPendingProjections(ctx context.Context, completedBefore time.Time, limit int) ([]*models.Dispute, error)
	GetMatchHistory(ctx context.Context, disputeID primitive.ObjectID) ([]*models.MatchHistory, error)

	// RunProjection runs fn as one atomic unit. Nothing fn wrote is kept if
	// it returns an error.
	RunProjection(ctx context.Context, fn func(ctx context.Context, tx ProjectionTx) error) error

	// ListLeaderboard returns a game's rows in sort order. limit <= 0 means all.
	ListLeaderboard(ctx context.Context, gameID string, sort SortKey, skip, limit int) ([]*models.LeaderboardEntry, error)
	ListUserEntries(ctx context.Context, userID string) ([]*models.LeaderboardEntry, error)
	ListArgumentHistory(ctx context.Context, gameID string) ([]*models.ArgumentHistory, error)
}

// ProjectionTx is the view of the store inside RunProjection.
type ProjectionTx interface {
	GetDispute(ctx context.Context, id primitive.ObjectID) (*models.Dispute, error)
	// GetLeaderboardEntry returns models.ErrNotFound when the row does not exist yet.
	GetLeaderboardEntry(ctx context.Context, userID, gameID string) (*models.LeaderboardEntry, error)
	SaveLeaderboardEntry(ctx context.Context, e *models.LeaderboardEntry) error
	// GetArgumentHistory returns models.ErrNotFound when the row does not exist yet.
	GetArgumentHistory(ctx context.Context, argumentName, gameID string) (*models.ArgumentHistory, error)
	SaveArgumentHistory(ctx context.Context, a *models.ArgumentHistory) error
	// RecordResult adds one match to a player's global totals and returns the
	// new totals. Unknown users yield models.ErrNotFound.
	RecordResult(ctx context.Context, userID string, won bool, earned models.Money) (models.PlayerTotals, error)
	// MarkProjected flips the dispute to ProjectionApplied under the version guard.
	MarkProjected(ctx context.Context, d *models.Dispute) error
}

// UserDirectory resolves the accounts the dispute core refers to.
type UserDirectory interface {
	// ResolveUser finds a user by id, email or display name and returns the
	// user id. An unknown identifier yields models.ErrNotFound.
	ResolveUser(ctx context.Context, identifier string) (string, error)
}
