package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"dispute-arena/internal/models"
	"dispute-arena/internal/rating"
	"dispute-arena/internal/store"
)

// LeaderboardProjector applies a completed dispute to the per-game standings
// and the argument history, exactly once per dispute.
type LeaderboardProjector struct {
	store      store.Store
	calculator *rating.Calculator
	logger     *zap.Logger
	now        func() time.Time
}

func NewLeaderboardProjector(st store.Store, logger *zap.Logger) *LeaderboardProjector {
	return &LeaderboardProjector{
		store:      st,
		calculator: rating.NewCalculator(),
		logger:     logger.With(zap.String("component", "projector")),
		now:        time.Now,
	}
}

// Apply projects d inside one storage transaction. A dispute already
// projected is a no-op. Failures are logged with enough context to replay
// and returned wrapped in models.ErrProjectionFailure.
func (p *LeaderboardProjector) Apply(ctx context.Context, d *models.Dispute) error {
	err := p.store.RunProjection(ctx, func(ctx context.Context, tx store.ProjectionTx) error {
		return p.project(ctx, tx, d)
	})
	if err != nil {
		p.logger.Error("leaderboard projection failed",
			zap.String("disputeId", d.ID.Hex()),
			zap.String("challengerId", d.ChallengerID),
			zap.String("opponentId", d.Opponent()),
			zap.String("gameId", d.GameID),
			zap.Error(err),
		)
		return fmt.Errorf("%w: dispute %s: %v", models.ErrProjectionFailure, d.ID.Hex(), err)
	}
	return nil
}

func (p *LeaderboardProjector) project(ctx context.Context, tx store.ProjectionTx, d *models.Dispute) error {
	current, err := tx.GetDispute(ctx, d.ID)
	if err != nil {
		return err
	}
	if current.ProjectionStatus == models.ProjectionApplied {
		p.logger.Debug("projection already applied", zap.String("disputeId", d.ID.Hex()))
		return nil
	}
	if current.Status != models.DisputeStatusCompleted || current.WinnerID == "" || current.Opponent() == "" {
		return fmt.Errorf("dispute %s is not a completed two-player dispute: %w", d.ID.Hex(), models.ErrInvalidState)
	}

	now := p.now()
	challengerID, opponentID := current.ChallengerID, current.Opponent()

	// Both rows are read before either is modified so each rating
	// transition derives from the same snapshot.
	challenger, err := p.entryFor(ctx, tx, challengerID, current.GameID, now)
	if err != nil {
		return err
	}
	opponent, err := p.entryFor(ctx, tx, opponentID, current.GameID, now)
	if err != nil {
		return err
	}

	challengerResult := rating.Loss
	if current.WinnerID == challengerID {
		challengerResult = rating.Win
	}

	if err := p.applyTotals(ctx, tx, challenger, challengerResult == rating.Win, current.EntryFee); err != nil {
		return err
	}
	if err := p.applyTotals(ctx, tx, opponent, challengerResult == rating.Loss, current.EntryFee); err != nil {
		return err
	}

	challenger.EloRating, opponent.EloRating = p.calculator.CalculateElo(challenger.EloRating, opponent.EloRating, challengerResult)

	cg, og := p.calculator.CalculateGlicko2(challenger.Glicko(), opponent.Glicko(), challengerResult)
	challenger.SetGlicko(cg)
	opponent.SetGlicko(og)

	if challengerResult == rating.Win {
		advanceStreak(challenger, opponent)
	} else {
		advanceStreak(opponent, challenger)
	}

	challenger.UpdatedAt = now
	opponent.UpdatedAt = now
	if err := tx.SaveLeaderboardEntry(ctx, challenger); err != nil {
		return err
	}
	if err := tx.SaveLeaderboardEntry(ctx, opponent); err != nil {
		return err
	}

	if err := p.applyArgument(ctx, tx, current, challengerResult == rating.Win, now); err != nil {
		return err
	}

	if err := tx.MarkProjected(ctx, current); err != nil {
		return err
	}

	p.logger.Info("leaderboard updated",
		zap.String("disputeId", d.ID.Hex()),
		zap.String("gameId", current.GameID),
		zap.Int("challengerElo", challenger.EloRating),
		zap.Int("opponentElo", opponent.EloRating),
	)
	return nil
}

func (p *LeaderboardProjector) entryFor(ctx context.Context, tx store.ProjectionTx, userID, gameID string, now time.Time) (*models.LeaderboardEntry, error) {
	e, err := tx.GetLeaderboardEntry(ctx, userID, gameID)
	if errors.Is(err, models.ErrNotFound) {
		return models.NewLeaderboardEntry(userID, gameID, now), nil
	}
	return e, err
}

// applyTotals advances the player's global totals and copies them onto the
// row. Players without an account record keep their row counters as is.
func (p *LeaderboardProjector) applyTotals(ctx context.Context, tx store.ProjectionTx, e *models.LeaderboardEntry, won bool, fee models.Money) error {
	earned := models.Money{}
	if won {
		earned = fee
	}
	totals, err := tx.RecordResult(ctx, e.UserID, won, earned)
	if errors.Is(err, models.ErrNotFound) {
		p.logger.Warn("no account totals for player", zap.String("userId", e.UserID))
		return nil
	}
	if err != nil {
		return err
	}

	e.Wins = totals.Wins
	e.Losses = totals.Losses
	e.TotalMatches = totals.MatchesPlayed
	if totals.MatchesPlayed > 0 {
		e.WinRate = totals.WinRate()
	}
	return nil
}

func advanceStreak(winner, loser *models.LeaderboardEntry) {
	winner.CurrentStreak++
	if winner.CurrentStreak > winner.LongestStreak {
		winner.LongestStreak = winner.CurrentStreak
	}
	loser.CurrentStreak = 0
}

func (p *LeaderboardProjector) applyArgument(ctx context.Context, tx store.ProjectionTx, d *models.Dispute, challengerWon bool, now time.Time) error {
	a, err := tx.GetArgumentHistory(ctx, d.Title, d.GameID)
	if errors.Is(err, models.ErrNotFound) {
		a = &models.ArgumentHistory{
			ArgumentName: d.Title,
			GameID:       d.GameID,
			SideAName:    d.ChallengerSide,
			SideBName:    d.OpponentSide,
			CreatedAt:    now,
		}
	} else if err != nil {
		return err
	}

	if challengerWon {
		a.SideAWins++
	} else {
		a.SideBWins++
	}
	a.TotalMatches++
	a.UpdatedAt = now
	return tx.SaveArgumentHistory(ctx, a)
}
