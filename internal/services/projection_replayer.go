package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"dispute-arena/internal/store"
)

const projectionReplayLock = "projection_replay"

// ProjectionReplayer periodically re-applies completed disputes whose
// leaderboard projection never landed (crash, transient storage error).
// Apply is idempotent, so a replay racing a live completion is harmless.
type ProjectionReplayer struct {
	store      store.Store
	projector  *LeaderboardProjector
	locker     store.Locker
	holder     string
	interval   time.Duration
	staleAfter time.Duration
	batchSize  int
	logger     *zap.Logger
	now        func() time.Time
}

func NewProjectionReplayer(
	st store.Store,
	projector *LeaderboardProjector,
	locker store.Locker,
	interval, staleAfter time.Duration,
	batchSize int,
	logger *zap.Logger,
) *ProjectionReplayer {
	if interval <= 0 {
		interval = time.Minute
	}
	if batchSize <= 0 {
		batchSize = 100
	}
	return &ProjectionReplayer{
		store:      st,
		projector:  projector,
		locker:     locker,
		holder:     uuid.NewString(),
		interval:   interval,
		staleAfter: staleAfter,
		batchSize:  batchSize,
		logger:     logger.With(zap.String("component", "replayer")),
		now:        time.Now,
	}
}

// Run replays on every tick until ctx is cancelled.
func (r *ProjectionReplayer) Run(ctx context.Context) error {
	r.logger.Info("projection replayer started",
		zap.Duration("interval", r.interval),
		zap.Duration("staleAfter", r.staleAfter),
	)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("projection replayer stopped")
			return nil
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single replay pass and reports how many disputes were
// projected. It does nothing when another instance holds the lock.
func (r *ProjectionReplayer) RunOnce(ctx context.Context) int {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	if r.locker != nil {
		acquired, err := r.locker.TryAcquire(ctx, projectionReplayLock, r.holder, 5*time.Minute)
		if err != nil {
			r.logger.Warn("failed to acquire replay lock", zap.Error(err))
			return 0
		}
		if !acquired {
			return 0
		}
		defer func() {
			if err := r.locker.Release(context.WithoutCancel(ctx), projectionReplayLock, r.holder); err != nil {
				r.logger.Warn("failed to release replay lock", zap.Error(err))
			}
		}()
	}

	pending, err := r.store.ListPendingProjections(ctx, r.now().Add(-r.staleAfter), r.batchSize)
	if err != nil {
		r.logger.Error("failed to query pending projections", zap.Error(err))
		return 0
	}
	if len(pending) == 0 {
		return 0
	}

	r.logger.Info("replaying pending projections", zap.Int("count", len(pending)))

	applied := 0
	for _, d := range pending {
		// Apply logs its own failure context.
		if err := r.projector.Apply(ctx, d); err == nil {
			applied++
		}
	}
	return applied
}
