package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dispute-arena/internal/models"
	"dispute-arena/internal/store"
)

func TestStreakLaw(t *testing.T) {
	f := newMemoryFixture(t)

	winners := []string{"u1", "u1", "u2", "u1", "u1", "u1", "u2", "u2", "u1"}
	current := map[string]int{}
	longest := map[string]int{}

	for i, w := range winners {
		challenger, opponent := "u1", "u2"
		if i%2 == 1 {
			challenger, opponent = "u2", "u1"
		}
		f.play(t, challenger, opponent, w)

		loser := "u2"
		if w == "u2" {
			loser = "u1"
		}
		current[w]++
		longest[w] = max(longest[w], current[w])
		current[loser] = 0

		for _, u := range []string{"u1", "u2"} {
			e := f.entry(t, u)
			if e.CurrentStreak != current[u] || e.LongestStreak != longest[u] {
				t.Fatalf("after match %d, %s streak=%d longest=%d, want %d/%d",
					i+1, u, e.CurrentStreak, e.LongestStreak, current[u], longest[u])
			}
		}
	}

	e := f.entry(t, "u1")
	if e.Wins != 6 || e.Losses != 3 || e.TotalMatches != 9 {
		t.Fatalf("u1 counters = %+v", e)
	}
	if e.WinRate < 66.66 || e.WinRate > 66.67 {
		t.Fatalf("u1 win rate = %v", e.WinRate)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	d := f.play(t, "u1", "u2", "u1")
	before := f.entry(t, "u1")

	if err := f.projector.Apply(ctx, d); err != nil {
		t.Fatalf("second Apply: %v", err)
	}
	after := f.entry(t, "u1")
	if after.EloRating != before.EloRating || after.Wins != before.Wins || after.CurrentStreak != before.CurrentStreak {
		t.Fatalf("replayed projection changed the row: %+v -> %+v", before, after)
	}
	args, _ := f.standings.GetArgumentHistory(ctx, "game-1")
	if args[0].TotalMatches != 1 {
		t.Fatalf("argument history counted twice: %+v", args[0])
	}
}

func TestApplyUsesPreUpdateSnapshot(t *testing.T) {
	f := newMemoryFixture(t)

	// Lift u1 to 1016 so the next game is between unequal ratings.
	f.play(t, "u1", "u2", "u1")
	f.play(t, "u1", "u3", "u3")

	u1 := f.entry(t, "u1")
	u3 := f.entry(t, "u3")
	// 1016 vs 1000, u3 wins: expected(u1)=0.523, so u1 loses 17 and u3 gains 17.
	if u1.EloRating != 999 || u3.EloRating != 1017 {
		t.Fatalf("elo after upset = %d / %d, want 999 / 1017", u1.EloRating, u3.EloRating)
	}
}

func TestProjectionFailureIsLoggedAndReplayed(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core)

	mem := store.NewMemoryStore()
	flaky := &flakyStore{Store: mem}
	f := newFixture(t, flaky, mem, logger)
	ctx := context.Background()

	d := f.confirmed(t, "u1", "u2")
	flaky.broken.Store(true)

	done, err := f.svc.SubmitResult(ctx, d.ID, "u1", manualResult("u1"))
	if err != nil {
		t.Fatalf("projection failure must not surface: %v", err)
	}
	if done.Status != models.DisputeStatusCompleted || done.ProjectionStatus != models.ProjectionPending {
		t.Fatalf("dispute = status %s projection %s", done.Status, done.ProjectionStatus)
	}
	if rows, _ := mem.ListUserEntries(ctx, "u1"); len(rows) != 0 {
		t.Fatalf("failed projection left rows behind: %+v", rows)
	}

	failures := logs.FilterMessage("leaderboard projection failed").All()
	if len(failures) != 1 {
		t.Fatalf("expected one projection failure log, got %d", len(failures))
	}
	fields := failures[0].ContextMap()
	for key, want := range map[string]string{
		"disputeId":    d.ID.Hex(),
		"challengerId": "u1",
		"opponentId":   "u2",
		"gameId":       "game-1",
	} {
		if fields[key] != want {
			t.Errorf("log field %s = %v, want %s", key, fields[key], want)
		}
	}

	replayer := NewProjectionReplayer(flaky, f.projector, store.NewLocalLocker(), 0, 0, 10, logger)
	replayer.now = later

	if n := replayer.RunOnce(ctx); n != 0 {
		t.Fatalf("replay while storage is down applied %d", n)
	}

	flaky.broken.Store(false)
	if n := replayer.RunOnce(ctx); n != 1 {
		t.Fatalf("replay applied %d, want 1", n)
	}
	if e := f.entry(t, "u1"); e.EloRating != 1016 || e.Wins != 1 {
		t.Fatalf("replayed row = %+v", e)
	}
	if n := replayer.RunOnce(ctx); n != 0 {
		t.Fatalf("nothing should remain pending, replayed %d", n)
	}
}

func TestReplayerRespectsLock(t *testing.T) {
	f := newMemoryFixture(t)
	ctx := context.Background()

	locker := store.NewLocalLocker()
	if ok, _ := locker.TryAcquire(ctx, projectionReplayLock, "other-instance", time.Hour); !ok {
		t.Fatal("could not pre-acquire lock")
	}

	r := NewProjectionReplayer(f.mem, f.projector, locker, 0, 0, 10, zap.NewNop())
	r.now = later
	if n := r.RunOnce(ctx); n != 0 {
		t.Fatalf("replayer ran without the lock")
	}
}

func TestApplyRejectsIncompleteDispute(t *testing.T) {
	f := newMemoryFixture(t)
	d := f.confirmed(t, "u1", "u2")

	err := f.projector.Apply(context.Background(), d)
	if !errors.Is(err, models.ErrProjectionFailure) {
		t.Fatalf("Apply on confirmed dispute = %v", err)
	}
}
