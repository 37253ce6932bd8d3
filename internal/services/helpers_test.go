package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dispute-arena/internal/models"
	"dispute-arena/internal/signal"
	"dispute-arena/internal/store"
	"dispute-arena/internal/verification"
)

type recordingHook struct {
	mu       sync.Mutex
	outcomes []signal.Outcome
	links    []string
}

func (h *recordingHook) Dispatch(o signal.Outcome) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.outcomes = append(h.outcomes, o)
}

func (h *recordingHook) Linked(claimID, _ string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.links = append(h.links, claimID)
}

func (h *recordingHook) dispatched() []signal.Outcome {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]signal.Outcome(nil), h.outcomes...)
}

type recordingGateway struct {
	requests chan PayoutRequest
}

func (g *recordingGateway) RequestPayout(_ context.Context, req PayoutRequest) error {
	g.requests <- req
	return nil
}

// fixedVerifier returns the same verdict for every submission.
type fixedVerifier struct {
	result verification.Result
}

func (v fixedVerifier) Verify(verification.GameType, verification.MatchData, []verification.ProofFile) verification.Result {
	return v.result
}

// flakyStore fails every projection while broken is set.
type flakyStore struct {
	store.Store
	broken atomic.Bool
}

func (f *flakyStore) RunProjection(ctx context.Context, fn func(ctx context.Context, tx store.ProjectionTx) error) error {
	if f.broken.Load() {
		return errors.New("leaderboard collection unavailable")
	}
	return f.Store.RunProjection(ctx, fn)
}

type fixture struct {
	mem       *store.MemoryStore
	svc       *DisputeService
	projector *LeaderboardProjector
	standings *Standings
	hook      *recordingHook
	payouts   *recordingGateway
}

func newFixture(t *testing.T, st store.Store, mem *store.MemoryStore, logger *zap.Logger) *fixture {
	t.Helper()
	if logger == nil {
		logger = zap.NewNop()
	}
	mem.AddUser("u1", "one@example.com", "PlayerOne")
	mem.AddUser("u2", "two@example.com", "PlayerTwo")
	mem.AddUser("u3", "three@example.com", "PlayerThree")

	f := &fixture{
		mem:       mem,
		projector: NewLeaderboardProjector(st, logger),
		standings: NewStandings(st, logger),
		hook:      &recordingHook{},
		payouts:   &recordingGateway{requests: make(chan PayoutRequest, 4)},
	}
	f.svc = NewDisputeService(DisputeDeps{
		Store:     st,
		Users:     mem,
		Verifier:  verification.NewEngine(),
		Projector: f.projector,
		Signals:   f.hook,
		Payouts:   f.payouts,
		Logger:    logger,
	})
	return f
}

func newMemoryFixture(t *testing.T) *fixture {
	mem := store.NewMemoryStore()
	return newFixture(t, mem, mem, nil)
}

func tenUSD() models.Money {
	return models.NewMoney(decimal.NewFromInt(10))
}

func defaultTerms() CreateDisputeInput {
	return CreateDisputeInput{
		Title:              "Best opening",
		GameID:             "game-1",
		GameType:           "manual",
		ChallengerSide:     "aggressive",
		OpponentSide:       "defensive",
		EntryFee:           tenUSD(),
		Currency:           "usd",
		OpponentIdentifier: "u2",
	}
}

func manualResult(winner string) SubmitResultInput {
	return SubmitResultInput{
		WinnerID: winner,
		Score:    "2-0",
		MatchData: verification.MatchData{
			"duration": 1200,
		},
	}
}

func (f *fixture) confirmed(t *testing.T, challenger, opponent string) *models.Dispute {
	t.Helper()
	ctx := context.Background()
	terms := defaultTerms()
	terms.OpponentIdentifier = opponent
	d, err := f.svc.Create(ctx, challenger, terms)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := f.svc.Confirm(ctx, d.ID, opponent); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	return d
}

func (f *fixture) play(t *testing.T, challenger, opponent, winner string) *models.Dispute {
	t.Helper()
	d := f.confirmed(t, challenger, opponent)
	done, err := f.svc.SubmitResult(context.Background(), d.ID, challenger, manualResult(winner))
	if err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
	return done
}

func (f *fixture) entry(t *testing.T, userID string) *models.LeaderboardEntry {
	t.Helper()
	rows, err := f.mem.ListUserEntries(context.Background(), userID)
	if err != nil {
		t.Fatalf("ListUserEntries: %v", err)
	}
	for _, e := range rows {
		if e.GameID == "game-1" {
			return e
		}
	}
	t.Fatalf("no game-1 leaderboard row for %s", userID)
	return nil
}

func (f *fixture) status(t *testing.T, id primitive.ObjectID) models.DisputeStatus {
	t.Helper()
	d, err := f.mem.GetDispute(context.Background(), id)
	if err != nil {
		t.Fatalf("GetDispute: %v", err)
	}
	return d.Status
}

func later() time.Time {
	return time.Now().Add(time.Hour)
}
