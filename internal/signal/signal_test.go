package signal

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"dispute-arena/internal/models"
	"dispute-arena/internal/verification"
)

func completedDispute() *models.Dispute {
	opp := "u2"
	return &models.Dispute{
		ID:             primitive.NewObjectID(),
		GameType:       verification.GameSC2,
		ChallengerID:   "u1",
		OpponentID:     &opp,
		ChallengerSide: "zerg is overpowered",
		OpponentSide:   "zerg is fine",
		WinnerID:       "u2",
		ClaimID:        "claim-9",
		SignalStrength: 0.5,
		Verification:   &verification.Result{Verified: false, Method: "sc2_verification+manual"},
	}
}

func TestOutcomeFor(t *testing.T) {
	d := completedDispute()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	o := OutcomeFor(d, now)

	if o.Type != TypePlayfulSignal || o.SignalID == "" {
		t.Fatalf("type=%q signalId=%q", o.Type, o.SignalID)
	}
	if o.ArgumentID != "dispute_"+d.ID.Hex() {
		t.Errorf("argumentId = %q", o.ArgumentID)
	}
	if o.WinnerSide != "zerg is fine" {
		t.Errorf("winnerSide = %q", o.WinnerSide)
	}
	if o.SignalStrength != models.MaxSignalStrength {
		t.Errorf("signalStrength = %v, want capped %v", o.SignalStrength, models.MaxSignalStrength)
	}
	if o.MatchMeta.VerificationConfidence != 0.5 {
		t.Errorf("unverified result should report 0.5, got %v", o.MatchMeta.VerificationConfidence)
	}
	if o.MatchMeta.VerificationMethod != "sc2_verification+manual" || o.MatchMeta.DisputeID != d.ID.Hex() {
		t.Errorf("matchMeta = %+v", o.MatchMeta)
	}

	d.Verification.Verified = true
	if got := OutcomeFor(d, now).MatchMeta.VerificationConfidence; got != 1.0 {
		t.Errorf("verified result should report 1.0, got %v", got)
	}
}

func TestClampStrength(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0, 0},
		{0.01, 0.01},
		{0.02, 0.02},
		{3, 0.02},
	}
	for _, tt := range tests {
		if got := ClampStrength(tt.in); got != tt.want {
			t.Errorf("ClampStrength(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestHTTPEmitterPostsOutcome(t *testing.T) {
	var got Outcome
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/truth/playful-signal" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	e := NewHTTPEmitter(srv.URL+"/", time.Second)
	o := OutcomeFor(completedDispute(), time.Now())
	if err := e.EmitOutcome(context.Background(), o); err != nil {
		t.Fatalf("EmitOutcome: %v", err)
	}
	if got.ClaimID != "claim-9" || got.SignalID != o.SignalID {
		t.Fatalf("indexer received %+v", got)
	}
}

func TestHTTPEmitterRejectsNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	err := NewHTTPEmitter(srv.URL, time.Second).EmitOutcome(context.Background(), Outcome{})
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusAccepted {
		t.Fatalf("err = %v, want StatusError 202", err)
	}
}

type fakeEmitter struct {
	sent chan Outcome
	err  error
}

func (f *fakeEmitter) EmitOutcome(_ context.Context, o Outcome) error {
	f.sent <- o
	return f.err
}

func TestDispatcherDeliversAndLogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	emitter := &fakeEmitter{sent: make(chan Outcome, 1), err: errors.New("indexer down")}
	d := NewDispatcher(emitter, 4, time.Second, zap.New(core))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = d.Run(ctx)
		close(done)
	}()

	d.Dispatch(Outcome{ClaimID: "claim-1", SignalID: "s1"})

	select {
	case o := <-emitter.sent:
		if o.ClaimID != "claim-1" {
			t.Fatalf("emitted %+v", o)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("outcome was never emitted")
	}

	cancel()
	<-done

	entries := logs.FilterMessage("failed to emit outcome").All()
	if len(entries) != 1 {
		t.Fatalf("expected one failure log, got %d", len(entries))
	}
	if entries[0].ContextMap()["claimId"] != "claim-1" {
		t.Fatalf("failure log missing claimId: %v", entries[0].ContextMap())
	}
}

func TestDispatchNeverBlocks(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	d := NewDispatcher(&fakeEmitter{sent: make(chan Outcome, 8)}, 1, time.Second, zap.New(core))

	// No Run loop: the second outcome overflows the queue and is dropped.
	d.Dispatch(Outcome{ClaimID: "a"})
	d.Dispatch(Outcome{ClaimID: "b"})

	if n := logs.FilterMessage("signal queue full, dropping outcome").Len(); n != 1 {
		t.Fatalf("expected one drop log, got %d", n)
	}
}
