package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"dispute-arena/internal/auth"
	"dispute-arena/internal/middleware"
	"dispute-arena/internal/services"
	"dispute-arena/internal/store"
)

type testServer struct {
	router *mux.Router
	jwt    *auth.JWTService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := zap.NewNop()
	mem := store.NewMemoryStore()
	mem.AddUser("u1", "one@example.com", "PlayerOne")
	mem.AddUser("u2", "two@example.com", "PlayerTwo")
	mem.AddUser("u3", "three@example.com", "PlayerThree")

	projector := services.NewLeaderboardProjector(mem, logger)
	svc := services.NewDisputeService(services.DisputeDeps{
		Store:     mem,
		Users:     mem,
		Projector: projector,
		Logger:    logger,
	})

	jwtSvc := auth.NewJWTService("test-secret", time.Hour)
	limiter := middleware.NewRateLimiter()
	t.Cleanup(limiter.Stop)

	return &testServer{
		router: NewRouter(RouterDeps{
			Disputes:    NewDisputeHandler(svc, "cb-token", logger),
			Leaderboard: NewLeaderboardHandler(services.NewStandings(mem, logger), logger),
			Auth:        middleware.NewAuthMiddleware(jwtSvc),
			Limiter:     limiter,
		}),
		jwt: jwtSvc,
	}
}

func (s *testServer) do(t *testing.T, method, path, user string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := s.jwt.GenerateAccessToken(user)
		if err != nil {
			t.Fatalf("token: %v", err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

type disputeView struct {
	ID                 string `json:"id"`
	Status             string `json:"status"`
	WinnerID           string `json:"winnerId"`
	VerificationStatus string `json:"verificationStatus"`
	EntryFee           string `json:"entryFee"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"title":          "Rush beats greed",
		"gameId":         "sc2-ladder",
		"gameType":       "manual",
		"challengerSide": "rush",
		"opponentSide":   "greed",
		"entryFee":       "25.50",
		"opponent":       "two@example.com",
	}
}

func TestDisputeFlowOverHTTP(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/disputes", "u1", createBody())
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-RateLimit-Limit") != "20" {
		t.Fatalf("rate limit header = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	created := decode[disputeView](t, rec)
	if created.Status != "PENDING" || created.EntryFee != "25.5" {
		t.Fatalf("created = %+v", created)
	}
	base := "/api/disputes/" + created.ID

	if rec := s.do(t, http.MethodPost, base+"/confirm", "u2", nil); rec.Code != http.StatusOK {
		t.Fatalf("confirm = %d %s", rec.Code, rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, base+"/result", "u2", map[string]interface{}{
		"winnerId":  "u2",
		"score":     "3-1",
		"proofRef":  "proofs/abc",
		"matchData": map[string]interface{}{"players": []string{"u1", "u2"}, "duration": 900},
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("result = %d %s", rec.Code, rec.Body.String())
	}
	done := decode[disputeView](t, rec)
	if done.Status != "COMPLETED" || done.WinnerID != "u2" || done.VerificationStatus != "verified" {
		t.Fatalf("completed = %+v", done)
	}

	rec = s.do(t, http.MethodGet, "/api/leaderboard/sc2-ladder", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("leaderboard = %d", rec.Code)
	}
	rows := decode[[]struct {
		UserID string `json:"userId"`
		Rank   int    `json:"rank"`
		Tier   string `json:"tier"`
	}](t, rec)
	if len(rows) != 2 || rows[0].UserID != "u2" || rows[0].Rank != 1 || rows[1].Rank != 2 || rows[0].Tier == "" {
		t.Fatalf("leaderboard rows = %+v", rows)
	}

	rec = s.do(t, http.MethodGet, "/api/disputes?status=COMPLETED", "u1", nil)
	list := decode[struct {
		Disputes []disputeView `json:"disputes"`
		Total    int64         `json:"total"`
	}](t, rec)
	if list.Total != 1 || len(list.Disputes) != 1 {
		t.Fatalf("list = %+v", list)
	}

	if rec := s.do(t, http.MethodGet, base+"/history", "u1", nil); rec.Code != http.StatusOK {
		t.Fatalf("history = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodGet, "/api/users/u2/standing", "", nil); rec.Code != http.StatusOK {
		t.Fatalf("standing = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/disputes", "u1", createBody())
	base := "/api/disputes/" + decode[disputeView](t, rec).ID

	self := createBody()
	self["opponent"] = "u1"
	badType := createBody()
	badType["gameType"] = "chess"
	ghost := createBody()
	ghost["opponent"] = "nobody@example.com"

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   interface{}
		want   int
	}{
		{"no token", http.MethodGet, "/api/disputes", "", nil, http.StatusUnauthorized},
		{"bad id", http.MethodGet, "/api/disputes/xyz", "u1", nil, http.StatusBadRequest},
		{"unknown dispute", http.MethodGet, "/api/disputes/5f1d7f1e2b3c4d5e6f708192", "u1", nil, http.StatusNotFound},
		{"outsider read", http.MethodGet, base, "u3", nil, http.StatusForbidden},
		{"self challenge", http.MethodPost, "/api/disputes", "u1", self, http.StatusBadRequest},
		{"unsupported game", http.MethodPost, "/api/disputes", "u1", badType, http.StatusBadRequest},
		{"unknown opponent", http.MethodPost, "/api/disputes", "u1", ghost, http.StatusNotFound},
		{"challenger confirms", http.MethodPost, base + "/confirm", "u1", nil, http.StatusForbidden},
		{"result before confirm", http.MethodPost, base + "/result", "u1", map[string]string{"winnerId": "u1"}, http.StatusConflict},
		{"malformed body", http.MethodPost, base + "/claim", "u1", "not an object", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, tt.method, tt.path, tt.user, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d (%s)", rec.Code, tt.want, rec.Body.String())
			}
		})
	}
}

func TestPayoutCallbackRequiresToken(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/disputes", "u1", createBody())
	id := decode[disputeView](t, rec).ID
	s.do(t, http.MethodPost, "/api/disputes/"+id+"/confirm", "u2", nil)
	s.do(t, http.MethodPost, "/api/disputes/"+id+"/result", "u1", map[string]string{"winnerId": "u1"})

	if rec := s.do(t, http.MethodPost, "/api/disputes/"+id+"/payout", "u1", map[string]string{"proofRef": "p"}); rec.Code != http.StatusAccepted {
		t.Fatalf("payout = %d %s", rec.Code, rec.Body.String())
	}

	callback := func(token string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/payments/disputes/"+id+"/processed", bytes.NewBufferString(`{"txId":"tx-9"}`))
		if token != "" {
			req.Header.Set("X-Callback-Token", token)
		}
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec.Code
	}
	if code := callback(""); code != http.StatusForbidden {
		t.Fatalf("no token = %d", code)
	}
	if code := callback("wrong"); code != http.StatusForbidden {
		t.Fatalf("wrong token = %d", code)
	}
	if code := callback("cb-token"); code != http.StatusOK {
		t.Fatalf("valid token = %d", code)
	}
	if code := callback("cb-token"); code != http.StatusConflict {
		t.Fatalf("second callback = %d", code)
	}
}

func TestCreateRateLimited(t *testing.T) {
	s := newTestServer(t)
	for i := 0; i < middleware.DisputeCreationLimit.MaxRequests; i++ {
		if rec := s.do(t, http.MethodPost, "/api/disputes", "u1", createBody()); rec.Code != http.StatusCreated {
			t.Fatalf("create %d = %d", i, rec.Code)
		}
	}
	if rec := s.do(t, http.MethodPost, "/api/disputes", "u1", createBody()); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("over limit = %d", rec.Code)
	}
	if rec := s.do(t, http.MethodPost, "/api/disputes", "u3", createBody()); rec.Code != http.StatusCreated {
		t.Fatalf("other user = %d", rec.Code)
	}
}
