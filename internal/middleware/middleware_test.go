package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dispute-arena/internal/auth"
)

func TestRequireAuth(t *testing.T) {
	jwtSvc := auth.NewJWTService("secret", time.Minute)
	token, _ := jwtSvc.GenerateAccessToken("u1")
	m := NewAuthMiddleware(jwtSvc)

	var seen string
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserID(r.Context())
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"bad token", "Bearer nope", http.StatusUnauthorized},
		{"valid", "Bearer " + token, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = ""
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if tt.status == http.StatusOK && seen != "u1" {
				t.Fatalf("user id in context = %q", seen)
			}
		})
	}
}

func TestRateLimitHandler(t *testing.T) {
	rl := NewRateLimiter()
	defer rl.Stop()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	cfg := RateLimitConfig{Name: "t", MaxRequests: 2, Window: time.Minute}
	h := rl.RateLimitHandler(cfg, UserOrIPKey, func(w http.ResponseWriter, r *http.Request) {})

	call := func(user string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/", nil)
		req = req.WithContext(WithUserID(req.Context(), user))
		rec := httptest.NewRecorder()
		h(rec, req)
		return rec
	}

	for i := 0; i < 2; i++ {
		if rec := call("a"); rec.Code != http.StatusOK {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := call("a")
	if rec.Code != http.StatusTooManyRequests || rec.Header().Get("Retry-After") != "60" {
		t.Fatalf("third request = %d retry=%q", rec.Code, rec.Header().Get("Retry-After"))
	}
	if rec := call("b"); rec.Code != http.StatusOK {
		t.Fatalf("other user throttled: %d", rec.Code)
	}

	now = now.Add(time.Minute + time.Second)
	if rec := call("a"); rec.Code != http.StatusOK {
		t.Fatalf("window did not reset: %d", rec.Code)
	}
}

func TestGetClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	if ip := GetClientIP(req); ip != "10.0.0.1" {
		t.Fatalf("remote addr ip = %q", ip)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	if ip := GetClientIP(req); ip != "203.0.113.7" {
		t.Fatalf("forwarded ip = %q", ip)
	}
}
