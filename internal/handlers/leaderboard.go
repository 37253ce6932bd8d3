package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"dispute-arena/internal/services"
)

type LeaderboardHandler struct {
	standings *services.Standings
	logger    *zap.Logger
}

func NewLeaderboardHandler(standings *services.Standings, logger *zap.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{
		standings: standings,
		logger:    logger.With(zap.String("component", "leaderboard_handler")),
	}
}

// GetLeaderboard returns the ranked rows for one game.
// GET /api/leaderboard/{gameId}?sort=rank|wins|win_rate|elo_rating|glicko_rating|current_streak&skip=&limit=
func (h *LeaderboardHandler) GetLeaderboard(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.standings.GetLeaderboard(ctx, mux.Vars(r)["gameId"], r.URL.Query().Get("sort"), queryInt(r, "skip"), queryInt(r, "limit"))
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// GET /api/leaderboard/{gameId}/stats
func (h *LeaderboardHandler) GetGameStats(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	stats, err := h.standings.GetGameStats(ctx, mux.Vars(r)["gameId"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// GET /api/leaderboard/{gameId}/arguments
func (h *LeaderboardHandler) GetArgumentHistory(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	rows, err := h.standings.GetArgumentHistory(ctx, mux.Vars(r)["gameId"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// GET /api/users/{userId}/standing
func (h *LeaderboardHandler) GetUserStanding(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	standing, err := h.standings.GetUserStanding(ctx, mux.Vars(r)["userId"])
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, standing)
}
