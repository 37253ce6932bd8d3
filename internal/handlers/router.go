package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"dispute-arena/internal/middleware"
)

type RouterDeps struct {
	Disputes    *DisputeHandler
	Leaderboard *LeaderboardHandler
	Auth        *middleware.AuthMiddleware
	Limiter     *middleware.RateLimiter
}

func NewRouter(deps RouterDeps) *mux.Router {
	router := mux.NewRouter()
	router.Use(middleware.SecurityHeaders())

	createLimited := deps.Limiter.RateLimitHandler(middleware.DisputeCreationLimit, middleware.UserOrIPKey, deps.Disputes.CreateDispute)
	submitLimited := deps.Limiter.RateLimitHandler(middleware.ResultSubmissionLimit, middleware.UserOrIPKey, deps.Disputes.SubmitResult)

	api := router.PathPrefix("/api").Subrouter()

	// Dispute routes (protected)
	disputeApi := api.PathPrefix("/disputes").Subrouter()
	disputeApi.Use(deps.Auth.RequireAuth)
	disputeApi.HandleFunc("", createLimited).Methods("POST")
	disputeApi.HandleFunc("", deps.Disputes.ListDisputes).Methods("GET")
	disputeApi.HandleFunc("/{disputeId}", deps.Disputes.GetDispute).Methods("GET")
	disputeApi.HandleFunc("/{disputeId}/history", deps.Disputes.GetMatchHistory).Methods("GET")
	disputeApi.HandleFunc("/{disputeId}/confirm", deps.Disputes.ConfirmDispute).Methods("POST")
	disputeApi.HandleFunc("/{disputeId}/cancel", deps.Disputes.CancelDispute).Methods("POST")
	disputeApi.HandleFunc("/{disputeId}/result", submitLimited).Methods("POST")
	disputeApi.HandleFunc("/{disputeId}/payout", deps.Disputes.RequestPayout).Methods("POST")
	disputeApi.HandleFunc("/{disputeId}/stream", deps.Disputes.AddStreamLink).Methods("POST")
	disputeApi.HandleFunc("/{disputeId}/claim", deps.Disputes.LinkClaim).Methods("POST")

	// Payment collaborator callbacks (token auth)
	api.HandleFunc("/payments/disputes/{disputeId}/processed", deps.Disputes.PayoutProcessed).Methods("POST")

	// Standings (public)
	api.HandleFunc("/leaderboard/{gameId}", deps.Leaderboard.GetLeaderboard).Methods("GET")
	api.HandleFunc("/leaderboard/{gameId}/stats", deps.Leaderboard.GetGameStats).Methods("GET")
	api.HandleFunc("/leaderboard/{gameId}/arguments", deps.Leaderboard.GetArgumentHistory).Methods("GET")
	api.HandleFunc("/users/{userId}/standing", deps.Leaderboard.GetUserStanding).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}
