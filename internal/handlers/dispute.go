package handlers

import (
	"context"
	"crypto/subtle"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dispute-arena/internal/middleware"
	"dispute-arena/internal/models"
	"dispute-arena/internal/services"
	"dispute-arena/internal/verification"
)

type DisputeHandler struct {
	svc           *services.DisputeService
	callbackToken string
	logger        *zap.Logger
}

func NewDisputeHandler(svc *services.DisputeService, callbackToken string, logger *zap.Logger) *DisputeHandler {
	return &DisputeHandler{
		svc:           svc,
		callbackToken: callbackToken,
		logger:        logger.With(zap.String("component", "dispute_handler")),
	}
}

type CreateDisputeRequest struct {
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	GameID         string               `json:"gameId"`
	GameType       string               `json:"gameType"`
	ChallengerSide string               `json:"challengerSide"`
	OpponentSide   string               `json:"opponentSide"`
	EntryFee       models.Money         `json:"entryFee"`
	Currency       string               `json:"currency"`
	PaymentMethod  models.PaymentMethod `json:"paymentMethod"`
	// Opponent is a user id, email or display name.
	Opponent string `json:"opponent,omitempty"`
}

type SubmitResultRequest struct {
	WinnerID  string                   `json:"winnerId"`
	Score     string                   `json:"score"`
	ProofRef  string                   `json:"proofRef"`
	Notes     string                   `json:"notes,omitempty"`
	MatchData verification.MatchData   `json:"matchData,omitempty"`
	Proofs    []verification.ProofFile `json:"proofs,omitempty"`
}

type ListDisputesResponse struct {
	Disputes []*models.Dispute `json:"disputes"`
	Total    int64             `json:"total"`
}

func (h *DisputeHandler) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), 10*time.Second)
}

// caller returns the authenticated user and dispute id, writing the error
// response itself when either is missing.
func (h *DisputeHandler) caller(w http.ResponseWriter, r *http.Request) (string, primitive.ObjectID, bool) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return "", primitive.NilObjectID, false
	}
	id, ok := disputeID(w, r)
	return userID, id, ok
}

func disputeID(w http.ResponseWriter, r *http.Request) (primitive.ObjectID, bool) {
	id, err := primitive.ObjectIDFromHex(mux.Vars(r)["disputeId"])
	if err != nil {
		respondError(w, http.StatusBadRequest, "Invalid dispute ID")
		return primitive.NilObjectID, false
	}
	return id, true
}

// CreateDispute opens a challenge.
// POST /api/disputes
func (h *DisputeHandler) CreateDispute(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}
	var req CreateDisputeRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.Create(ctx, userID, services.CreateDisputeInput{
		Title:              req.Title,
		Description:        req.Description,
		GameID:             req.GameID,
		GameType:           req.GameType,
		ChallengerSide:     req.ChallengerSide,
		OpponentSide:       req.OpponentSide,
		EntryFee:           req.EntryFee,
		Currency:           req.Currency,
		PaymentMethod:      req.PaymentMethod,
		OpponentIdentifier: req.Opponent,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusCreated, d)
}

// ListDisputes returns the caller's disputes.
// GET /api/disputes?status=&gameId=&skip=&limit=
func (h *DisputeHandler) ListDisputes(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserID(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	q := r.URL.Query()
	disputes, total, err := h.svc.List(ctx, userID, services.ListDisputesInput{
		Status: models.DisputeStatus(q.Get("status")),
		GameID: q.Get("gameId"),
		Skip:   queryInt(r, "skip"),
		Limit:  queryInt(r, "limit"),
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, ListDisputesResponse{Disputes: disputes, Total: total})
}

// GET /api/disputes/{disputeId}
func (h *DisputeHandler) GetDispute(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.Get(ctx, id, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// GET /api/disputes/{disputeId}/history
func (h *DisputeHandler) GetMatchHistory(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	rows, err := h.svc.GetMatchHistory(ctx, id, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, rows)
}

// POST /api/disputes/{disputeId}/confirm
func (h *DisputeHandler) ConfirmDispute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Confirm)
}

// POST /api/disputes/{disputeId}/cancel
func (h *DisputeHandler) CancelDispute(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *DisputeHandler) transition(w http.ResponseWriter, r *http.Request, fn func(context.Context, primitive.ObjectID, string) (*models.Dispute, error)) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := fn(ctx, id, userID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// SubmitResult completes a confirmed dispute.
// POST /api/disputes/{disputeId}/result
func (h *DisputeHandler) SubmitResult(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req SubmitResultRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.SubmitResult(ctx, id, userID, services.SubmitResultInput{
		WinnerID:  req.WinnerID,
		Score:     req.Score,
		ProofRef:  req.ProofRef,
		Notes:     req.Notes,
		MatchData: req.MatchData,
		Proofs:    req.Proofs,
	})
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// POST /api/disputes/{disputeId}/payout
func (h *DisputeHandler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ProofRef string `json:"proofRef"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.RequestPayout(ctx, id, userID, req.ProofRef)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusAccepted, d)
}

// POST /api/disputes/{disputeId}/stream
func (h *DisputeHandler) AddStreamLink(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		StreamURL string `json:"streamUrl"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.AddStreamLink(ctx, id, userID, req.StreamURL)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// POST /api/disputes/{disputeId}/claim
func (h *DisputeHandler) LinkClaim(w http.ResponseWriter, r *http.Request) {
	userID, id, ok := h.caller(w, r)
	if !ok {
		return
	}
	var req struct {
		ClaimID        string   `json:"claimId"`
		SignalStrength *float64 `json:"signalStrength,omitempty"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.LinkClaim(ctx, id, userID, req.ClaimID, req.SignalStrength)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}

// PayoutProcessed is the payment collaborator's callback. It authenticates
// with a shared token rather than a user JWT; an empty token disables it.
// POST /api/payments/disputes/{disputeId}/processed
func (h *DisputeHandler) PayoutProcessed(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("X-Callback-Token")
	if h.callbackToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.callbackToken)) != 1 {
		respondError(w, http.StatusForbidden, "Invalid callback token")
		return
	}
	id, ok := disputeID(w, r)
	if !ok {
		return
	}
	var req struct {
		TxID string `json:"txId"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	ctx, cancel := h.requestContext(r)
	defer cancel()

	d, err := h.svc.MarkPayoutProcessed(ctx, id, req.TxID)
	if err != nil {
		respondServiceError(w, h.logger, err)
		return
	}
	respondJSON(w, http.StatusOK, d)
}
