package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"dispute-arena/internal/audit"
	"dispute-arena/internal/models"
	"dispute-arena/internal/signal"
	"dispute-arena/internal/store"
	"dispute-arena/internal/verification"
)

// maxWriteAttempts bounds the read-check-write loop under contention.
const maxWriteAttempts = 5

const defaultCurrency = "USD"

// Verifier scores a submitted result. *verification.Engine is the production
// implementation.
type Verifier interface {
	Verify(gameType verification.GameType, data verification.MatchData, proofs []verification.ProofFile) verification.Result
}

// DisputeDeps are the collaborators of a DisputeService. Signals, Payouts and
// Audit may be nil.
type DisputeDeps struct {
	Store     store.Store
	Users     store.UserDirectory
	Verifier  Verifier
	Projector *LeaderboardProjector
	Signals   signal.Hook
	Payouts   PayoutGateway
	Audit     audit.Recorder
	Logger    *zap.Logger
}

// DisputeService owns the dispute lifecycle. Every state change is a
// version-guarded write, so the status precondition acts as a
// compare-and-swap on the stored record.
type DisputeService struct {
	store     store.Store
	users     store.UserDirectory
	verifier  Verifier
	projector *LeaderboardProjector
	signals   signal.Hook
	payouts   PayoutGateway
	audit     audit.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

func NewDisputeService(deps DisputeDeps) *DisputeService {
	s := &DisputeService{
		store:     deps.Store,
		users:     deps.Users,
		verifier:  deps.Verifier,
		projector: deps.Projector,
		signals:   deps.Signals,
		payouts:   deps.Payouts,
		audit:     deps.Audit,
		logger:    deps.Logger.With(zap.String("component", "disputes")),
		now:       time.Now,
	}
	if s.verifier == nil {
		s.verifier = verification.NewEngine()
	}
	if s.audit == nil {
		s.audit = audit.Nop{}
	}
	return s
}

// CreateDisputeInput are the terms a challenger proposes.
type CreateDisputeInput struct {
	Title              string
	Description        string
	GameID             string
	GameType           string
	ChallengerSide     string
	OpponentSide       string
	EntryFee           models.Money
	Currency           string
	PaymentMethod      models.PaymentMethod
	OpponentIdentifier string // optional; resolved through the user directory
}

func (s *DisputeService) Create(ctx context.Context, challengerID string, in CreateDisputeInput) (*models.Dispute, error) {
	if challengerID == "" {
		return nil, models.ErrNotAuthorized
	}
	title := strings.TrimSpace(in.Title)
	if title == "" || strings.TrimSpace(in.GameID) == "" {
		return nil, fmt.Errorf("title and gameId are required: %w", models.ErrInvalidInput)
	}
	gameType, ok := verification.ParseGameType(in.GameType)
	if !ok {
		return nil, fmt.Errorf("unsupported game type %q: %w", in.GameType, models.ErrInvalidInput)
	}
	if in.EntryFee.IsNegative() {
		return nil, fmt.Errorf("entry fee must not be negative: %w", models.ErrInvalidInput)
	}

	var opponentID *string
	if ident := strings.TrimSpace(in.OpponentIdentifier); ident != "" {
		id, err := s.users.ResolveUser(ctx, ident)
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("%q: %w", ident, models.ErrOpponentNotFound)
		}
		if err != nil {
			return nil, fmt.Errorf("resolve opponent: %w", err)
		}
		if id == challengerID {
			return nil, models.ErrSelfChallenge
		}
		opponentID = &id
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = defaultCurrency
	}
	paymentMethod := in.PaymentMethod
	if paymentMethod == "" {
		paymentMethod = models.PaymentMethodCard
	}

	now := s.now()
	d := &models.Dispute{
		Title:          title,
		Description:    in.Description,
		GameID:         in.GameID,
		GameType:       gameType,
		ChallengerID:   challengerID,
		OpponentID:     opponentID,
		ChallengerSide: in.ChallengerSide,
		OpponentSide:   in.OpponentSide,
		EntryFee:       in.EntryFee,
		Currency:       currency,
		PaymentMethod:  paymentMethod,
		Status:         models.DisputeStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.CreateDispute(ctx, d); err != nil {
		return nil, fmt.Errorf("create dispute: %w", err)
	}

	s.audit.Record(audit.EventDisputeCreated, d.ID, challengerID, d.Title)
	s.logger.Info("dispute created",
		zap.String("disputeId", d.ID.Hex()),
		zap.String("challengerId", challengerID),
		zap.String("opponentId", d.Opponent()),
		zap.String("gameId", d.GameID),
	)
	return d, nil
}

// mutate re-reads the dispute, lets check reject or modify it, and writes it
// back under the version guard. A lost race is retried against the fresh
// record, so check always sees the latest status.
func (s *DisputeService) mutate(ctx context.Context, id primitive.ObjectID, check func(d *models.Dispute) error) (*models.Dispute, error) {
	for attempt := 0; attempt < maxWriteAttempts; attempt++ {
		d, err := s.store.GetDispute(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := check(d); err != nil {
			return nil, err
		}
		d.UpdatedAt = s.now()

		err = s.store.UpdateDispute(ctx, d)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("update dispute: %w", err)
		}
		return d, nil
	}
	return nil, fmt.Errorf("dispute %s: %w", id.Hex(), models.ErrConflict)
}

func (s *DisputeService) Confirm(ctx context.Context, id primitive.ObjectID, actorID string) (*models.Dispute, error) {
	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if actorID == "" || actorID != d.Opponent() {
			return models.ErrNotAuthorized
		}
		if d.Status != models.DisputeStatusPending {
			return fmt.Errorf("confirm from %s: %w", d.Status, models.ErrInvalidState)
		}
		d.Status = models.DisputeStatusConfirmed
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.EventDisputeConfirmed, d.ID, actorID, "")
	return d, nil
}

func (s *DisputeService) Cancel(ctx context.Context, id primitive.ObjectID, actorID string) (*models.Dispute, error) {
	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if actorID == "" || actorID != d.ChallengerID {
			return models.ErrNotAuthorized
		}
		if d.Status != models.DisputeStatusPending {
			return fmt.Errorf("cancel from %s: %w", d.Status, models.ErrInvalidState)
		}
		d.Status = models.DisputeStatusCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.EventDisputeCancelled, d.ID, actorID, "")
	return d, nil
}

// SubmitResultInput is a participant's report of the outcome.
type SubmitResultInput struct {
	WinnerID  string
	Score     string
	ProofRef  string
	Notes     string
	MatchData verification.MatchData
	Proofs    []verification.ProofFile
}

// SubmitResult completes a confirmed dispute. An inconclusive verification
// still completes it, flagged verificationStatus=pending. Projection and
// signal failures are logged, never returned.
func (s *DisputeService) SubmitResult(ctx context.Context, id primitive.ObjectID, actorID string, in SubmitResultInput) (*models.Dispute, error) {
	var d *models.Dispute
	for attempt := 0; ; attempt++ {
		if attempt == maxWriteAttempts {
			return nil, fmt.Errorf("dispute %s: %w", id.Hex(), models.ErrConflict)
		}

		current, err := s.store.GetDispute(ctx, id)
		if err != nil {
			return nil, err
		}
		if !current.IsParticipant(actorID) {
			return nil, models.ErrNotAuthorized
		}
		if current.Status != models.DisputeStatusConfirmed {
			return nil, fmt.Errorf("submit result from %s: %w", current.Status, models.ErrInvalidState)
		}
		if !current.IsParticipant(in.WinnerID) {
			return nil, fmt.Errorf("winner must be a participant: %w", models.ErrInvalidInput)
		}

		history := s.complete(current, in)
		err = s.store.CompleteDispute(ctx, current, history)
		if errors.Is(err, models.ErrConflict) {
			continue
		}
		if errors.Is(err, models.ErrDuplicate) {
			return nil, fmt.Errorf("dispute %s already has a result: %w", id.Hex(), models.ErrInvalidState)
		}
		if err != nil {
			return nil, fmt.Errorf("complete dispute: %w", err)
		}
		d = current
		break
	}

	s.audit.Record(audit.EventDisputeCompleted, d.ID, actorID, "winner="+d.WinnerID)
	s.logger.Info("dispute completed",
		zap.String("disputeId", d.ID.Hex()),
		zap.String("winnerId", d.WinnerID),
		zap.String("verificationStatus", string(d.VerificationStatus)),
		zap.Float64("confidence", d.Verification.Confidence),
	)

	if s.projector != nil {
		// A failed projection stays pending for the replayer.
		_ = s.projector.Apply(ctx, d)
	}

	if d.ClaimID != "" && s.signals != nil {
		s.signals.Dispatch(signal.OutcomeFor(d, s.now()))
	}

	if fresh, err := s.store.GetDispute(ctx, id); err == nil {
		d = fresh
	}
	return d, nil
}

// complete verifies the submission and moves d to COMPLETED in memory.
func (s *DisputeService) complete(d *models.Dispute, in SubmitResultInput) *models.MatchHistory {
	accepted, rejected := verification.FilterProofs(in.Proofs)

	data := verification.MatchData{}
	for k, v := range in.MatchData {
		data[k] = v
	}
	if _, ok := data["players"]; !ok {
		data["players"] = []any{d.ChallengerID, d.Opponent()}
	}
	if _, ok := data["winner"]; !ok {
		data["winner"] = in.WinnerID
	}
	if _, ok := data["score"]; !ok && in.Score != "" {
		data["score"] = in.Score
	}

	result := s.verifier.Verify(d.GameType, data, accepted)
	if len(rejected) > 0 {
		if result.Details == nil {
			result.Details = map[string]any{}
		}
		result.Details["rejected_proofs"] = rejected
	}

	now := s.now()
	d.Status = models.DisputeStatusCompleted
	d.WinnerID = in.WinnerID
	d.Score = in.Score
	d.ProofRef = in.ProofRef
	d.Verification = &result
	// Downgraded stays on the verification record; status follows the verdict.
	d.VerificationStatus = models.VerificationPending
	if result.Verified {
		d.VerificationStatus = models.VerificationVerified
	}
	d.ProjectionStatus = models.ProjectionPending
	d.CompletedAt = &now
	d.UpdatedAt = now

	refs := make([]string, 0, len(accepted)+1)
	if in.ProofRef != "" {
		refs = append(refs, in.ProofRef)
	}
	for _, p := range accepted {
		if p.Ref != "" {
			refs = append(refs, p.Ref)
		}
	}

	return &models.MatchHistory{
		DisputeID:  d.ID,
		GameID:     d.GameID,
		WinnerID:   in.WinnerID,
		LoserID:    d.OtherParticipant(in.WinnerID),
		Score:      in.Score,
		ProofRefs:  refs,
		Notes:      in.Notes,
		EntryFee:   d.EntryFee,
		Currency:   d.Currency,
		Verified:   result.Verified,
		Confidence: result.Confidence,
		CreatedAt:  now,
	}
}

func (s *DisputeService) Get(ctx context.Context, id primitive.ObjectID, actorID string) (*models.Dispute, error) {
	d, err := s.store.GetDispute(ctx, id)
	if err != nil {
		return nil, err
	}
	if !d.IsParticipant(actorID) {
		return nil, models.ErrNotAuthorized
	}
	return d, nil
}

// ListDisputesInput filters the caller's disputes.
type ListDisputesInput struct {
	Status models.DisputeStatus
	GameID string
	Skip   int
	Limit  int
}

func (s *DisputeService) List(ctx context.Context, actorID string, in ListDisputesInput) ([]*models.Dispute, int64, error) {
	if actorID == "" {
		return nil, 0, models.ErrNotAuthorized
	}
	return s.store.ListDisputes(ctx, store.DisputeFilter{
		ParticipantID: actorID,
		Status:        in.Status,
		GameID:        in.GameID,
		Skip:          in.Skip,
		Limit:         clampLimit(in.Limit, 20, 100),
	})
}

func (s *DisputeService) GetMatchHistory(ctx context.Context, id primitive.ObjectID, actorID string) ([]*models.MatchHistory, error) {
	if _, err := s.Get(ctx, id, actorID); err != nil {
		return nil, err
	}
	return s.store.GetMatchHistory(ctx, id)
}

// RequestPayout records the winner's payout request and hands it to the
// payment collaborator without waiting for it.
func (s *DisputeService) RequestPayout(ctx context.Context, id primitive.ObjectID, actorID, proofRef string) (*models.Dispute, error) {
	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if !d.IsParticipant(actorID) {
			return models.ErrNotAuthorized
		}
		if d.Status != models.DisputeStatusCompleted {
			return fmt.Errorf("payout from %s: %w", d.Status, models.ErrInvalidState)
		}
		if actorID != d.WinnerID {
			return models.ErrNotAuthorized
		}
		if d.PayoutRequestedAt != nil {
			return fmt.Errorf("payout already requested: %w", models.ErrInvalidState)
		}
		now := s.now()
		d.PayoutRequestedAt = &now
		d.PayoutProofRef = proofRef
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(audit.EventPayoutRequested, d.ID, actorID, "")

	if s.payouts != nil {
		req := PayoutRequest{
			DisputeID:     d.ID.Hex(),
			WinnerID:      d.WinnerID,
			Amount:        d.EntryFee,
			Currency:      d.Currency,
			PaymentMethod: d.PaymentMethod,
			ProofRef:      proofRef,
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := s.payouts.RequestPayout(ctx, req); err != nil {
				s.logger.Error("payout request failed",
					zap.String("disputeId", req.DisputeID),
					zap.String("winnerId", req.WinnerID),
					zap.Error(err),
				)
			}
		}()
	}
	return d, nil
}

// MarkPayoutProcessed is called back by the payment collaborator.
func (s *DisputeService) MarkPayoutProcessed(ctx context.Context, id primitive.ObjectID, txID string) (*models.Dispute, error) {
	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if d.Status != models.DisputeStatusCompleted || d.PayoutRequestedAt == nil {
			return fmt.Errorf("no payout requested: %w", models.ErrInvalidState)
		}
		if d.PayoutProcessed {
			return fmt.Errorf("payout already processed: %w", models.ErrInvalidState)
		}
		d.PayoutProcessed = true
		d.PayoutTxID = txID
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.EventPayoutProcessed, d.ID, "", txID)
	return d, nil
}

func openForLinks(d *models.Dispute) error {
	if d.Status != models.DisputeStatusPending && d.Status != models.DisputeStatusConfirmed {
		return fmt.Errorf("link from %s: %w", d.Status, models.ErrInvalidState)
	}
	return nil
}

func (s *DisputeService) AddStreamLink(ctx context.Context, id primitive.ObjectID, actorID, streamURL string) (*models.Dispute, error) {
	streamURL = strings.TrimSpace(streamURL)
	if streamURL == "" {
		return nil, fmt.Errorf("stream url is required: %w", models.ErrInvalidInput)
	}
	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if !d.IsParticipant(actorID) {
			return models.ErrNotAuthorized
		}
		if err := openForLinks(d); err != nil {
			return err
		}
		d.IsStreamed = true
		d.StreamURL = streamURL
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(audit.EventStreamLinked, d.ID, actorID, streamURL)
	return d, nil
}

// LinkClaim ties the dispute to an external claim. strength defaults to the
// cap and is clamped to it.
func (s *DisputeService) LinkClaim(ctx context.Context, id primitive.ObjectID, actorID, claimID string, strength *float64) (*models.Dispute, error) {
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return nil, fmt.Errorf("claim id is required: %w", models.ErrInvalidInput)
	}
	value := models.MaxSignalStrength
	if strength != nil {
		value = signal.ClampStrength(*strength)
	}

	d, err := s.mutate(ctx, id, func(d *models.Dispute) error {
		if !d.IsParticipant(actorID) {
			return models.ErrNotAuthorized
		}
		if err := openForLinks(d); err != nil {
			return err
		}
		d.ClaimID = claimID
		d.SignalStrength = value
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(audit.EventClaimLinked, d.ID, actorID, claimID)
	if s.signals != nil {
		s.signals.Linked(claimID, d.ArgumentID())
	}
	return d, nil
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxLimit {
		return maxLimit
	}
	return limit
}
