package services

import (
	"context"

	"go.uber.org/zap"

	"dispute-arena/internal/models"
)

// PayoutRequest is handed to the payment collaborator once a winner asks to
// be paid. The collaborator reports back through MarkPayoutProcessed.
type PayoutRequest struct {
	DisputeID     string
	WinnerID      string
	Amount        models.Money
	Currency      string
	PaymentMethod models.PaymentMethod
	ProofRef      string
}

type PayoutGateway interface {
	RequestPayout(ctx context.Context, req PayoutRequest) error
}

// LogPayoutGateway records requests in the log for deployments without a
// payment integration.
type LogPayoutGateway struct {
	Logger *zap.Logger
}

func (g LogPayoutGateway) RequestPayout(_ context.Context, req PayoutRequest) error {
	g.Logger.Info("payout requested",
		zap.String("disputeId", req.DisputeID),
		zap.String("winnerId", req.WinnerID),
		zap.String("amount", req.Amount.String()),
		zap.String("currency", req.Currency),
		zap.String("paymentMethod", string(req.PaymentMethod)),
	)
	return nil
}
