package signal

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Dispatcher decouples emission from the request path. Dispatch enqueues
// without blocking and Run drains the queue until its context ends.
type Dispatcher struct {
	emitter Emitter
	queue   chan Outcome
	timeout time.Duration
	logger  *zap.Logger
}

func NewDispatcher(emitter Emitter, queueSize int, timeout time.Duration, logger *zap.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 64
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Dispatcher{
		emitter: emitter,
		queue:   make(chan Outcome, queueSize),
		timeout: timeout,
		logger:  logger.With(zap.String("component", "signal")),
	}
}

// Dispatch drops the outcome when the queue is full.
func (d *Dispatcher) Dispatch(o Outcome) {
	select {
	case d.queue <- o:
	default:
		d.logger.Warn("signal queue full, dropping outcome",
			zap.String("claimId", o.ClaimID),
			zap.String("argumentId", o.ArgumentID),
		)
	}
}

func (d *Dispatcher) Linked(claimID, argumentID string) {
	d.logger.Info("dispute linked to claim",
		zap.String("claimId", claimID),
		zap.String("argumentId", argumentID),
	)
}

// Run returns when ctx is cancelled. Queued outcomes not yet sent are dropped.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case o := <-d.queue:
			d.emit(ctx, o)
		}
	}
}

func (d *Dispatcher) emit(ctx context.Context, o Outcome) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	if err := d.emitter.EmitOutcome(ctx, o); err != nil {
		d.logger.Error("failed to emit outcome",
			zap.String("claimId", o.ClaimID),
			zap.String("argumentId", o.ArgumentID),
			zap.String("signalId", o.SignalID),
			zap.Error(err),
		)
		return
	}
	d.logger.Debug("outcome emitted", zap.String("claimId", o.ClaimID), zap.String("signalId", o.SignalID))
}
