package audit

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"dispute-arena/internal/db"
)

// Event types for the dispute audit trail
const (
	EventDisputeCreated   = "dispute_created"
	EventDisputeConfirmed = "dispute_confirmed"
	EventDisputeCancelled = "dispute_cancelled"
	EventDisputeCompleted = "dispute_completed"
	EventPayoutRequested  = "payout_requested"
	EventPayoutProcessed  = "payout_processed"
	EventStreamLinked     = "stream_linked"
	EventClaimLinked      = "claim_linked"
)

// Event is one audit log row.
type Event struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	EventType string             `bson:"eventType"`
	DisputeID primitive.ObjectID `bson:"disputeId"`
	ActorID   string             `bson:"actorId,omitempty"`
	Details   string             `bson:"details,omitempty"`
	CreatedAt time.Time          `bson:"createdAt"`
}

// Recorder accepts audit events without blocking the caller.
type Recorder interface {
	Record(eventType string, disputeID primitive.ObjectID, actorID, details string)
}

// inserter is the slice of *mongo.Collection the recorder needs.
type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// MongoRecorder writes events to audit_log (fire-and-forget).
type MongoRecorder struct {
	events inserter
	logger *zap.Logger
}

func NewMongoRecorder(database *db.MongoDB, logger *zap.Logger) *MongoRecorder {
	return newRecorder(database.AuditLog(), logger)
}

func newRecorder(events inserter, logger *zap.Logger) *MongoRecorder {
	return &MongoRecorder{events: events, logger: logger.With(zap.String("component", "audit"))}
}

func (r *MongoRecorder) Record(eventType string, disputeID primitive.ObjectID, actorID, details string) {
	event := Event{
		EventType: eventType,
		DisputeID: disputeID,
		ActorID:   actorID,
		Details:   details,
		CreatedAt: time.Now(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if _, err := r.events.InsertOne(ctx, event); err != nil {
			r.logger.Warn("audit log write failed",
				zap.String("eventType", eventType),
				zap.String("disputeId", disputeID.Hex()),
				zap.Error(err),
			)
		}
	}()
}

// Nop discards events.
type Nop struct{}

func (Nop) Record(string, primitive.ObjectID, string, string) {}
