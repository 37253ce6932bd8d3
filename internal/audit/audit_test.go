package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeCollection struct {
	err    error
	events chan Event
}

func (c *fakeCollection) InsertOne(_ context.Context, document interface{}, _ ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	c.events <- document.(Event)
	if c.err != nil {
		return nil, c.err
	}
	return &mongo.InsertOneResult{InsertedID: primitive.NewObjectID()}, nil
}

func waitForLogs(t *testing.T, logs *observer.ObservedLogs, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for logs.Len() < n {
		if time.Now().After(deadline) {
			t.Fatalf("got %d log entries, want %d", logs.Len(), n)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRecordWritesEvent(t *testing.T) {
	coll := &fakeCollection{events: make(chan Event, 1)}
	r := newRecorder(coll, zap.NewNop())
	id := primitive.NewObjectID()

	r.Record(EventDisputeCreated, id, "u1", "sc2 for 10.00 usd")

	select {
	case ev := <-coll.events:
		if ev.EventType != EventDisputeCreated || ev.DisputeID != id || ev.ActorID != "u1" {
			t.Fatalf("unexpected event: %+v", ev)
		}
		if ev.CreatedAt.IsZero() {
			t.Fatal("createdAt not set")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("event never written")
	}
}

func TestRecordLogsFailedWrite(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	coll := &fakeCollection{err: errors.New("no reachable servers"), events: make(chan Event, 1)}
	r := newRecorder(coll, zap.New(core))
	id := primitive.NewObjectID()

	r.Record(EventPayoutRequested, id, "u2", "")

	waitForLogs(t, logs, 1)
	entry := logs.All()[0]
	if entry.Message != "audit log write failed" {
		t.Fatalf("message = %q", entry.Message)
	}
	fields := entry.ContextMap()
	if fields["eventType"] != EventPayoutRequested || fields["disputeId"] != id.Hex() {
		t.Fatalf("fields = %v", fields)
	}
	if fields["component"] != "audit" {
		t.Fatalf("component = %v", fields["component"])
	}
}
