package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dispute-arena/internal/db"
)

// Locker grants a named lease to one holder at a time across processes.
type Locker interface {
	TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, name, holder string) error
}

// MongoLocker keeps leases as documents in cleanup_locks.
type MongoLocker struct {
	db *db.MongoDB
}

func NewMongoLocker(database *db.MongoDB) *MongoLocker {
	return &MongoLocker{db: database}
}

func (l *MongoLocker) TryAcquire(ctx context.Context, name, holder string, ttl time.Duration) (bool, error) {
	now := time.Now()
	filter := bson.M{
		"_id": name,
		"$or": []bson.M{
			{"lockedUntil": bson.M{"$exists": false}},
			{"lockedUntil": bson.M{"$lt": now}},
		},
	}
	update := bson.M{
		"$set": bson.M{
			"lockedUntil": now.Add(ttl),
			"lockedBy":    holder,
			"lockedAt":    now,
		},
	}

	err := l.db.CleanupLocks().FindOneAndUpdate(ctx, filter, update, options.FindOneAndUpdate().SetUpsert(true)).Err()
	switch {
	case err == nil, errors.Is(err, mongo.ErrNoDocuments):
		// Upsert of a fresh lock document returns no pre-image.
		return true, nil
	case mongo.IsDuplicateKeyError(err):
		// The document exists and is held by someone else.
		return false, nil
	default:
		return false, fmt.Errorf("acquire lock %s: %w", name, err)
	}
}

func (l *MongoLocker) Release(ctx context.Context, name, holder string) error {
	_, err := l.db.CleanupLocks().UpdateOne(ctx,
		bson.M{"_id": name, "lockedBy": holder},
		bson.M{"$set": bson.M{"lockedUntil": time.Now()}},
	)
	if err != nil {
		return fmt.Errorf("release lock %s: %w", name, err)
	}
	return nil
}

// LocalLocker is an in-process Locker for single-instance runs.
type LocalLocker struct {
	mu    sync.Mutex
	holds map[string]lease
}

type lease struct {
	holder string
	until  time.Time
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{holds: make(map[string]lease)}
}

func (l *LocalLocker) TryAcquire(_ context.Context, name, holder string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if cur, ok := l.holds[name]; ok && cur.holder != holder && now.Before(cur.until) {
		return false, nil
	}
	l.holds[name] = lease{holder: holder, until: now.Add(ttl)}
	return true, nil
}

func (l *LocalLocker) Release(_ context.Context, name, holder string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.holds[name]; ok && cur.holder == holder {
		delete(l.holds, name)
	}
	return nil
}
