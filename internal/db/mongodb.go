package db

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
	logger   *zap.Logger
}

func NewMongoDB(ctx context.Context, uri, database string, logger *zap.Logger) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(uri).
		SetMaxPoolSize(200).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(5 * time.Minute)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := &MongoDB{
		Client:   client,
		Database: client.Database(database),
		logger:   logger.With(zap.String("component", "mongodb")),
	}

	// Index creation runs in the background so a slow build never delays startup.
	go db.ensureIndexes()

	return db, nil
}

func (m *MongoDB) ensureIndexes() {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	indexes := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{
			"disputes",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "challengerId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "opponentId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "status", Value: 1}, {Key: "projectionStatus", Value: 1}, {Key: "completedAt", Value: 1}}},
				{Keys: bson.D{{Key: "gameId", Value: 1}, {Key: "status", Value: 1}}},
			},
		},
		{
			"match_history",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "disputeId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "winnerId", Value: 1}, {Key: "createdAt", Value: -1}}},
				{Keys: bson.D{{Key: "loserId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
		{
			"leaderboard",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "gameId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "gameId", Value: 1}, {Key: "eloRating", Value: -1}}},
			},
		},
		{
			"argument_history",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "argumentName", Value: 1}, {Key: "gameId", Value: 1}}, Options: options.Index().SetUnique(true)},
				{Keys: bson.D{{Key: "gameId", Value: 1}, {Key: "totalMatches", Value: -1}}},
			},
		},
		{
			"users",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true).SetSparse(true)},
				{Keys: bson.D{{Key: "displayName", Value: 1}}, Options: options.Index().SetUnique(true)},
			},
		},
		{
			"audit_log",
			[]mongo.IndexModel{
				{Keys: bson.D{{Key: "createdAt", Value: 1}}, Options: options.Index().SetExpireAfterSeconds(90 * 24 * 3600)}, // 90-day retention
				{Keys: bson.D{{Key: "disputeId", Value: 1}, {Key: "createdAt", Value: -1}}},
			},
		},
	}

	for _, idx := range indexes {
		coll := m.Database.Collection(idx.collection)
		if _, err := coll.Indexes().CreateMany(ctx, idx.models); err != nil {
			m.logger.Warn("failed to create indexes", zap.String("collection", idx.collection), zap.Error(err))
		}
	}

	m.logger.Info("database indexes ensured")
}

func (m *MongoDB) Close(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

func (m *MongoDB) Disputes() *mongo.Collection {
	return m.Database.Collection("disputes")
}

func (m *MongoDB) MatchHistory() *mongo.Collection {
	return m.Database.Collection("match_history")
}

func (m *MongoDB) Leaderboard() *mongo.Collection {
	return m.Database.Collection("leaderboard")
}

func (m *MongoDB) ArgumentHistory() *mongo.Collection {
	return m.Database.Collection("argument_history")
}

func (m *MongoDB) Users() *mongo.Collection {
	return m.Database.Collection("users")
}

func (m *MongoDB) CleanupLocks() *mongo.Collection {
	return m.Database.Collection("cleanup_locks")
}

func (m *MongoDB) AuditLog() *mongo.Collection {
	return m.Database.Collection("audit_log")
}
