package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"dispute-arena/internal/config"
	"dispute-arena/internal/db"
)

// Clears dispute state from the dev database. User accounts are kept.
func main() {
	env := config.GetEnv()
	if env != "dev" {
		log.Fatalf("Refusing to clear the %s database", env)
	}

	cfg, err := config.Load(env)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	mongodb, err := db.NewMongoDB(ctx, cfg.MongoDB.URI, cfg.MongoDB.Database, zap.NewNop())
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer mongodb.Close(context.Background())

	collections := []struct {
		name string
		coll *mongo.Collection
	}{
		{"disputes", mongodb.Disputes()},
		{"match history rows", mongodb.MatchHistory()},
		{"leaderboard rows", mongodb.Leaderboard()},
		{"argument history rows", mongodb.ArgumentHistory()},
		{"audit events", mongodb.AuditLog()},
		{"locks", mongodb.CleanupLocks()},
	}
	for _, c := range collections {
		res, err := c.coll.DeleteMany(ctx, bson.M{})
		if err != nil {
			log.Fatalf("Failed to delete %s: %v", c.name, err)
		}
		fmt.Printf("Deleted %d %s\n", res.DeletedCount, c.name)
	}

	// Player totals are derived from the dispute history just removed.
	res, err := mongodb.Users().UpdateMany(ctx, bson.M{}, bson.M{"$unset": bson.M{"totals": ""}})
	if err != nil {
		log.Fatalf("Failed to reset player totals: %v", err)
	}
	fmt.Printf("Reset totals for %d users\n", res.ModifiedCount)

	fmt.Println("Database cleared successfully")
}
