package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"dispute-arena/internal/db"
	"dispute-arena/internal/models"
)

// MongoStore implements Store and UserDirectory on MongoDB. RunProjection
// and CompleteDispute need a replica set for multi-document transactions.
type MongoStore struct {
	db *db.MongoDB
}

func NewMongoStore(database *db.MongoDB) *MongoStore {
	return &MongoStore{db: database}
}

var sortFields = map[SortKey]string{
	SortRank:          "eloRating",
	SortWins:          "wins",
	SortWinRate:       "winRate",
	SortEloRating:     "eloRating",
	SortGlickoRating:  "glickoRating",
	SortCurrentStreak: "currentStreak",
}

func (s *MongoStore) CreateDispute(ctx context.Context, d *models.Dispute) error {
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	d.Version = 1
	if _, err := s.db.Disputes().InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("dispute %s: %w", d.ID.Hex(), models.ErrDuplicate)
		}
		return fmt.Errorf("insert dispute: %w", err)
	}
	return nil
}

func (s *MongoStore) GetDispute(ctx context.Context, id primitive.ObjectID) (*models.Dispute, error) {
	return findDispute(ctx, s.db.Disputes(), id)
}

func findDispute(ctx context.Context, coll *mongo.Collection, id primitive.ObjectID) (*models.Dispute, error) {
	var d models.Dispute
	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("dispute %s: %w", id.Hex(), models.ErrNotFound)
		}
		return nil, fmt.Errorf("find dispute %s: %w", id.Hex(), err)
	}
	return &d, nil
}

// replaceDispute writes d guarded by its version and returns the new version.
// d itself is left untouched so a retried transaction sees the same input.
func replaceDispute(ctx context.Context, coll *mongo.Collection, d *models.Dispute) (int64, error) {
	next := d.Clone()
	next.Version = d.Version + 1

	res, err := coll.ReplaceOne(ctx, bson.M{"_id": d.ID, "version": d.Version}, next)
	if err != nil {
		return 0, fmt.Errorf("replace dispute %s: %w", d.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		n, err := coll.CountDocuments(ctx, bson.M{"_id": d.ID})
		if err != nil {
			return 0, fmt.Errorf("count dispute %s: %w", d.ID.Hex(), err)
		}
		if n == 0 {
			return 0, fmt.Errorf("dispute %s: %w", d.ID.Hex(), models.ErrNotFound)
		}
		return 0, fmt.Errorf("dispute %s at version %d: %w", d.ID.Hex(), d.Version, models.ErrConflict)
	}
	return next.Version, nil
}

func (s *MongoStore) UpdateDispute(ctx context.Context, d *models.Dispute) error {
	version, err := replaceDispute(ctx, s.db.Disputes(), d)
	if err != nil {
		return err
	}
	d.Version = version
	return nil
}

func (s *MongoStore) CompleteDispute(ctx context.Context, d *models.Dispute, h *models.MatchHistory) error {
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}

	var version int64
	err := s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		v, err := replaceDispute(sc, s.db.Disputes(), d)
		if err != nil {
			return err
		}
		if _, err := s.db.MatchHistory().InsertOne(sc, h); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				return fmt.Errorf("match history for dispute %s: %w", d.ID.Hex(), models.ErrDuplicate)
			}
			return fmt.Errorf("insert match history: %w", err)
		}
		version = v
		return nil
	})
	if err != nil {
		return err
	}
	d.Version = version
	return nil
}

func (s *MongoStore) ListDisputes(ctx context.Context, f DisputeFilter) ([]*models.Dispute, int64, error) {
	filter := bson.M{}
	if f.ParticipantID != "" {
		filter["$or"] = bson.A{
			bson.M{"challengerId": f.ParticipantID},
			bson.M{"opponentId": f.ParticipantID},
		}
	}
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.GameID != "" {
		filter["gameId"] = f.GameID
	}

	total, err := s.db.Disputes().CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count disputes: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64(f.Skip))
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	cursor, err := s.db.Disputes().Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, fmt.Errorf("find disputes: %w", err)
	}
	var out []*models.Dispute
	if err := cursor.All(ctx, &out); err != nil {
		return nil, 0, fmt.Errorf("decode disputes: %w", err)
	}
	return out, total, nil
}

func (s *MongoStore) ListPendingProjections(ctx context.Context, completedBefore time.Time, limit int) ([]*models.Dispute, error) {
	filter := bson.M{
		"status":           models.DisputeStatusCompleted,
		"projectionStatus": models.ProjectionPending,
		"completedAt":      bson.M{"$lt": completedBefore},
	}
	opts := options.Find().SetSort(bson.D{{Key: "completedAt", Value: 1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Disputes().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find pending projections: %w", err)
	}
	var out []*models.Dispute
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode pending projections: %w", err)
	}
	return out, nil
}

func (s *MongoStore) GetMatchHistory(ctx context.Context, disputeID primitive.ObjectID) ([]*models.MatchHistory, error) {
	cursor, err := s.db.MatchHistory().Find(ctx, bson.M{"disputeId": disputeID},
		options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find match history: %w", err)
	}
	out := []*models.MatchHistory{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode match history: %w", err)
	}
	return out, nil
}

func (s *MongoStore) RunProjection(ctx context.Context, fn func(ctx context.Context, tx ProjectionTx) error) error {
	return s.withTransaction(ctx, func(sc mongo.SessionContext) error {
		return fn(sc, &mongoTx{db: s.db})
	})
}

func (s *MongoStore) withTransaction(ctx context.Context, fn func(sc mongo.SessionContext) error) error {
	session, err := s.db.Client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

func (s *MongoStore) ListLeaderboard(ctx context.Context, gameID string, key SortKey, skip, limit int) ([]*models.LeaderboardEntry, error) {
	field, ok := sortFields[key]
	if !ok {
		field = sortFields[SortRank]
	}
	opts := options.Find().
		SetSort(bson.D{{Key: field, Value: -1}, {Key: "eloRating", Value: -1}, {Key: "userId", Value: 1}}).
		SetSkip(int64(skip))
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	return s.findEntries(ctx, bson.M{"gameId": gameID}, opts)
}

func (s *MongoStore) ListUserEntries(ctx context.Context, userID string) ([]*models.LeaderboardEntry, error) {
	return s.findEntries(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "gameId", Value: 1}}))
}

func (s *MongoStore) findEntries(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*models.LeaderboardEntry, error) {
	cursor, err := s.db.Leaderboard().Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find leaderboard: %w", err)
	}
	out := []*models.LeaderboardEntry{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode leaderboard: %w", err)
	}
	return out, nil
}

func (s *MongoStore) ListArgumentHistory(ctx context.Context, gameID string) ([]*models.ArgumentHistory, error) {
	cursor, err := s.db.ArgumentHistory().Find(ctx, bson.M{"gameId": gameID},
		options.Find().SetSort(bson.D{{Key: "totalMatches", Value: -1}, {Key: "argumentName", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("find argument history: %w", err)
	}
	out := []*models.ArgumentHistory{}
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode argument history: %w", err)
	}
	return out, nil
}

// ResolveUser accepts a hex user id, an email address or a display name.
func (s *MongoStore) ResolveUser(ctx context.Context, identifier string) (string, error) {
	var filter bson.M
	if oid, err := primitive.ObjectIDFromHex(identifier); err == nil {
		filter = bson.M{"_id": oid}
	} else if strings.Contains(identifier, "@") {
		filter = bson.M{"email": strings.ToLower(identifier)}
	} else {
		filter = bson.M{"displayName": identifier}
	}

	var u models.User
	err := s.db.Users().FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Decode(&u)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return "", fmt.Errorf("user %q: %w", identifier, models.ErrNotFound)
		}
		return "", fmt.Errorf("find user: %w", err)
	}
	return u.ID.Hex(), nil
}

// mongoTx runs every call on the session context handed to fn.
type mongoTx struct {
	db *db.MongoDB
}

func (tx *mongoTx) GetDispute(ctx context.Context, id primitive.ObjectID) (*models.Dispute, error) {
	return findDispute(ctx, tx.db.Disputes(), id)
}

func (tx *mongoTx) GetLeaderboardEntry(ctx context.Context, userID, gameID string) (*models.LeaderboardEntry, error) {
	var e models.LeaderboardEntry
	err := tx.db.Leaderboard().FindOne(ctx, bson.M{"userId": userID, "gameId": gameID}).Decode(&e)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("leaderboard %s/%s: %w", userID, gameID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("find leaderboard %s/%s: %w", userID, gameID, err)
	}
	return &e, nil
}

func (tx *mongoTx) SaveLeaderboardEntry(ctx context.Context, e *models.LeaderboardEntry) error {
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	_, err := tx.db.Leaderboard().ReplaceOne(ctx,
		bson.M{"userId": e.UserID, "gameId": e.GameID}, e, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save leaderboard %s/%s: %w", e.UserID, e.GameID, err)
	}
	return nil
}

func (tx *mongoTx) GetArgumentHistory(ctx context.Context, name, gameID string) (*models.ArgumentHistory, error) {
	var a models.ArgumentHistory
	err := tx.db.ArgumentHistory().FindOne(ctx, bson.M{"argumentName": name, "gameId": gameID}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("argument history %q/%s: %w", name, gameID, models.ErrNotFound)
		}
		return nil, fmt.Errorf("find argument history: %w", err)
	}
	return &a, nil
}

func (tx *mongoTx) SaveArgumentHistory(ctx context.Context, a *models.ArgumentHistory) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	_, err := tx.db.ArgumentHistory().ReplaceOne(ctx,
		bson.M{"argumentName": a.ArgumentName, "gameId": a.GameID}, a, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save argument history: %w", err)
	}
	return nil
}

func (tx *mongoTx) RecordResult(ctx context.Context, userID string, won bool, earned models.Money) (models.PlayerTotals, error) {
	oid, err := primitive.ObjectIDFromHex(userID)
	if err != nil {
		return models.PlayerTotals{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
	}

	var u models.User
	if err := tx.db.Users().FindOne(ctx, bson.M{"_id": oid}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.PlayerTotals{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		return models.PlayerTotals{}, fmt.Errorf("find user %s: %w", userID, err)
	}

	totals := u.Totals
	totals.MatchesPlayed++
	if won {
		totals.Wins++
		totals.Earned = models.NewMoney(totals.Earned.Add(earned.Decimal))
	} else {
		totals.Losses++
	}

	_, err = tx.db.Users().UpdateOne(ctx, bson.M{"_id": oid}, bson.M{
		"$set": bson.M{"totals": totals, "updatedAt": time.Now()},
	})
	if err != nil {
		return models.PlayerTotals{}, fmt.Errorf("update user %s totals: %w", userID, err)
	}
	return totals, nil
}

func (tx *mongoTx) MarkProjected(ctx context.Context, d *models.Dispute) error {
	res, err := tx.db.Disputes().UpdateOne(ctx,
		bson.M{"_id": d.ID, "version": d.Version},
		bson.M{
			"$set": bson.M{"projectionStatus": models.ProjectionApplied},
			"$inc": bson.M{"version": 1},
		})
	if err != nil {
		return fmt.Errorf("mark dispute %s projected: %w", d.ID.Hex(), err)
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("dispute %s at version %d: %w", d.ID.Hex(), d.Version, models.ErrConflict)
	}
	d.ProjectionStatus = models.ProjectionApplied
	d.Version++
	return nil
}
