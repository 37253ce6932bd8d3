package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"dispute-arena/internal/models"
)

type entryKey struct {
	userID string
	gameID string
}

type argumentKey struct {
	name   string
	gameID string
}

// MemoryStore is an arena of keyed aggregates guarded by one mutex. Every
// value crosses the boundary as a copy, so callers never alias stored state.
type MemoryStore struct {
	mu          sync.Mutex
	disputes    map[primitive.ObjectID]*models.Dispute
	history     map[primitive.ObjectID][]*models.MatchHistory
	leaderboard map[entryKey]*models.LeaderboardEntry
	arguments   map[argumentKey]*models.ArgumentHistory
	users       map[string]*models.User
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		disputes:    make(map[primitive.ObjectID]*models.Dispute),
		history:     make(map[primitive.ObjectID][]*models.MatchHistory),
		leaderboard: make(map[entryKey]*models.LeaderboardEntry),
		arguments:   make(map[argumentKey]*models.ArgumentHistory),
		users:       make(map[string]*models.User),
	}
}

// AddUser registers an account under an arbitrary string id.
func (s *MemoryStore) AddUser(id, email, displayName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[id] = &models.User{Email: email, DisplayName: displayName}
}

// Totals returns a registered user's running totals.
func (s *MemoryStore) Totals(userID string) (models.PlayerTotals, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return models.PlayerTotals{}, false
	}
	return u.Totals, true
}

func (s *MemoryStore) ResolveUser(_ context.Context, identifier string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[identifier]; ok {
		return identifier, nil
	}
	for id, u := range s.users {
		if strings.EqualFold(u.Email, identifier) || u.DisplayName == identifier {
			return id, nil
		}
	}
	return "", fmt.Errorf("user %q: %w", identifier, models.ErrNotFound)
}

func (s *MemoryStore) CreateDispute(_ context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d.ID.IsZero() {
		d.ID = primitive.NewObjectID()
	}
	if _, exists := s.disputes[d.ID]; exists {
		return fmt.Errorf("dispute %s: %w", d.ID.Hex(), models.ErrDuplicate)
	}
	d.Version = 1
	s.disputes[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) GetDispute(_ context.Context, id primitive.ObjectID) (*models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getDispute(id)
}

func (s *MemoryStore) getDispute(id primitive.ObjectID) (*models.Dispute, error) {
	d, ok := s.disputes[id]
	if !ok {
		return nil, fmt.Errorf("dispute %s: %w", id.Hex(), models.ErrNotFound)
	}
	return d.Clone(), nil
}

func (s *MemoryStore) UpdateDispute(_ context.Context, d *models.Dispute) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.casDispute(d)
}

func (s *MemoryStore) casDispute(d *models.Dispute) error {
	current, ok := s.disputes[d.ID]
	if !ok {
		return fmt.Errorf("dispute %s: %w", d.ID.Hex(), models.ErrNotFound)
	}
	if current.Version != d.Version {
		return fmt.Errorf("dispute %s at version %d: %w", d.ID.Hex(), d.Version, models.ErrConflict)
	}
	d.Version++
	s.disputes[d.ID] = d.Clone()
	return nil
}

func (s *MemoryStore) CompleteDispute(_ context.Context, d *models.Dispute, h *models.MatchHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.history[d.ID]) > 0 {
		return fmt.Errorf("match history for dispute %s: %w", d.ID.Hex(), models.ErrDuplicate)
	}
	if err := s.casDispute(d); err != nil {
		return err
	}
	if h.ID.IsZero() {
		h.ID = primitive.NewObjectID()
	}
	s.history[d.ID] = append(s.history[d.ID], cloneHistory(h))
	return nil
}

func (s *MemoryStore) ListDisputes(_ context.Context, f DisputeFilter) ([]*models.Dispute, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*models.Dispute
	for _, d := range s.disputes {
		if f.ParticipantID != "" && !d.IsParticipant(f.ParticipantID) {
			continue
		}
		if f.Status != "" && d.Status != f.Status {
			continue
		}
		if f.GameID != "" && d.GameID != f.GameID {
			continue
		}
		matched = append(matched, d)
	}
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID.Hex() > matched[j].ID.Hex()
	})

	total := int64(len(matched))
	page := paginate(matched, f.Skip, f.Limit)
	out := make([]*models.Dispute, len(page))
	for i, d := range page {
		out[i] = d.Clone()
	}
	return out, total, nil
}

func (s *MemoryStore) ListPendingProjections(_ context.Context, completedBefore time.Time, limit int) ([]*models.Dispute, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*models.Dispute
	for _, d := range s.disputes {
		if d.Status != models.DisputeStatusCompleted || d.ProjectionStatus != models.ProjectionPending {
			continue
		}
		if d.CompletedAt == nil || !d.CompletedAt.Before(completedBefore) {
			continue
		}
		out = append(out, d.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return paginate(out, 0, limit), nil
}

func (s *MemoryStore) GetMatchHistory(_ context.Context, disputeID primitive.ObjectID) ([]*models.MatchHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.history[disputeID]
	out := make([]*models.MatchHistory, len(rows))
	for i, h := range rows {
		out[i] = cloneHistory(h)
	}
	return out, nil
}

// RunProjection holds the store lock for the whole of fn. fn must only use
// tx; calling back into the store deadlocks.
func (s *MemoryStore) RunProjection(ctx context.Context, fn func(ctx context.Context, tx ProjectionTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{
		store:       s,
		disputes:    make(map[primitive.ObjectID]*models.Dispute),
		leaderboard: make(map[entryKey]*models.LeaderboardEntry),
		arguments:   make(map[argumentKey]*models.ArgumentHistory),
		totals:      make(map[string]models.PlayerTotals),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (s *MemoryStore) ListLeaderboard(_ context.Context, gameID string, key SortKey, skip, limit int) ([]*models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*models.LeaderboardEntry
	for k, e := range s.leaderboard {
		if k.gameID == gameID {
			c := *e
			rows = append(rows, &c)
		}
	}
	sortEntries(rows, key)
	return paginate(rows, skip, limit), nil
}

func (s *MemoryStore) ListUserEntries(_ context.Context, userID string) ([]*models.LeaderboardEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*models.LeaderboardEntry
	for k, e := range s.leaderboard {
		if k.userID == userID {
			c := *e
			rows = append(rows, &c)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].GameID < rows[j].GameID })
	return rows, nil
}

func (s *MemoryStore) ListArgumentHistory(_ context.Context, gameID string) ([]*models.ArgumentHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var rows []*models.ArgumentHistory
	for k, a := range s.arguments {
		if k.gameID == gameID {
			c := *a
			rows = append(rows, &c)
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].TotalMatches != rows[j].TotalMatches {
			return rows[i].TotalMatches > rows[j].TotalMatches
		}
		return rows[i].ArgumentName < rows[j].ArgumentName
	})
	return rows, nil
}

// memoryTx stages writes and applies them only when fn succeeds.
type memoryTx struct {
	store       *MemoryStore
	disputes    map[primitive.ObjectID]*models.Dispute
	leaderboard map[entryKey]*models.LeaderboardEntry
	arguments   map[argumentKey]*models.ArgumentHistory
	totals      map[string]models.PlayerTotals
}

func (tx *memoryTx) GetDispute(_ context.Context, id primitive.ObjectID) (*models.Dispute, error) {
	if d, ok := tx.disputes[id]; ok {
		return d.Clone(), nil
	}
	return tx.store.getDispute(id)
}

func (tx *memoryTx) GetLeaderboardEntry(_ context.Context, userID, gameID string) (*models.LeaderboardEntry, error) {
	k := entryKey{userID, gameID}
	e, ok := tx.leaderboard[k]
	if !ok {
		e, ok = tx.store.leaderboard[k]
	}
	if !ok {
		return nil, fmt.Errorf("leaderboard %s/%s: %w", userID, gameID, models.ErrNotFound)
	}
	c := *e
	return &c, nil
}

func (tx *memoryTx) SaveLeaderboardEntry(_ context.Context, e *models.LeaderboardEntry) error {
	k := entryKey{e.UserID, e.GameID}
	if e.ID.IsZero() {
		if existing, ok := tx.store.leaderboard[k]; ok {
			e.ID = existing.ID
		} else {
			e.ID = primitive.NewObjectID()
		}
	}
	c := *e
	tx.leaderboard[k] = &c
	return nil
}

func (tx *memoryTx) GetArgumentHistory(_ context.Context, name, gameID string) (*models.ArgumentHistory, error) {
	k := argumentKey{name, gameID}
	a, ok := tx.arguments[k]
	if !ok {
		a, ok = tx.store.arguments[k]
	}
	if !ok {
		return nil, fmt.Errorf("argument history %q/%s: %w", name, gameID, models.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (tx *memoryTx) SaveArgumentHistory(_ context.Context, a *models.ArgumentHistory) error {
	if a.ID.IsZero() {
		a.ID = primitive.NewObjectID()
	}
	c := *a
	tx.arguments[argumentKey{a.ArgumentName, a.GameID}] = &c
	return nil
}

func (tx *memoryTx) RecordResult(_ context.Context, userID string, won bool, earned models.Money) (models.PlayerTotals, error) {
	totals, ok := tx.totals[userID]
	if !ok {
		u, exists := tx.store.users[userID]
		if !exists {
			return models.PlayerTotals{}, fmt.Errorf("user %s: %w", userID, models.ErrNotFound)
		}
		totals = u.Totals
	}
	totals.MatchesPlayed++
	if won {
		totals.Wins++
		totals.Earned = models.NewMoney(totals.Earned.Add(earned.Decimal))
	} else {
		totals.Losses++
	}
	tx.totals[userID] = totals
	return totals, nil
}

func (tx *memoryTx) MarkProjected(ctx context.Context, d *models.Dispute) error {
	current, err := tx.GetDispute(ctx, d.ID)
	if err != nil {
		return err
	}
	if current.Version != d.Version {
		return fmt.Errorf("dispute %s at version %d: %w", d.ID.Hex(), d.Version, models.ErrConflict)
	}
	d.ProjectionStatus = models.ProjectionApplied
	d.Version++
	tx.disputes[d.ID] = d.Clone()
	return nil
}

func (tx *memoryTx) commit() {
	s := tx.store
	for id, d := range tx.disputes {
		s.disputes[id] = d
	}
	for k, e := range tx.leaderboard {
		s.leaderboard[k] = e
	}
	for k, a := range tx.arguments {
		s.arguments[k] = a
	}
	for id, t := range tx.totals {
		s.users[id].Totals = t
	}
}

func sortEntries(rows []*models.LeaderboardEntry, key SortKey) {
	metric := func(e *models.LeaderboardEntry) float64 {
		switch key {
		case SortWins:
			return float64(e.Wins)
		case SortWinRate:
			return e.WinRate
		case SortGlickoRating:
			return float64(e.GlickoRating)
		case SortCurrentStreak:
			return float64(e.CurrentStreak)
		default:
			return float64(e.EloRating)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		mi, mj := metric(rows[i]), metric(rows[j])
		if mi != mj {
			return mi > mj
		}
		if rows[i].EloRating != rows[j].EloRating {
			return rows[i].EloRating > rows[j].EloRating
		}
		return rows[i].UserID < rows[j].UserID
	})
}

func paginate[T any](rows []T, skip, limit int) []T {
	if skip < 0 {
		skip = 0
	}
	if skip >= len(rows) {
		return []T{}
	}
	rows = rows[skip:]
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func cloneHistory(h *models.MatchHistory) *models.MatchHistory {
	c := *h
	c.ProofRefs = append([]string(nil), h.ProofRefs...)
	return &c
}
