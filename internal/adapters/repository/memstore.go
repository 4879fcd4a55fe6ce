package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/presence/internal/domain/model"
	"github.com/okian/presence/pkg/metrics"
)

const defaultLimit = 20

// MemoryStore is an in-memory Store. Snapshots are immutable once stored;
// readers get copies of the record slices.
type MemoryStore struct {
	limit int
	now   func() time.Time

	mu     sync.RWMutex
	byUser map[string]Snapshot
	latest string
	total  int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{limit: defaultLimit, now: time.Now, byUser: make(map[string]Snapshot)}
	for _, opt := range opts {
		opt(s)
	}
	metrics.UpdateRecordsCached(0)
	return s
}

// Put implements Store.
func (s *MemoryStore) Put(_ context.Context, userID string, records []model.AttendanceRecord) error {
	if s.limit <= 0 {
		return fmt.Errorf("put %s: %w", userID, ErrInvalidLimit)
	}
	n := len(records)
	if n > s.limit {
		n = s.limit
	}
	snap := Snapshot{
		UserID:    userID,
		Records:   append([]model.AttendanceRecord(nil), records[:n]...),
		UpdatedAt: s.now(),
	}

	s.mu.Lock()
	s.total -= len(s.byUser[userID].Records)
	s.byUser[userID] = snap
	s.total += len(snap.Records)
	s.latest = userID
	total := s.total
	s.mu.Unlock()

	metrics.UpdateRecordsCached(total)
	return nil
}

// Latest implements Store.
func (s *MemoryStore) Latest(ctx context.Context) (Snapshot, error) {
	s.mu.RLock()
	id, ok := s.latest, s.latest != ""
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, ErrNotFound
	}
	return s.ForUser(ctx, id)
}

// ForUser implements Store.
func (s *MemoryStore) ForUser(_ context.Context, userID string) (Snapshot, error) {
	s.mu.RLock()
	snap, ok := s.byUser[userID]
	s.mu.RUnlock()
	if !ok {
		return Snapshot{}, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	snap.Records = append([]model.AttendanceRecord(nil), snap.Records...)
	return snap, nil
}

// Count implements Store.
func (s *MemoryStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.total
}
