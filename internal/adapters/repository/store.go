// Package repository caches attendance records fetched from the backend so
// the control API can serve them without a round trip.
package repository

import (
	"context"
	"time"

	"github.com/okian/presence/internal/domain/model"
)

// Snapshot is the cached record list of one user.
type Snapshot struct {
	UserID    string                   `json:"user_id"`
	Records   []model.AttendanceRecord `json:"records"`
	UpdatedAt time.Time                `json:"updated_at"`
}

// Store provides read/write access to cached records.
type Store interface {
	// Put replaces the cached records of userID.
	Put(ctx context.Context, userID string, records []model.AttendanceRecord) error

	// Latest returns the most recently refreshed snapshot.
	// Returns ErrNotFound when nothing has been cached.
	Latest(ctx context.Context) (Snapshot, error)

	// ForUser returns the snapshot of userID.
	// Returns ErrNotFound if the user has no cached records.
	ForUser(ctx context.Context, userID string) (Snapshot, error)

	// Count returns the total number of cached records.
	Count(ctx context.Context) int
}
