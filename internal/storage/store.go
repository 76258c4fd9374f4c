// internal/storage/store.go
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

var (
	// ErrClaimConflict is returned by ConditionalSetMerged when the entry is
	// not in the expected merged state, i.e. a concurrent merge won the race.
	ErrClaimConflict = errors.New("pending entry not in expected state")
	// ErrNotFound is returned for lookups that match nothing.
	ErrNotFound = errors.New("not found")
)

// Store is the narrow durable-storage contract the pipeline depends on.
// Implementations must provide read-your-writes consistency and a true
// compare-and-swap for ConditionalSetMerged; that CAS is the only
// correctness-critical primitive in the system.
type Store interface {
	// InsertPending writes a new half-reading and returns its assigned id.
	// The store also assigns Seq, a monotonically increasing write order.
	InsertPending(ctx context.Context, entry *data.PendingEntry) (string, error)

	// PendingByFacilityAndWindow returns unmerged entries for the facility
	// whose ReceivedAt is strictly after since.
	PendingByFacilityAndWindow(ctx context.Context, facilityID string, since time.Time) ([]data.PendingEntry, error)

	// ConditionalSetMerged flips the merged flag from expected to desired in
	// one atomic step. Returns ErrClaimConflict when the entry is missing or
	// its merged flag no longer equals expected.
	ConditionalSetMerged(ctx context.Context, id string, expected, desired bool) error

	// ExpiredPending lists unmerged entries whose ExpiresAt has passed.
	ExpiredPending(ctx context.Context, now time.Time) ([]data.PendingEntry, error)

	// BatchDeleteExpired removes unmerged entries whose ExpiresAt has passed
	// and returns how many were deleted. Merged rows are never touched.
	BatchDeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// InsertReading appends a complete reading and returns its id.
	InsertReading(ctx context.Context, reading *data.CompleteReading) (string, error)

	// InsertAlert appends an alert record and returns its id.
	InsertAlert(ctx context.Context, alert *data.Alert) (string, error)

	// RecentReadings returns the most recent complete readings, newest first.
	RecentReadings(ctx context.Context, limit int64) ([]data.CompleteReading, error)

	// AlertsByFacility returns alerts, newest first, optionally filtered by
	// facility (empty id means all facilities).
	AlertsByFacility(ctx context.Context, facilityID string, limit int64) ([]data.Alert, error)

	// PendingStats summarises the buffer, optionally for one facility.
	PendingStats(ctx context.Context, facilityID string) (data.BufferStats, error)
}
