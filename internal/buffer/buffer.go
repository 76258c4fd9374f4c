// internal/buffer/buffer.go
package buffer

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/data"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
)

// DefaultMergeWindow is the authoritative TTL: the maximum age a pending
// entry may have and still be eligible for matching.
const DefaultMergeWindow = 5 * time.Minute

// IngestBuffer holds half-readings until a matching counterpart arrives or
// they expire. All state lives in the Store, so the buffer itself is
// stateless and shares entries across instances.
type IngestBuffer struct {
	store storage.Store
	ttl   time.Duration
	now   func() time.Time
}

func NewIngestBuffer(store storage.Store, ttl time.Duration) *IngestBuffer {
	if ttl <= 0 {
		ttl = DefaultMergeWindow
	}
	return &IngestBuffer{store: store, ttl: ttl, now: time.Now}
}

// MergeWindow returns the TTL applied to buffered entries.
func (b *IngestBuffer) MergeWindow() time.Duration {
	return b.ttl
}

// Store writes a validated submission as a new unmerged PendingEntry and
// returns it with its assigned id. A missing counterpart is expected steady
// state, never an error.
func (b *IngestBuffer) Store(ctx context.Context, req *data.SubmitRequest) (*data.PendingEntry, error) {
	now := b.now()
	entry := &data.PendingEntry{
		FacilityID:    req.FacilityID,
		Side:          req.Side,
		DeviceID:      req.DeviceID,
		Parameters:    req.Parameters.ToParameters(),
		SensorMapping: req.SensorMapping,
		ReceivedAt:    now,
		Merged:        false,
		ExpiresAt:     now.Add(b.ttl),
	}

	id, err := b.store.InsertPending(ctx, entry)
	if err != nil {
		return nil, fmt.Errorf("buffer half-reading: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"facility_id": entry.FacilityID,
		"side":        entry.Side,
		"device_id":   entry.DeviceID,
		"entry_id":    id,
	}).Debug("half-reading buffered")
	return entry, nil
}

// Status reports the diagnostic buffer snapshot, optionally scoped to one
// facility (empty id means all).
func (b *IngestBuffer) Status(ctx context.Context, facilityID string) (data.BufferStats, error) {
	stats, err := b.store.PendingStats(ctx, facilityID)
	if err != nil {
		return data.BufferStats{}, fmt.Errorf("buffer status: %w", err)
	}
	return stats, nil
}
