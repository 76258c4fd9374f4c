// internal/storage/memory.go
package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

// MemoryStore is a mutex-guarded in-memory Store. It backs the test suite
// and dependency-free runs; CAS semantics match the Mongo implementation.
type MemoryStore struct {
	mu       sync.RWMutex
	seq      int64
	pending  map[string]*data.PendingEntry
	readings []data.CompleteReading
	alerts   []data.Alert
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		pending: make(map[string]*data.PendingEntry),
	}
}

func (s *MemoryStore) InsertPending(_ context.Context, entry *data.PendingEntry) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	cp := *entry
	cp.ID = uuid.NewString()
	cp.Seq = s.seq
	cp.SensorMapping = copyMapping(entry.SensorMapping)
	s.pending[cp.ID] = &cp

	entry.ID = cp.ID
	entry.Seq = cp.Seq
	return cp.ID, nil
}

func (s *MemoryStore) PendingByFacilityAndWindow(_ context.Context, facilityID string, since time.Time) ([]data.PendingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []data.PendingEntry
	for _, e := range s.pending {
		if e.FacilityID != facilityID || e.Merged {
			continue
		}
		if !e.ReceivedAt.After(since) {
			continue
		}
		out = append(out, *e)
	}
	// Stable output order so callers see deterministic results.
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) ConditionalSetMerged(_ context.Context, id string, expected, desired bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.pending[id]
	if !ok || e.Merged != expected {
		return ErrClaimConflict
	}
	e.Merged = desired
	return nil
}

func (s *MemoryStore) ExpiredPending(_ context.Context, now time.Time) ([]data.PendingEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []data.PendingEntry
	for _, e := range s.pending {
		if !e.Merged && e.ExpiresAt.Before(now) {
			out = append(out, *e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *MemoryStore) BatchDeleteExpired(_ context.Context, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, e := range s.pending {
		if !e.Merged && e.ExpiresAt.Before(now) {
			delete(s.pending, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *MemoryStore) InsertReading(_ context.Context, reading *data.CompleteReading) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *reading
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.readings = append(s.readings, cp)

	reading.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) InsertAlert(_ context.Context, alert *data.Alert) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *alert
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	s.alerts = append(s.alerts, cp)

	alert.ID = cp.ID
	return cp.ID, nil
}

func (s *MemoryStore) RecentReadings(_ context.Context, limit int64) ([]data.CompleteReading, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := int64(len(s.readings))
	if limit <= 0 || limit > n {
		limit = n
	}
	out := make([]data.CompleteReading, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.readings[i])
	}
	return out, nil
}

func (s *MemoryStore) AlertsByFacility(_ context.Context, facilityID string, limit int64) ([]data.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []data.Alert
	for i := len(s.alerts) - 1; i >= 0; i-- {
		a := s.alerts[i]
		if facilityID != "" && a.FacilityID != facilityID {
			continue
		}
		out = append(out, a)
		if limit > 0 && int64(len(out)) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) PendingStats(_ context.Context, facilityID string) (data.BufferStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := data.BufferStats{BySide: map[data.Side]int64{}}
	for _, e := range s.pending {
		if facilityID != "" && e.FacilityID != facilityID {
			continue
		}
		stats.Total++
		if e.Merged {
			stats.Merged++
		} else {
			stats.Unmerged++
			stats.BySide[e.Side]++
		}
	}
	return stats, nil
}

func copyMapping(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cp := make(map[string]string, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
