// internal/reconciler/reconciler.go
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/alerting"
	"github.com/ProfDian/water-qual-sub000/internal/data"
	"github.com/ProfDian/water-qual-sub000/internal/quality"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
)

var (
	// ErrMergeRetryExhausted surfaces when every match-and-claim attempt
	// lost its claim race. The submission stays buffered and unclaimed.
	ErrMergeRetryExhausted = errors.New("merge retries exhausted")
	// ErrDownstreamWrite marks a store failure while persisting the merge
	// outcome. Both claims are released first, so a caller retry is safe.
	ErrDownstreamWrite = errors.New("downstream write failed")
)

const defaultClaimRetries = 3

// Result is the outcome of a merge attempt. Exactly one of Reading or
// WaitingFor is set: WaitingFor names the still-missing side.
type Result struct {
	Reading    *data.CompleteReading
	WaitingFor data.Side
}

// Reconciler pairs inlet/outlet half-readings for a facility, claims both
// entries exactly once via the store's CAS primitive, and produces the
// scored CompleteReading. It is stateless: all shared state lives in the
// store, so any number of instances can reconcile concurrently.
type Reconciler struct {
	store      storage.Store
	scorer     *quality.Scorer
	dispatcher *alerting.Dispatcher
	window     time.Duration
	maxRetries int
	now        func() time.Time
}

func New(store storage.Store, scorer *quality.Scorer, dispatcher *alerting.Dispatcher, window time.Duration) *Reconciler {
	return &Reconciler{
		store:      store,
		scorer:     scorer,
		dispatcher: dispatcher,
		window:     window,
		maxRetries: defaultClaimRetries,
		now:        time.Now,
	}
}

// TryMerge runs the match-and-claim cycle for one facility. Claim conflicts
// are retried internally (a concurrent submission may have raced us and
// produced the reading itself); only exhaustion surfaces as an error.
func (r *Reconciler) TryMerge(ctx context.Context, facilityID string) (*Result, error) {
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		res, err := r.matchAndClaim(ctx, facilityID)
		if err == nil {
			return res, nil
		}
		if !errors.Is(err, storage.ErrClaimConflict) {
			return nil, err
		}
		logrus.WithFields(logrus.Fields{
			"facility_id": facilityID,
			"attempt":     attempt + 1,
		}).Debug("merge claim conflict, retrying match cycle")
	}
	return nil, fmt.Errorf("%w: facility %s", ErrMergeRetryExhausted, facilityID)
}

func (r *Reconciler) matchAndClaim(ctx context.Context, facilityID string) (*Result, error) {
	since := r.now().Add(-r.window)
	candidates, err := r.store.PendingByFacilityAndWindow(ctx, facilityID, since)
	if err != nil {
		return nil, fmt.Errorf("query merge candidates: %w", err)
	}

	var inlets, outlets []data.PendingEntry
	for _, e := range candidates {
		switch e.Side {
		case data.SideInlet:
			inlets = append(inlets, e)
		case data.SideOutlet:
			outlets = append(outlets, e)
		}
	}

	// Either side empty is expected steady state, not an error.
	if len(inlets) == 0 {
		return &Result{WaitingFor: data.SideInlet}, nil
	}
	if len(outlets) == 0 {
		return &Result{WaitingFor: data.SideOutlet}, nil
	}

	inlet := latest(inlets)
	outlet := latest(outlets)

	// Claim both winners. The CAS fails if a concurrent merge already
	// consumed an entry; releasing the first claim keeps the whole claim
	// all-or-nothing without a cross-document transaction. Store errors
	// other than a lost claim race count as downstream failures.
	if err := r.store.ConditionalSetMerged(ctx, outlet.ID, false, true); err != nil {
		if errors.Is(err, storage.ErrClaimConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: claim outlet entry: %v", ErrDownstreamWrite, err)
	}
	if err := r.store.ConditionalSetMerged(ctx, inlet.ID, false, true); err != nil {
		// Any inlet-claim failure unclaims the outlet, conflict or not:
		// a half left at merged=true with no reading would be stuck
		// forever, unreachable by both the matcher and the janitor.
		r.release(ctx, outlet.ID)
		if errors.Is(err, storage.ErrClaimConflict) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: claim inlet entry: %v", ErrDownstreamWrite, err)
	}

	reading := buildReading(facilityID, inlet, outlet)
	reading.Quality = r.scorer.Analyze(inlet.Parameters, outlet.Parameters)
	reading.CreatedAt = r.now()

	readingID, err := r.store.InsertReading(ctx, reading)
	if err != nil {
		// Unclaim both entries so the caller can safely retry the
		// submission; nothing downstream has happened yet.
		r.release(ctx, inlet.ID)
		r.release(ctx, outlet.ID)
		return nil, fmt.Errorf("%w: persist complete reading: %v", ErrDownstreamWrite, err)
	}

	if r.dispatcher != nil {
		alerts := r.dispatcher.Process(ctx, readingID, facilityID, reading.Quality.Violations)
		r.dispatcher.Notify(alerts)
	}

	logrus.WithFields(logrus.Fields{
		"facility_id": facilityID,
		"reading_id":  readingID,
		"score":       reading.Quality.Score,
		"status":      reading.Quality.Status,
		"violations":  len(reading.Quality.Violations),
	}).Info("half-readings reconciled")
	return &Result{Reading: reading}, nil
}

// release flips a claimed entry back to unmerged. Failure here is logged
// only: a stuck merged=true entry is never double-consumed, it just ages out
// of the sweep's reach.
func (r *Reconciler) release(ctx context.Context, id string) {
	if err := r.store.ConditionalSetMerged(ctx, id, true, false); err != nil {
		logrus.WithFields(logrus.Fields{"entry_id": id}).WithError(err).
			Error("failed to release claimed entry")
	}
}

// latest picks the candidate with the greatest ReceivedAt; ties go to the
// most recently written entry (higher store sequence).
func latest(entries []data.PendingEntry) data.PendingEntry {
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].ReceivedAt.Equal(entries[j].ReceivedAt) {
			return entries[i].ReceivedAt.After(entries[j].ReceivedAt)
		}
		return entries[i].Seq > entries[j].Seq
	})
	return entries[0]
}

func buildReading(facilityID string, inlet, outlet data.PendingEntry) *data.CompleteReading {
	// Outlet keys win on sensor-mapping collisions.
	mapping := make(map[string]string, len(inlet.SensorMapping)+len(outlet.SensorMapping))
	for k, v := range inlet.SensorMapping {
		mapping[k] = v
	}
	for k, v := range outlet.SensorMapping {
		mapping[k] = v
	}
	if len(mapping) == 0 {
		mapping = nil
	}

	return &data.CompleteReading{
		FacilityID: facilityID,
		Inlet:      inlet.Parameters,
		Outlet:     outlet.Parameters,
		DeviceIDs: data.DeviceIDs{
			Inlet:  inlet.DeviceID,
			Outlet: outlet.DeviceID,
		},
		SensorMapping: mapping,
		ObservedAt:    outlet.ReceivedAt,
	}
}
