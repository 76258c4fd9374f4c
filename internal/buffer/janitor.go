// internal/buffer/janitor.go
package buffer

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/storage"
)

// DefaultReportWindow is the reporting-only staleness threshold. Entries
// older than this at sweep time are logged as never-matched; the counter
// never assumes the buffer row still exists elsewhere.
const DefaultReportWindow = 10 * time.Minute

// Janitor removes expired, never-matched pending entries. It runs out of
// band (cron schedule or the manual sweep endpoint), is idempotent, and is
// safe to run concurrently with the reconciler: it only ever deletes rows
// with merged=false, and the merge claim is atomic.
type Janitor struct {
	store        storage.Store
	reportWindow time.Duration
	now          func() time.Time
}

func NewJanitor(store storage.Store, reportWindow time.Duration) *Janitor {
	if reportWindow <= 0 {
		reportWindow = DefaultReportWindow
	}
	return &Janitor{store: store, reportWindow: reportWindow, now: time.Now}
}

// Sweep deletes all unmerged entries whose ExpiresAt has passed and returns
// the number deleted.
func (j *Janitor) Sweep(ctx context.Context) (int64, error) {
	now := j.now()

	// Reporting pass first: count half-readings that aged well past the
	// merge window without ever finding a counterpart.
	expired, err := j.store.ExpiredPending(ctx, now)
	if err != nil {
		logrus.WithError(err).Warn("janitor: could not list expired entries for reporting")
	} else {
		var stale int64
		perFacility := map[string]int64{}
		for _, e := range expired {
			perFacility[e.FacilityID]++
			if now.Sub(e.ReceivedAt) >= j.reportWindow {
				stale++
			}
		}
		if stale > 0 {
			logrus.WithFields(logrus.Fields{
				"stale":         stale,
				"report_window": j.reportWindow.String(),
				"facilities":    perFacility,
			}).Warn("janitor: half-readings never matched within the reporting window")
		}
	}

	deleted, err := j.store.BatchDeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	if deleted > 0 {
		logrus.WithFields(logrus.Fields{"deleted": deleted}).Info("janitor: swept expired buffer entries")
	}
	return deleted, nil
}
