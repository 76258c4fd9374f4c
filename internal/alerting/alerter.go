// internal/alerting/alerter.go
package alerting

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/data"
	"github.com/ProfDian/water-qual-sub000/internal/notify"
	"github.com/ProfDian/water-qual-sub000/internal/storage"
)

// Broadcaster pushes alert payloads to connected dashboard clients.
type Broadcaster interface {
	BroadcastAlert(alert interface{})
}

// Dispatcher turns violations into persisted Alert records and triggers a
// single aggregated notification job per reading.
type Dispatcher struct {
	store    storage.Store
	notifier notify.Enqueuer
	hub      Broadcaster
	now      func() time.Time
}

// NewDispatcher wires the dispatcher. notifier and hub may be nil; both are
// best-effort side channels.
func NewDispatcher(store storage.Store, notifier notify.Enqueuer, hub Broadcaster) *Dispatcher {
	return &Dispatcher{store: store, notifier: notifier, hub: hub, now: time.Now}
}

// Process creates one active Alert per Violation. Persistence failures for
// individual alerts are logged and skipped: partial failure never fails the
// pipeline and the complete reading is not rolled back.
func (d *Dispatcher) Process(ctx context.Context, readingID, facilityID string, violations []data.Violation) []data.Alert {
	if len(violations) == 0 {
		return nil
	}

	alerts := make([]data.Alert, 0, len(violations))
	for _, v := range violations {
		alert := data.Alert{
			FacilityID: facilityID,
			ReadingID:  readingID,
			Parameter:  v.Parameter,
			Location:   v.Location,
			Value:      v.Value,
			Threshold:  v.Threshold,
			Severity:   v.Severity,
			Status:     data.AlertStatusActive,
			Rule:       v.Condition,
			Message:    v.Message,
			CreatedAt:  d.now(),
		}

		if _, err := d.store.InsertAlert(ctx, &alert); err != nil {
			logrus.WithFields(logrus.Fields{
				"facility_id": facilityID,
				"reading_id":  readingID,
				"parameter":   v.Parameter,
			}).WithError(err).Error("failed to persist alert, continuing with remaining violations")
			continue
		}

		alerts = append(alerts, alert)
		if d.hub != nil {
			d.hub.BroadcastAlert(alert)
		}
	}

	logrus.WithFields(logrus.Fields{
		"facility_id": facilityID,
		"reading_id":  readingID,
		"created":     len(alerts),
		"violations":  len(violations),
	}).Info("alerts dispatched")
	return alerts
}

// Notify hands one aggregated notification job to the gateway when any
// created alert is high or critical. Fire-and-forget: delivery never
// affects alert or reading persistence.
func (d *Dispatcher) Notify(alerts []data.Alert) {
	if len(alerts) == 0 || d.notifier == nil {
		return
	}

	escalate := false
	for _, a := range alerts {
		if data.SeverityAtLeast(a.Severity, data.SeverityHigh) {
			escalate = true
			break
		}
	}
	if !escalate {
		return
	}

	job := notify.NewJob(alerts[0].FacilityID, alerts[0].ReadingID, alerts)
	d.notifier.Enqueue(job)
}
