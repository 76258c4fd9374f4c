// internal/notify/notifier.go
package notify

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ProfDian/water-qual-sub000/internal/data"
)

// Job is one aggregated notification: all alerts raised for a single
// reading, delivered together rather than one message per violation.
type Job struct {
	ID         string       `json:"id"`
	FacilityID string       `json:"facility_id"`
	ReadingID  string       `json:"reading_id"`
	Alerts     []data.Alert `json:"alerts"`
	CreatedAt  time.Time    `json:"created_at"`
}

// NewJob builds an aggregated job for one reading's alerts.
func NewJob(facilityID, readingID string, alerts []data.Alert) Job {
	return Job{
		ID:         uuid.NewString(),
		FacilityID: facilityID,
		ReadingID:  readingID,
		Alerts:     alerts,
		CreatedAt:  time.Now(),
	}
}

// ChannelResult is the delivery outcome for one channel.
type ChannelResult struct {
	Channel string `json:"channel"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// Result aggregates per-channel outcomes for one job.
type Result struct {
	Success    bool            `json:"success"`
	PerChannel []ChannelResult `json:"per_channel"`
}

// Channel is a single delivery mechanism (email, log sink, ...).
type Channel interface {
	Name() string
	Send(ctx context.Context, job Job) error
}

// Enqueuer is the capability the alert dispatcher depends on.
type Enqueuer interface {
	Enqueue(job Job)
}

// Gateway delivers aggregated notification jobs asynchronously through a
// buffered channel and a single worker. Delivery is best-effort: failures
// are logged and never propagate to the pipeline.
type Gateway struct {
	channels []Channel
	mu       sync.Mutex
	closed   bool
	jobs     chan Job
	done     chan struct{}
	timeout  time.Duration
}

func NewGateway(channels ...Channel) *Gateway {
	return &Gateway{
		channels: channels,
		jobs:     make(chan Job, 64),
		done:     make(chan struct{}),
		timeout:  15 * time.Second,
	}
}

// Start launches the delivery worker.
func (g *Gateway) Start() {
	go g.run()
}

// Stop drains no further jobs and waits for the worker to exit. Safe to
// call more than once.
func (g *Gateway) Stop() {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return
	}
	g.closed = true
	close(g.jobs)
	g.mu.Unlock()
	<-g.done
}

// Enqueue hands a job to the worker without blocking the caller. When the
// queue is full, or the gateway has already been stopped (a handler still
// in flight during shutdown), the job is dropped and logged; alert records
// are already persisted, so nothing is lost beyond the push itself.
func (g *Gateway) Enqueue(job Job) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		logrus.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"reading_id": job.ReadingID,
		}).Warn("notification gateway stopped, dropping job")
		return
	}
	select {
	case g.jobs <- job:
	default:
		logrus.WithFields(logrus.Fields{
			"job_id":     job.ID,
			"reading_id": job.ReadingID,
		}).Warn("notification queue full, dropping job")
	}
}

func (g *Gateway) run() {
	defer close(g.done)
	for job := range g.jobs {
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		res := g.SendAggregated(ctx, job)
		cancel()

		logrus.WithFields(logrus.Fields{
			"job_id":   job.ID,
			"facility": job.FacilityID,
			"alerts":   len(job.Alerts),
			"success":  res.Success,
		}).Info("notification job processed")
	}
}

// SendAggregated pushes one job through every channel and reports the
// per-channel results. Channel errors are recorded, not returned.
func (g *Gateway) SendAggregated(ctx context.Context, job Job) Result {
	res := Result{Success: true}
	for _, ch := range g.channels {
		cr := ChannelResult{Channel: ch.Name(), Success: true}
		if err := ch.Send(ctx, job); err != nil {
			cr.Success = false
			cr.Error = err.Error()
			res.Success = false
			logrus.WithFields(logrus.Fields{
				"channel": ch.Name(),
				"job_id":  job.ID,
			}).WithError(err).Warn("notification channel delivery failed")
		}
		res.PerChannel = append(res.PerChannel, cr)
	}
	return res
}

// Summary renders the aggregated human-readable body shared by channels.
func (j Job) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Facility %s: %d threshold violation(s) on reading %s\n",
		j.FacilityID, len(j.Alerts), j.ReadingID)
	for _, a := range j.Alerts {
		fmt.Fprintf(&b, "- [%s] %s\n", strings.ToUpper(a.Severity), a.Message)
	}
	return b.String()
}
