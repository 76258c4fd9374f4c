// internal/notify/channels.go
package notify

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	gomail "gopkg.in/gomail.v2"
)

// SMTPConfig configures the email channel.
type SMTPConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from"`
	To       []string `mapstructure:"to"`
}

// EmailChannel delivers aggregated jobs as a single email per reading.
type EmailChannel struct {
	cfg    SMTPConfig
	dialer *gomail.Dialer
}

func NewEmailChannel(cfg SMTPConfig) *EmailChannel {
	return &EmailChannel{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password),
	}
}

func (c *EmailChannel) Name() string { return "email" }

func (c *EmailChannel) Send(_ context.Context, job Job) error {
	m := gomail.NewMessage()
	m.SetHeader("From", c.cfg.From)
	m.SetHeader("To", c.cfg.To...)
	m.SetHeader("Subject", fmt.Sprintf("[water-quality] %d violation(s) at facility %s",
		len(job.Alerts), job.FacilityID))
	m.SetBody("text/plain", job.Summary())

	if err := c.dialer.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}
	return nil
}

// LogChannel writes the aggregated job to the application log. Always
// enabled, so every high-severity reading leaves an operator-visible trace
// even with no SMTP configured.
type LogChannel struct{}

func (LogChannel) Name() string { return "log" }

func (LogChannel) Send(_ context.Context, job Job) error {
	logrus.WithFields(logrus.Fields{
		"job_id":      job.ID,
		"facility_id": job.FacilityID,
		"reading_id":  job.ReadingID,
		"alerts":      len(job.Alerts),
	}).Warn(job.Summary())
	return nil
}
