// Package jobs runs the periodic maintenance around the checkout log.
package jobs

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/open-rails/purchasekit/entitlements"
)

// SessionSweeper expires checkout log rows that stayed open past the
// reservation window. Observability hygiene only: entitlement rows are never
// touched, and an "expired" session that later completes is still fulfilled
// by the webhook.
type SessionSweeper struct {
	sessions entitlements.SessionLog
	maxAge   time.Duration
	log      *logrus.Logger
	cron     *cron.Cron
}

func NewSessionSweeper(sessions entitlements.SessionLog, maxAge time.Duration, log *logrus.Logger) *SessionSweeper {
	if maxAge <= 0 {
		maxAge = 24 * time.Hour
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &SessionSweeper{sessions: sessions, maxAge: maxAge, log: log}
}

// Start schedules the sweep on the given cron spec ("@hourly" when empty)
// and runs until Stop.
func (s *SessionSweeper) Start(spec string) error {
	if spec == "" {
		spec = "@hourly"
	}
	c := cron.New()
	if _, err := c.AddFunc(spec, func() { s.Sweep(context.Background()) }); err != nil {
		return err
	}
	c.Start()
	s.cron = c
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *SessionSweeper) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Sweep expires open sessions older than the window. Exposed for tests and
// for one-shot invocation.
func (s *SessionSweeper) Sweep(ctx context.Context) {
	cutoff := time.Now().Add(-s.maxAge)
	n, err := s.sessions.ExpireOlderThan(ctx, cutoff)
	if err != nil {
		s.log.WithError(err).Warn("checkout session sweep failed")
		return
	}
	if n > 0 {
		s.log.WithField("expired", n).Info("checkout sessions expired")
	}
}
