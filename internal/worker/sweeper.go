package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// ExpiredSweeper cancels stale pending reservations in bulk.
type ExpiredSweeper interface {
	SweepExpired(ctx context.Context, window time.Duration) (int, error)
}

// Sweeper periodically sweeps expired pending reservations.  It is the
// safety net behind the per-reservation release timers: it catches
// reservations whose timers were lost to a restart, and releasing an
// already cancelled reservation is a no-op, so the two mechanisms never
// conflict.
type Sweeper struct {
	svc      ExpiredSweeper
	interval time.Duration
	window   time.Duration
	log      *logrus.Entry
}

// NewSweeper builds a sweeper that runs every interval and cancels
// PENDING reservations older than window.
func NewSweeper(svc ExpiredSweeper, interval, window time.Duration, log *logrus.Entry) *Sweeper {
	return &Sweeper{svc: svc, interval: interval, window: window, log: log}
}

// Run sweeps on a fixed ticker until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.WithFields(logrus.Fields{
		"interval": s.interval,
		"window":   s.window,
	}).Info("expiry sweeper starting")
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("expiry sweeper shutting down")
			return
		case <-ticker.C:
			n, err := s.svc.SweepExpired(ctx, s.window)
			if err != nil {
				if ctx.Err() != nil {
					continue
				}
				s.log.WithError(err).Error("expiry sweep failed")
				continue
			}
			if n > 0 {
				s.log.WithField("count", n).Info("expiry sweep cancelled reservations")
			}
		}
	}
}
