// Package worker contains the background execution contexts: the
// delayed release scheduler, the expiry sweeper and the refund consumer
// handler.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
)

// Releaser releases a reservation's seats if it is still pending.
type Releaser interface {
	Release(ctx context.Context, reservationID uint64) error
}

// ReleaserFunc adapts a plain function to the Releaser interface.
type ReleaserFunc func(ctx context.Context, reservationID uint64) error

func (f ReleaserFunc) Release(ctx context.Context, reservationID uint64) error {
	return f(ctx, reservationID)
}

// ReleaseScheduler fires a release callback a fixed delay after a
// reservation is created.  Timers are in-process and deliberately never
// cancelled: a timer firing for a reservation that was confirmed or
// already released is a no-op in the releaser, which is simpler than
// tracking live timers.  Timers do not survive a restart; the expiry
// sweep covers that gap.
type ReleaseScheduler struct {
	releaser Releaser
	timeout  time.Duration
	log      *logrus.Entry
}

// NewReleaseScheduler builds a scheduler.  timeout bounds each release
// call once its timer fires.
func NewReleaseScheduler(releaser Releaser, timeout time.Duration, log *logrus.Entry) *ReleaseScheduler {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReleaseScheduler{releaser: releaser, timeout: timeout, log: log}
}

// Schedule arms a timer that releases the reservation after delay.
func (s *ReleaseScheduler) Schedule(reservationID uint64, delay time.Duration) {
	time.AfterFunc(delay, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if err := s.releaser.Release(ctx, reservationID); err != nil {
			s.log.WithError(err).WithField("reservation_id", reservationID).
				Warn("scheduled release failed")
		}
	})
}
