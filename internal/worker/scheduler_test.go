package worker

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func testLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func TestScheduleFiresRelease(t *testing.T) {
	released := make(chan uint64, 1)
	s := NewReleaseScheduler(ReleaserFunc(func(_ context.Context, id uint64) error {
		released <- id
		return nil
	}), time.Second, testLogger())

	s.Schedule(42, 10*time.Millisecond)

	select {
	case id := <-released:
		assert.Equal(t, uint64(42), id)
	case <-time.After(2 * time.Second):
		t.Fatal("release never fired")
	}
}

func TestScheduleReleaseErrorIsSwallowed(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := NewReleaseScheduler(ReleaserFunc(func(_ context.Context, _ uint64) error {
		fired <- struct{}{}
		return context.DeadlineExceeded
	}), time.Second, testLogger())

	// Must not panic; the error is only logged.
	s.Schedule(7, 10*time.Millisecond)

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("release never fired")
	}
}
