package worker

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingSweeper struct {
	calls  int64
	window time.Duration
}

func (c *countingSweeper) SweepExpired(_ context.Context, window time.Duration) (int, error) {
	atomic.AddInt64(&c.calls, 1)
	c.window = window
	return 0, nil
}

func TestSweeperRunsUntilCancelled(t *testing.T) {
	cs := &countingSweeper{}
	s := NewSweeper(cs, 20*time.Millisecond, 30*time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	time.Sleep(120 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop on cancel")
	}

	assert.GreaterOrEqual(t, atomic.LoadInt64(&cs.calls), int64(2))
	assert.Equal(t, 30*time.Minute, cs.window)
}
