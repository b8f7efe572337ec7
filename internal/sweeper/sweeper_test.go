package sweeper_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/ferretex/ferretex-api/internal/sweeper"
)

type countingSweep struct {
	calls int32
	err   error
}

func (c *countingSweep) Sweep(ctx context.Context, limit int) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 0, c.err
}

func (c *countingSweep) count() int32 { return atomic.LoadInt32(&c.calls) }

func runSweeper(sw *sweeper.Sweeper) (cancel func(), done chan struct{}) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	done = make(chan struct{})
	go func() {
		sw.Run(ctx)
		close(done)
	}()
	return cancelCtx, done
}

func waitCalls(t *testing.T, c *countingSweep, n int32) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for c.count() < n {
		select {
		case <-deadline:
			t.Fatalf("sweep called %d times, want at least %d", c.count(), n)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestRunTicksAndStopsOnCancel(t *testing.T) {
	c := &countingSweep{}
	cancel, done := runSweeper(&sweeper.Sweeper{Engine: c, Interval: 5 * time.Millisecond, Limit: 10})

	waitCalls(t, c, 2)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunSurvivesSweepErrors(t *testing.T) {
	c := &countingSweep{err: errors.New("db gone")}
	cancel, done := runSweeper(&sweeper.Sweeper{Engine: c, Interval: 5 * time.Millisecond, Limit: 10})
	defer cancel()

	// a failing pass must not stop the loop: ticks keep coming
	waitCalls(t, c, 3)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.GreaterOrEqual(t, c.count(), int32(3))
}
