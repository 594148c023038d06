package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"reelgen/internal/jobs"
)

type countingRefresher struct {
	calls  atomic.Int32
	err    error
	cancel context.CancelFunc
	stopAt int32
}

func (c *countingRefresher) RefreshPending(ctx context.Context, schedule *jobs.RefreshSchedule) (int, error) {
	if schedule == nil {
		return 0, errors.New("schedule missing")
	}
	if c.calls.Add(1) >= c.stopAt {
		c.cancel()
	}
	return 1, c.err
}

func TestWorkerSweepsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ref := &countingRefresher{cancel: cancel, stopAt: 3, err: errors.New("status check failed")}
	w := &jobWorker{
		jobs:     ref,
		schedule: jobs.NewRefreshSchedule(time.Minute),
		logger:   zerolog.Nop(),
		tick:     time.Millisecond,
	}

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("Run returned %v, want context.Canceled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not stop")
	}
	if got := ref.calls.Load(); got < 3 {
		t.Fatalf("expected at least 3 sweeps, got %d", got)
	}
}
