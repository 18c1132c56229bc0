//go:build !integration

package sched

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"telegram-storefront-bot/internal/domain/model"
)

type countingStats struct {
	calls atomic.Int32
	err   error
}

func (c *countingStats) Overview(context.Context) (model.Stats, error) {
	c.calls.Add(1)
	return model.Stats{Recipients: 3, ActiveWeek: 1}, c.err
}

func TestRecipientStatsWorkerRefreshesUntilCancelled(t *testing.T) {
	stats := &countingStats{}
	var pool atomic.Int32
	w := NewRecipientStatsWorker(10*time.Millisecond, stats, func() { pool.Add(1) }, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()
	err := w.Run(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v, want deadline exceeded", err)
	}
	if n := stats.calls.Load(); n < 2 {
		t.Fatalf("expected the initial refresh plus ticks, got %d", n)
	}
	if pool.Load() != stats.calls.Load() {
		t.Fatalf("pool stats reported %d times, overview %d times", pool.Load(), stats.calls.Load())
	}
}

func TestRecipientStatsWorkerSurvivesErrors(t *testing.T) {
	stats := &countingStats{err: errors.New("db down")}
	w := NewRecipientStatsWorker(5*time.Millisecond, stats, nil, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = w.Run(ctx)
	if stats.calls.Load() < 2 {
		t.Fatalf("worker stopped after the first error")
	}
}
