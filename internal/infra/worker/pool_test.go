package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestPoolRunsSubmittedTasks(t *testing.T) {
	p := NewPool(2, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	var done atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		if err := p.Submit(func(context.Context) error {
			defer wg.Done()
			done.Add(1)
			return nil
		}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	wg.Wait()
	if done.Load() != 5 {
		t.Fatalf("ran %d tasks, want 5", done.Load())
	}
}

func TestPoolSurvivesPanickingTask(t *testing.T) {
	p := NewPool(1, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	_ = p.Submit(func(context.Context) error { panic("boom") })
	ran := make(chan struct{})
	_ = p.Submit(func(context.Context) error { close(ran); return nil })

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("worker died after a panic")
	}
}

func TestSubmitRejectsNilAndFullQueue(t *testing.T) {
	p := NewPool(1, nil) // not started: nothing drains the queue
	if err := p.Submit(nil); !errors.Is(err, ErrNilTask) {
		t.Fatalf("Submit(nil) = %v", err)
	}
	for i := 0; i < cap(p.jobs); i++ {
		if err := p.Submit(func(context.Context) error { return nil }); err != nil {
			t.Fatalf("Submit #%d: %v", i, err)
		}
	}
	if err := p.Submit(func(context.Context) error { return nil }); !errors.Is(err, ErrQueueFull) {
		t.Fatalf("Submit on full queue = %v, want ErrQueueFull", err)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	p := NewPool(1, nil)
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}
