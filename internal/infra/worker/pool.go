// File: internal/infra/worker/pool.go
package worker

import (
	"context"
	"errors"
	"runtime"
	"sync"

	"github.com/rs/zerolog"
)

// A small worker pool for jobs that must not run on the Telegram update
// workers (broadcast, recall, import).

type Task func(ctx context.Context) error

var (
	ErrNilTask   = errors.New("nil task")
	ErrQueueFull = errors.New("worker queue full")
)

type Pool struct {
	wg       sync.WaitGroup
	jobs     chan Task
	quit     chan struct{}
	stopOnce sync.Once
	n        int
	log      zerolog.Logger
}

func NewPool(workers int, logger *zerolog.Logger) *Pool {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "worker_pool").Logger()
	}
	return &Pool{jobs: make(chan Task, workers*4), quit: make(chan struct{}), n: workers, log: l}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.n; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case <-p.quit:
					return
				case task := <-p.jobs:
					p.run(ctx, id, task)
				}
			}
		}(i)
	}
}

func (p *Pool) run(ctx context.Context, id int, task Task) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Error().Int("worker", id).Interface("panic", r).Msg("task panicked")
		}
	}()
	if err := task(ctx); err != nil {
		p.log.Warn().Err(err).Int("worker", id).Msg("task error")
	}
}

// Stop signals the workers and waits for running tasks. Queued tasks that
// have not started are dropped.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.quit) })
	p.wg.Wait()
}

// Submit never blocks: a saturated queue returns ErrQueueFull.
func (p *Pool) Submit(task Task) error {
	if task == nil {
		return ErrNilTask
	}
	select {
	case p.jobs <- task:
		return nil
	default:
		return ErrQueueFull
	}
}
