// Package worker runs quest refill jobs off the queue.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/profilequest/internal/domain/model"
	"github.com/okian/profilequest/pkg/logger"
	"github.com/okian/profilequest/pkg/metrics"
)

// Job is what workers read off the queue.
type Job = model.RefillJob

// Processor performs one refill and reports how many quests it added.
type Processor interface {
	Process(ctx context.Context, job Job) (int, error)
}

// ProcessorFunc adapts a function to Processor.
type ProcessorFunc func(ctx context.Context, job Job) (int, error)

// Process calls f.
func (f ProcessorFunc) Process(ctx context.Context, job Job) (int, error) { return f(ctx, job) }

// Queue defines how workers receive jobs.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Job
}

// InMemoryWorker pulls jobs from a queue and hands them to a Processor.
type InMemoryWorker struct {
	queue     Queue
	processor Processor
	name      string
	active    *atomic.Int64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger logger.Logger
}

// NewInMemoryWorker creates a worker.
func NewInMemoryWorker(q Queue, p Processor, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:     q,
		processor: p,
		name:      "worker",
		active:    new(atomic.Int64),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.logger == nil {
		w.logger = logger.Get().Named(w.name)
	}
	return w
}

// Run processes jobs until the queue drains after Close, ctx is done, or
// Shutdown is called.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	jobs := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stop:
			return
		case job, ok := <-jobs:
			if !ok {
				return
			}
			if err := w.process(ctx, job); err != nil {
				w.logger.Error(ctx, "refill failed", logger.String("user_id", job.UserID), logger.Error(err))
			}
		}
	}
}

// Shutdown stops the worker after the current job.
func (w *InMemoryWorker) Shutdown(ctx context.Context) error {
	w.halt()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker %s shutdown: %w", w.name, ctx.Err())
	}
}

func (w *InMemoryWorker) halt() { w.stopOnce.Do(func() { close(w.stop) }) }

func (w *InMemoryWorker) process(ctx context.Context, job Job) (err error) {
	metrics.UpdateWorkerActiveCount(int(w.active.Add(1)))
	start := time.Now()
	defer func() {
		metrics.UpdateWorkerActiveCount(int(w.active.Add(-1)))
		metrics.RecordWorkerProcessingLatency(float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			err = fmt.Errorf("refill panic: %v", r)
		}
		if err != nil {
			metrics.RecordWorkerError()
			metrics.RecordErrorByComponent("worker", "refill_error")
		}
	}()

	n, err := w.processor.Process(ctx, job)
	if err != nil {
		return err
	}
	metrics.RecordQuestsRefilled(n)
	w.logger.Debug(ctx, "refill done", logger.String("user_id", job.UserID), logger.Int("added", n))
	return nil
}

// Pool runs several workers over one queue.
type Pool struct {
	workers []*InMemoryWorker
	queue   Queue
	wg      sync.WaitGroup
	logger  logger.Logger
}

// NewPool creates workerCount workers; values < 1 use runtime.NumCPU().
func NewPool(workerCount int, q Queue, p Processor) *Pool {
	if workerCount < 1 {
		workerCount = runtime.NumCPU()
	}
	pool := &Pool{
		workers: make([]*InMemoryWorker, workerCount),
		queue:   q,
		logger:  logger.Get().Named("worker-pool"),
	}
	active := new(atomic.Int64)
	for i := range pool.workers {
		pool.workers[i] = NewInMemoryWorker(q, p,
			WithName("refill-worker-"+strconv.Itoa(i)),
			withActiveCounter(active))
	}
	metrics.UpdateWorkerActiveCount(0)
	return pool
}

// Size returns the number of workers.
func (p *Pool) Size() int { return len(p.workers) }

// Start launches every worker.
func (p *Pool) Start(ctx context.Context) {
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(w *InMemoryWorker) {
			defer p.wg.Done()
			w.Run(ctx)
		}(w)
	}
	p.logger.Info(ctx, "refill workers started", logger.Int("workers", len(p.workers)))
}

// Shutdown closes the queue and lets workers drain it. When ctx ends first
// the remaining workers are stopped after their current job.
func (p *Pool) Shutdown(ctx context.Context) error {
	if closer, ok := p.queue.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}

	drained := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		p.logger.Warn(ctx, "refill queue not drained before deadline")
		for _, w := range p.workers {
			w.halt()
		}
		return fmt.Errorf("worker pool shutdown: %w", ctx.Err())
	}
}
