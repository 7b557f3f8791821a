package worker_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/okian/profilequest/internal/adapters/mq/queue"
	"github.com/okian/profilequest/internal/adapters/mq/worker"
	"github.com/okian/profilequest/internal/domain/model"
	logging "github.com/okian/profilequest/pkg/logger"
	"github.com/smartystreets/goconvey/convey"
)

type mockQueue struct {
	jobs chan model.RefillJob
	once sync.Once
}

func newMockQueue() *mockQueue {
	return &mockQueue{jobs: make(chan model.RefillJob, 10)}
}

func (mq *mockQueue) Dequeue(context.Context) <-chan model.RefillJob { return mq.jobs }

func (mq *mockQueue) Close() error {
	mq.once.Do(func() { close(mq.jobs) })
	return nil
}

type mockProcessor struct {
	mu    sync.Mutex
	seen  []string
	fail  map[string]error
	delay time.Duration
}

func newMockProcessor() *mockProcessor {
	return &mockProcessor{fail: make(map[string]error)}
}

func (mp *mockProcessor) Process(ctx context.Context, job model.RefillJob) (int, error) {
	if mp.delay > 0 {
		time.Sleep(mp.delay)
	}
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.seen = append(mp.seen, job.UserID)
	if err := mp.fail[job.UserID]; err != nil {
		return 0, err
	}
	return 5, nil
}

func (mp *mockProcessor) processed() []string {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	return append([]string(nil), mp.seen...)
}

func waitFor(cond func() bool) bool {
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return false
}

func TestInMemoryWorker(t *testing.T) {
	convey.Convey("Given a worker over a queue", t, func() {
		_ = logging.Init()
		q := newMockQueue()
		p := newMockProcessor()
		w := worker.NewInMemoryWorker(q, p, worker.WithName("test-worker"))
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go w.Run(ctx)

		convey.Convey("When jobs arrive", func() {
			q.jobs <- model.RefillJob{UserID: "u1", Reason: "completion"}
			q.jobs <- model.RefillJob{UserID: "u2", Reason: "completion"}

			convey.Convey("Then each one reaches the processor in order", func() {
				convey.So(waitFor(func() bool { return len(p.processed()) == 2 }), convey.ShouldBeTrue)
				convey.So(p.processed(), convey.ShouldResemble, []string{"u1", "u2"})
			})
		})

		convey.Convey("When the processor fails for one job", func() {
			p.fail["bad"] = errors.New("model unavailable")
			q.jobs <- model.RefillJob{UserID: "bad"}
			q.jobs <- model.RefillJob{UserID: "good"}

			convey.Convey("Then the worker keeps going", func() {
				convey.So(waitFor(func() bool { return len(p.processed()) == 2 }), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the processor panics", func() {
			q2 := newMockQueue()
			var calls sync.WaitGroup
			calls.Add(2)
			panicking := worker.NewInMemoryWorker(q2, worker.ProcessorFunc(func(context.Context, model.RefillJob) (int, error) {
				defer calls.Done()
				panic("boom")
			}))
			go panicking.Run(ctx)
			q2.jobs <- model.RefillJob{UserID: "u1"}
			q2.jobs <- model.RefillJob{UserID: "u2"}

			convey.Convey("Then the worker survives and shuts down cleanly", func() {
				calls.Wait()
				sctx, scancel := context.WithTimeout(context.Background(), time.Second)
				defer scancel()
				convey.So(panicking.Shutdown(sctx), convey.ShouldBeNil)
			})
		})

		convey.Convey("When shut down", func() {
			sctx, scancel := context.WithTimeout(context.Background(), time.Second)
			defer scancel()

			convey.Convey("Then it stops and a second shutdown is harmless", func() {
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
				convey.So(w.Shutdown(sctx), convey.ShouldBeNil)
			})
		})
	})
}

func TestPool(t *testing.T) {
	convey.Convey("Given a pool over a real queue", t, func() {
		_ = logging.Init()
		q := queue.NewInMemoryQueue(queue.WithCapacity(64))
		p := newMockProcessor()
		pool := worker.NewPool(4, q, p)
		convey.So(pool.Size(), convey.ShouldEqual, 4)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		pool.Start(ctx)

		convey.Convey("When jobs are enqueued and the pool shuts down", func() {
			for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
				convey.So(q.Enqueue(ctx, model.RefillJob{UserID: id}), convey.ShouldBeTrue)
			}
			sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer scancel()
			err := pool.Shutdown(sctx)

			convey.Convey("Then every queued job is drained first", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.processed(), convey.ShouldHaveLength, 6)
				convey.So(q.IsClosed(), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the shutdown deadline passes before the queue drains", func() {
			p.delay = 200 * time.Millisecond
			for _, id := range []string{"a", "b", "c", "d", "e", "f", "g", "h"} {
				q.Enqueue(ctx, model.RefillJob{UserID: id})
			}
			sctx, scancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
			defer scancel()

			convey.Convey("Then shutdown reports the deadline", func() {
				err := pool.Shutdown(sctx)
				convey.So(errors.Is(err, context.DeadlineExceeded), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the worker count is not positive", func() {
			convey.So(worker.NewPool(0, q, p).Size(), convey.ShouldBeGreaterThan, 0)
		})
	})
}
