package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool caps the number of chunks processed concurrently across all sessions.
// Model inference is blocking and CPU- or network-bound, so it must never run
// on a connection's read path; sessions enqueue work onto their own [Queue]
// and the pool's semaphore limits how many queues may run a task at once.
type Pool struct {
	sem *semaphore.Weighted
}

// NewPool creates a pool allowing up to workers simultaneous in-flight tasks.
func NewPool(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(workers))}
}

// NewQueue creates a per-session task queue with a bounded backlog. Tasks on
// one queue run strictly in submission order, one at a time; the pool's
// worker cap applies across all queues.
func (p *Pool) NewQueue(depth int) *Queue {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		pool:   p,
		tasks:  make(chan func(context.Context), depth),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Queue is one session's FIFO backlog. A single goroutine drains it, so two
// tasks from the same session never run concurrently — the ordering guarantee
// the per-session state machines rely on.
type Queue struct {
	pool   *Pool
	tasks  chan func(context.Context)
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.Mutex
	closed bool
}

// Submit enqueues fn. It never blocks: when the backlog is full the task is
// rejected and Submit returns false, and the caller accounts for the dropped
// chunk. fn receives a context that is cancelled when the queue closes.
func (q *Queue) Submit(fn func(context.Context)) bool {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return false
	}
	select {
	case q.tasks <- fn:
		q.mu.Unlock()
		return true
	default:
		q.mu.Unlock()
		return false
	}
}

// Close stops the queue. Queued tasks that have not started are discarded;
// a task already running has its context cancelled and its result is dropped
// by the session's emit path. Close is idempotent and returns once the drain
// goroutine has exited.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()

	q.cancel()
	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)
	for fn := range q.tasks {
		if q.ctx.Err() != nil {
			// Queue closed: discard the backlog without running it.
			continue
		}
		if err := q.pool.sem.Acquire(q.ctx, 1); err != nil {
			continue
		}
		func() {
			defer q.pool.sem.Release(1)
			defer func() {
				if r := recover(); r != nil {
					slog.Error("pipeline task panicked", "panic", r)
				}
			}()
			fn(q.ctx)
		}()
	}
}
