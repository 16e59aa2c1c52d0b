package pipeline

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestQueueRunsTasksInOrder(t *testing.T) {
	pool := NewPool(4)
	q := pool.NewQueue(16)
	defer q.Close()

	var (
		mu  sync.Mutex
		got []int
	)
	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		i := i
		ok := q.Submit(func(context.Context) {
			mu.Lock()
			got = append(got, i)
			if len(got) == 10 {
				close(done)
			}
			mu.Unlock()
		})
		if !ok {
			t.Fatalf("Submit(%d) rejected with empty backlog", i)
		}
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for tasks")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, v := range got {
		if v != i {
			t.Fatalf("task order = %v, want ascending", got)
		}
	}
}

func TestQueueRejectsWhenFull(t *testing.T) {
	pool := NewPool(1)
	q := pool.NewQueue(1)
	defer q.Close()

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(func(context.Context) {
		close(started)
		<-release
	})
	<-started

	// One slot in the backlog, then rejection.
	if !q.Submit(func(context.Context) {}) {
		t.Fatal("Submit() rejected with backlog space available")
	}
	if q.Submit(func(context.Context) {}) {
		t.Error("Submit() accepted beyond backlog capacity")
	}
	close(release)
}

func TestPoolCapsConcurrency(t *testing.T) {
	pool := NewPool(2)

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	task := func(context.Context) {
		defer wg.Done()
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
	}

	queues := make([]*Queue, 6)
	for i := range queues {
		queues[i] = pool.NewQueue(4)
		defer queues[i].Close()
		wg.Add(1)
		queues[i].Submit(task)
	}
	wg.Wait()

	if got := peak.Load(); got > 2 {
		t.Errorf("peak concurrency = %d, want ≤ 2", got)
	}
}

func TestQueueCloseDiscardsBacklog(t *testing.T) {
	pool := NewPool(1)
	q := pool.NewQueue(8)

	started := make(chan struct{})
	release := make(chan struct{})
	q.Submit(func(ctx context.Context) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
	})
	<-started

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		q.Submit(func(context.Context) { ran.Add(1) })
	}

	go func() {
		time.Sleep(10 * time.Millisecond)
		close(release)
	}()
	q.Close()

	if got := ran.Load(); got != 0 {
		t.Errorf("%d queued tasks ran after Close", got)
	}

	if q.Submit(func(context.Context) {}) {
		t.Error("Submit() accepted after Close")
	}
	// Idempotent.
	q.Close()
}
