package pubworker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startedPool(t *testing.T, workers, queueSize int) *Pool {
	t.Helper()
	pool := NewPool(workers, queueSize)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})
	return pool
}

func TestDispatchRunsJob(t *testing.T) {
	pool := startedPool(t, 2, 10)

	done := make(chan string, 1)
	ok := pool.TryDispatch(PublishJob{
		PostID: "p1",
		Handler: func(ctx context.Context) error {
			done <- "p1"
			return nil
		},
	})
	require.True(t, ok)

	select {
	case id := <-done:
		assert.Equal(t, "p1", id)
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestSamePostStaysOrdered(t *testing.T) {
	pool := startedPool(t, 4, 50)

	var mu sync.Mutex
	var order []int
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		seq := i
		wg.Add(1)
		ok := pool.TryDispatch(PublishJob{
			PostID: "same-post",
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				mu.Lock()
				order = append(order, seq)
				mu.Unlock()
				return nil
			},
		})
		require.True(t, ok)
	}
	wg.Wait()

	// Sharding by post id keeps same-post jobs on one worker, in order.
	require.Len(t, order, 20)
	for i, seq := range order {
		assert.Equal(t, i, seq)
	}
}

func TestTryDispatchRejectsWhenFull(t *testing.T) {
	pool := NewPool(1, 1)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	t.Cleanup(func() {
		cancel()
		pool.Stop()
	})

	block := make(chan struct{})
	release := func() { close(block) }

	// First job occupies the single worker.
	require.True(t, pool.TryDispatch(PublishJob{
		PostID:  "a",
		Handler: func(ctx context.Context) error { <-block; return nil },
	}))
	// Give the worker a moment to pick the job up, then fill the queue.
	time.Sleep(50 * time.Millisecond)
	require.True(t, pool.TryDispatch(PublishJob{
		PostID:  "a",
		Handler: func(ctx context.Context) error { return nil },
	}))

	// Queue of one is now full.
	assert.False(t, pool.TryDispatch(PublishJob{
		PostID:  "a",
		Handler: func(ctx context.Context) error { return nil },
	}))
	assert.Equal(t, int64(1), pool.GetStats().TotalDropped)

	release()
}

func TestPanicInJobDoesNotKillWorker(t *testing.T) {
	pool := startedPool(t, 1, 10)

	var ran int32
	var wg sync.WaitGroup
	wg.Add(2)

	require.True(t, pool.TryDispatch(PublishJob{
		PostID: "boom",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			panic("publish handler exploded")
		},
	}))
	require.True(t, pool.TryDispatch(PublishJob{
		PostID: "after",
		Handler: func(ctx context.Context) error {
			defer wg.Done()
			atomic.StoreInt32(&ran, 1)
			return nil
		},
	}))

	wg.Wait()
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran), "worker should survive a panicking job")
	assert.Equal(t, int64(1), pool.GetStats().TotalErrors)
}

func TestStopDrainsAcceptedJobs(t *testing.T) {
	pool := NewPool(2, 50)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)

	var processed int64
	for i := 0; i < 20; i++ {
		require.True(t, pool.TryDispatch(PublishJob{
			PostID: fmt.Sprintf("p%d", i),
			Handler: func(ctx context.Context) error {
				atomic.AddInt64(&processed, 1)
				return nil
			},
		}))
	}

	cancel()
	pool.Stop()

	assert.Equal(t, int64(20), atomic.LoadInt64(&processed), "accepted jobs must not be lost on shutdown")
}

func TestDispatchAfterStopRejected(t *testing.T) {
	pool := NewPool(1, 10)
	ctx, cancel := context.WithCancel(context.Background())
	pool.Start(ctx)
	cancel()
	pool.Stop()

	assert.False(t, pool.TryDispatch(PublishJob{
		PostID:  "late",
		Handler: func(ctx context.Context) error { return nil },
	}))
}

func TestGetStatsCountsWork(t *testing.T) {
	pool := startedPool(t, 2, 10)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		require.True(t, pool.TryDispatch(PublishJob{
			PostID: fmt.Sprintf("p%d", i),
			Handler: func(ctx context.Context) error {
				defer wg.Done()
				return nil
			},
		}))
	}
	wg.Wait()

	// handle() increments the processed counters after the handler returns,
	// so give the workers a beat to finish bookkeeping.
	time.Sleep(50 * time.Millisecond)

	stats := pool.GetStats()
	assert.Equal(t, 2, stats.NumWorkers)
	assert.Equal(t, int64(6), stats.TotalDispatched)
	assert.Equal(t, int64(6), stats.TotalProcessed)
	assert.Len(t, stats.WorkerStats, 2)
}
