package cache

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordingJob(key string, priority int, ran *[]string, mu *sync.Mutex) WarmupJob {
	return WarmupJob{
		Key:      key,
		Priority: priority,
		TTL:      time.Minute,
		Load: func(context.Context) (interface{}, error) {
			mu.Lock()
			*ran = append(*ran, key)
			mu.Unlock()
			return key + "-value", nil
		},
	}
}

func TestPriorityQueue_OrderAndDedupe(t *testing.T) {
	pq := NewPriorityQueue()

	assert.True(t, pq.Push(WarmupJob{Key: "a", Priority: 1}))
	assert.True(t, pq.Push(WarmupJob{Key: "b", Priority: 5}))
	assert.True(t, pq.Push(WarmupJob{Key: "c", Priority: 1}))
	assert.False(t, pq.Push(WarmupJob{Key: "a", Priority: 0}), "queued key is replaced, not duplicated")
	assert.Equal(t, 3, pq.Len())

	var order []string
	for {
		job, ok := pq.Pop()
		if !ok {
			break
		}
		order = append(order, job.Key)
	}
	assert.Equal(t, []string{"b", "a", "c"}, order)
}

func TestWarmer_DrainFillsCacheByPriority(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	w := NewWarmer(mc, DefaultWarmerConfig())

	var mu sync.Mutex
	var ran []string
	w.Enqueue(recordingJob("board:1", 1, &ran, &mu))
	w.Enqueue(recordingJob("board:2", 9, &ran, &mu))
	w.Enqueue(recordingJob("board:1", 1, &ran, &mu))

	w.Drain(ctx)

	assert.Equal(t, []string{"board:2", "board:1"}, ran)
	var got string
	require.NoError(t, mc.Get(ctx, "board:1", &got))
	assert.Equal(t, "board:1-value", got)
	assert.Equal(t, WarmerStats{Warmed: 2}, w.Stats())
}

func TestWarmer_FailuresAndCustomStore(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	w := NewWarmer(mc, DefaultWarmerConfig())

	w.Enqueue(WarmupJob{Key: "broken", Load: func(context.Context) (interface{}, error) {
		return nil, errors.New("db down")
	}})
	var stored interface{}
	w.Enqueue(WarmupJob{
		Key:   "custom",
		Load:  func(context.Context) (interface{}, error) { return 42, nil },
		Store: func(_ context.Context, v interface{}) error { stored = v; return nil },
	})
	w.Drain(ctx)

	assert.Equal(t, 42, stored)
	assert.Equal(t, 0, mc.Len(), "custom store bypasses the plain cache write")
	stats := w.Stats()
	assert.Equal(t, int64(1), stats.Warmed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestWarmer_FullQueueDrops(t *testing.T) {
	w := NewWarmer(NewMemoryCache(), WarmerConfig{Workers: 1, MaxQueue: 2})
	noop := func(context.Context) (interface{}, error) { return nil, nil }

	w.Enqueue(WarmupJob{Key: "a", Load: noop})
	w.Enqueue(WarmupJob{Key: "b", Load: noop})
	w.Enqueue(WarmupJob{Key: "c", Load: noop})

	stats := w.Stats()
	assert.Equal(t, 2, stats.Queued)
	assert.Equal(t, int64(1), stats.Dropped)
}

func TestWarmer_WorkersRunUntilStopped(t *testing.T) {
	ctx := context.Background()
	mc := NewMemoryCache()
	w := NewWarmer(mc, WarmerConfig{Workers: 2, Timeout: time.Second})
	w.Start(ctx)
	t.Cleanup(w.Stop)

	var mu sync.Mutex
	var ran []string
	for _, key := range []string{"board:1", "board:2", "board:3"} {
		w.Enqueue(recordingJob(key, 1, &ran, &mu))
	}

	assert.Eventually(t, func() bool { return w.Stats().Warmed == 3 }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, 3, mc.Len())

	w.Stop()
	w.Stop()
}
