package cache

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// WarmupJob fills one cache key. Load runs on a warmer goroutine. When Store
// is set it replaces the plain cache write.
type WarmupJob struct {
	Key      string
	TTL      time.Duration
	Priority int
	Load     func(ctx context.Context) (interface{}, error)
	Store    func(ctx context.Context, value interface{}) error
}

type WarmerStats struct {
	Queued  int   `json:"queued"`
	Warmed  int64 `json:"warmed"`
	Failed  int64 `json:"failed"`
	Dropped int64 `json:"dropped"`
}

// Warmer fills cache entries in the background so the first read after a
// login is served from cache.
type Warmer struct {
	cache    Cache
	queue    *PriorityQueue
	workers  int
	maxQueue int
	timeout  time.Duration

	wake chan struct{}
	wg   sync.WaitGroup
	once sync.Once
	stop chan struct{}

	warmed  atomic.Int64
	failed  atomic.Int64
	dropped atomic.Int64
}

type WarmerConfig struct {
	Workers  int
	MaxQueue int
	Timeout  time.Duration
}

func DefaultWarmerConfig() WarmerConfig {
	return WarmerConfig{Workers: 2, MaxQueue: 1000, Timeout: 5 * time.Second}
}

func NewWarmer(c Cache, cfg WarmerConfig) *Warmer {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.MaxQueue <= 0 {
		cfg.MaxQueue = DefaultWarmerConfig().MaxQueue
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultWarmerConfig().Timeout
	}
	return &Warmer{
		cache:    c,
		queue:    NewPriorityQueue(),
		workers:  cfg.Workers,
		maxQueue: cfg.MaxQueue,
		timeout:  cfg.Timeout,
		wake:     make(chan struct{}, 1),
		stop:     make(chan struct{}),
	}
}

// Enqueue schedules job. A full queue drops the job; the next read simply
// misses the cache.
func (w *Warmer) Enqueue(job WarmupJob) {
	if w.queue.Len() >= w.maxQueue {
		w.dropped.Add(1)
		log.WithField("key", job.Key).Debug("warmup queue full, dropping job")
		return
	}
	w.queue.Push(job)
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// Start runs the worker goroutines until ctx is done or Stop is called.
func (w *Warmer) Start(ctx context.Context) {
	for i := 0; i < w.workers; i++ {
		w.wg.Add(1)
		go w.loop(ctx)
	}
	log.WithField("workers", w.workers).Debug("cache warmer started")
}

func (w *Warmer) Stop() {
	w.once.Do(func() { close(w.stop) })
	w.wg.Wait()
}

func (w *Warmer) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		if job, ok := w.queue.Pop(); ok {
			w.run(ctx, job)
			// another worker may be asleep with jobs still queued
			if w.queue.Len() > 0 {
				select {
				case w.wake <- struct{}{}:
				default:
				}
			}
			continue
		}
		select {
		case <-w.wake:
		case <-w.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Drain runs every queued job on the calling goroutine.
func (w *Warmer) Drain(ctx context.Context) {
	for {
		job, ok := w.queue.Pop()
		if !ok {
			return
		}
		w.run(ctx, job)
	}
}

func (w *Warmer) run(ctx context.Context, job WarmupJob) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	value, err := job.Load(ctx)
	if err == nil {
		if job.Store != nil {
			err = job.Store(ctx, value)
		} else {
			err = w.cache.Set(ctx, job.Key, value, job.TTL)
		}
	}
	if err != nil {
		w.failed.Add(1)
		log.WithFields(log.Fields{"key": job.Key, "error": err.Error()}).Warn("cache warmup failed")
		return
	}
	w.warmed.Add(1)
}

func (w *Warmer) Stats() WarmerStats {
	return WarmerStats{
		Queued:  w.queue.Len(),
		Warmed:  w.warmed.Load(),
		Failed:  w.failed.Load(),
		Dropped: w.dropped.Load(),
	}
}
