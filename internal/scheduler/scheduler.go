package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/pkg/common/logger"
)

// Task is a unit of periodic work. Implementations handle their own errors.
type Task interface {
	Run(ctx context.Context)
}

// TaskFunc adapts a function to Task.
type TaskFunc func(ctx context.Context)

func (f TaskFunc) Run(ctx context.Context) { f(ctx) }

type entry struct {
	key      string
	task     Task
	interval time.Duration
	running  *atomic.Bool
	stop     chan struct{}
	log      *slog.Logger
}

// Scheduler runs keyed tasks on fixed intervals with at most one
// in-flight invocation per key.
type Scheduler struct {
	ctx     context.Context
	mu      sync.Mutex
	entries map[string]*entry
	// inflight outlives an entry while its last run is still going, so a
	// key removed and re-added never runs twice at once
	inflight map[string]*atomic.Bool
	stopped  bool
	wg       sync.WaitGroup
}

func New(ctx context.Context) *Scheduler {
	return &Scheduler{
		ctx:      ctx,
		entries:  make(map[string]*entry),
		inflight: make(map[string]*atomic.Bool),
	}
}

// Add registers task under key. It returns false when the key is already
// registered or the scheduler is stopped. The first run starts
// immediately; the ticker is armed once it completes. If a removed task
// under the same key is still running, the first run waits for a tick
// after it finishes.
func (s *Scheduler) Add(key string, task Task, interval time.Duration) bool {
	if interval <= 0 {
		interval = time.Second
	}

	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return false
	}
	if _, ok := s.entries[key]; ok {
		s.mu.Unlock()
		return false
	}
	running, ok := s.inflight[key]
	if !ok {
		running = new(atomic.Bool)
		s.inflight[key] = running
	}
	e := &entry{
		key:      key,
		task:     task,
		interval: interval,
		running:  running,
		stop:     make(chan struct{}),
		log:      logger.With("component", "scheduler", "task", key),
	}
	s.entries[key] = e
	metrics.SchedulerTasks.Set(float64(len(s.entries)))
	s.mu.Unlock()

	s.wg.Add(1)
	go s.loop(e)

	e.log.Info("Task registered", "interval", interval)
	return true
}

// Remove stops future ticks for key. An in-flight run is not interrupted.
func (s *Scheduler) Remove(key string) bool {
	s.mu.Lock()
	e, ok := s.entries[key]
	if ok {
		delete(s.entries, key)
		close(e.stop)
		if !e.running.Load() {
			delete(s.inflight, key)
		}
		metrics.SchedulerTasks.Set(float64(len(s.entries)))
	}
	s.mu.Unlock()

	if ok {
		e.log.Info("Task removed")
	}
	return ok
}

func (s *Scheduler) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[key]
	return ok
}

// Keys returns the registered keys in sorted order.
func (s *Scheduler) Keys() []string {
	s.mu.Lock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	s.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Stop removes every task and waits for the tick loops to exit. A loop
// still in its first run exits once that run returns; later runs are not
// waited on.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for key, e := range s.entries {
		close(e.stop)
		delete(s.entries, key)
	}
	metrics.SchedulerTasks.Set(0)
	s.mu.Unlock()

	s.wg.Wait()
}

func (s *Scheduler) loop(e *entry) {
	defer s.wg.Done()

	switch s.claim(e) {
	case claimed:
		s.invoke(e)
	case removed:
		return
	default:
		metrics.SchedulerSkippedTotal.WithLabelValues(e.key).Inc()
		e.log.Debug("Previous run still in flight, deferring first run to the next tick")
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stop:
			return
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			switch s.claim(e) {
			case claimed:
				go s.invoke(e)
			case removed:
				return
			default:
				metrics.SchedulerSkippedTotal.WithLabelValues(e.key).Inc()
				e.log.Debug("Previous run still in flight, skipping tick")
			}
		}
	}
}

type claim int

const (
	busy claim = iota
	claimed
	removed
)

// claim marks e as running. A claim made after Remove is released again so
// a re-added entry under the same key owns the next run.
func (s *Scheduler) claim(e *entry) claim {
	if !e.running.CompareAndSwap(false, true) {
		return busy
	}
	select {
	case <-e.stop:
		e.running.Store(false)
		return removed
	default:
		return claimed
	}
}

// invoke expects e.running to be set by claim and clears it when done.
func (s *Scheduler) invoke(e *entry) {
	defer e.running.Store(false)
	defer func() {
		if r := recover(); r != nil {
			metrics.SchedulerPanicsTotal.WithLabelValues(e.key).Inc()
			e.log.Error("Task panicked", "panic", r, "stack", string(debug.Stack()))
		}
	}()

	metrics.SchedulerRunsTotal.WithLabelValues(e.key).Inc()
	e.task.Run(s.ctx)
}
