package worker

import (
	"context"
	"time"

	"github.com/fystack/payment-gateway/internal/scheduler"
	"github.com/fystack/payment-gateway/pkg/common/logger"
)

const defaultShutdownTimeout = 30 * time.Second

type registration struct {
	key      string
	task     scheduler.Task
	interval time.Duration
}

type closer struct {
	name  string
	close func() error
}

// Manager owns the scheduler, the long-lived tasks registered at startup and
// the resources to release on shutdown.
type Manager struct {
	scheduler *scheduler.Scheduler
	tasks     []registration
	closers   []closer
}

func NewManager(ctx context.Context) *Manager {
	return &Manager{scheduler: scheduler.New(ctx)}
}

func (m *Manager) Scheduler() *scheduler.Scheduler {
	return m.scheduler
}

// AddTask queues a task for registration in Start.
func (m *Manager) AddTask(key string, task scheduler.Task, interval time.Duration) {
	m.tasks = append(m.tasks, registration{key: key, task: task, interval: interval})
}

// AddCloser registers a resource to close on Stop, in reverse order of registration.
func (m *Manager) AddCloser(name string, fn func() error) {
	if fn != nil {
		m.closers = append(m.closers, closer{name: name, close: fn})
	}
}

// Start registers every queued task with the scheduler.
func (m *Manager) Start() {
	for _, r := range m.tasks {
		if !m.scheduler.Add(r.key, r.task, r.interval) {
			logger.Warn("Task already registered", "task", r.key)
		}
	}
	logger.Info("Manager started", "tasks", len(m.tasks))
}

// Stop halts the scheduler with a timeout, then closes resources.
func (m *Manager) Stop() {
	done := make(chan struct{})
	go func() {
		m.scheduler.Stop()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("Scheduler stopped")
	case <-time.After(defaultShutdownTimeout):
		logger.Warn("Scheduler shutdown timed out, proceeding with resource cleanup",
			"timeout", defaultShutdownTimeout)
	}

	for i := len(m.closers) - 1; i >= 0; i-- {
		m.closeResource(m.closers[i])
	}
	logger.Info("Manager stopped")
}

func (m *Manager) closeResource(c closer) {
	if err := c.close(); err != nil {
		logger.Error("Failed to close "+c.name, "err", err)
	}
}
