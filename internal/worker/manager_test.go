package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/payment-gateway/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_StartAndStop(t *testing.T) {
	m := NewManager(context.Background())

	var runs atomic.Int32
	m.AddTask("a", scheduler.TaskFunc(func(context.Context) { runs.Add(1) }), time.Hour)
	m.AddTask("b", scheduler.TaskFunc(func(context.Context) { runs.Add(1) }), time.Hour)
	m.AddTask("a", scheduler.TaskFunc(func(context.Context) { runs.Add(100) }), time.Hour)

	var order []string
	m.AddCloser("first", func() error { order = append(order, "first"); return nil })
	m.AddCloser("second", func() error { order = append(order, "second"); return errors.New("already closed") })
	m.AddCloser("ignored", nil)
	m.AddCloser("third", func() error { order = append(order, "third"); return nil })

	m.Start()
	assert.Equal(t, []string{"a", "b"}, m.Scheduler().Keys())
	require.Eventually(t, func() bool { return runs.Load() == 2 }, time.Second, 5*time.Millisecond)

	m.Stop()
	assert.Equal(t, []string{"third", "second", "first"}, order)
	assert.False(t, m.Scheduler().Add("c", scheduler.TaskFunc(func(context.Context) {}), time.Hour))
}
