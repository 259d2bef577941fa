package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/internal/notification"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
	"golang.org/x/sync/errgroup"
)

const maxDispatchFanout = 16

type NotificationQueue interface {
	List(ctx context.Context, notificationType enum.NotificationType) ([]types.NotificationRecord, error)
	Delete(ctx context.Context, record types.NotificationRecord) error
}

// DeadLetterSink keeps a copy of records dropped after their TTL.
type DeadLetterSink interface {
	Capture(ctx context.Context, record types.NotificationRecord) error
}

// RedisDeadLetter pushes expired records onto a redis list.
type RedisDeadLetter struct {
	client infra.RedisClient
	key    string
}

func NewRedisDeadLetter(client infra.RedisClient) *RedisDeadLetter {
	return &RedisDeadLetter{client: client, key: constant.DeadLetterListKey}
}

func (d *RedisDeadLetter) Capture(ctx context.Context, record types.NotificationRecord) error {
	b, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return d.client.LPush(ctx, d.key, string(b))
}

// DispatchTask drains pending notifications of one type through its handler.
type DispatchTask struct {
	notificationType enum.NotificationType
	queue            NotificationQueue
	handler          notification.Handler
	ttl              time.Duration
	deadLetter       DeadLetterSink
	now              func() time.Time
	log              *slog.Logger
}

func NewDispatchTask(queue NotificationQueue, handler notification.Handler, ttl time.Duration, deadLetter DeadLetterSink) *DispatchTask {
	if ttl <= 0 {
		ttl = constant.DefaultNotificationTTL
	}
	return &DispatchTask{
		notificationType: handler.Type(),
		queue:            queue,
		handler:          handler,
		ttl:              ttl,
		deadLetter:       deadLetter,
		now:              time.Now,
		log:              logger.With("component", "dispatch", "type", handler.Type()),
	}
}

func DispatchTaskKey(t enum.NotificationType) string {
	return constant.DispatchTaskPrefix + string(t)
}

func (d *DispatchTask) Run(ctx context.Context) {
	records, err := d.queue.List(ctx, d.notificationType)
	if err != nil {
		d.log.Error("Failed to list notifications", "err", err)
		return
	}
	if len(records) == 0 {
		return
	}

	now := d.now()
	var g errgroup.Group
	g.SetLimit(maxDispatchFanout)
	for _, rec := range records {
		g.Go(func() error {
			d.process(ctx, rec, now)
			return nil
		})
	}
	_ = g.Wait()
}

func (d *DispatchTask) process(ctx context.Context, rec types.NotificationRecord, now time.Time) {
	log := d.log.With("key", rec.Key)

	result, err := d.handle(ctx, rec)
	metrics.NotificationsTotal.WithLabelValues(string(d.notificationType), result.String()).Inc()
	if err != nil {
		log.Warn("Notification handler failed", "result", result.String(), "err", err)
	}

	if result == notification.Handled {
		if err := d.queue.Delete(ctx, rec); err != nil {
			log.Error("Failed to delete handled notification", "err", err)
		}
		return
	}

	if rec.Age(now) < d.ttl {
		return
	}
	if d.deadLetter != nil {
		if err := d.deadLetter.Capture(ctx, rec); err != nil {
			log.Error("Failed to capture expired notification", "err", err)
		}
	}
	if err := d.queue.Delete(ctx, rec); err != nil {
		log.Error("Failed to delete expired notification", "err", err)
		return
	}
	metrics.NotificationsExpiredTotal.WithLabelValues(string(d.notificationType)).Inc()
	log.Info("Notification expired", "age", rec.Age(now))
}

func (d *DispatchTask) handle(ctx context.Context, rec types.NotificationRecord) (result notification.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = notification.Deferred
			d.log.Error("Notification handler panicked", "key", rec.Key, "panic", r)
		}
	}()
	return d.handler.Handle(ctx, rec)
}
