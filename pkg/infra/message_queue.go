package infra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

var (
	ErrPermament = errors.New("permanent messaging error")
	MaxMsgSize   = int32(64 * 1024)
)

// MessageQueue is a JetStream-backed publish/consume pair.
type MessageQueue interface {
	Enqueue(ctx context.Context, topic string, message []byte, options *EnqueueOptions) error
	// handler shouldn't block; JetStream redelivers unacked messages after the ack wait.
	Dequeue(handler func(message []byte) error) error
	Close()
}

type EnqueueOptions struct {
	// IdempotentKey is sent as Nats-Msg-Id so JetStream drops duplicates inside its window.
	IdempotentKey string
}

type msgQueue struct {
	consumerName    string
	js              jetstream.JetStream
	consumer        jetstream.Consumer
	consumerContext jetstream.ConsumeContext
}

type NATsMessageQueueManager struct {
	queueName string
	js        jetstream.JetStream
}

func NewNATsMessageQueueManager(ctx context.Context, queueName string, subjectWildCards []string, nc *nats.Conn) (*NATsMessageQueueManager, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        queueName,
		Description: "Stream for " + queueName,
		Subjects:    subjectWildCards,
		MaxMsgSize:  MaxMsgSize,
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Duplicates:  10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("create jetstream stream %s: %w", queueName, err)
	}
	logger.Info("JetStream stream ready", "stream", queueName, "subjects", subjectWildCards)

	return &NATsMessageQueueManager{
		queueName: queueName,
		js:        js,
	}, nil
}

// NewMessageQueue returns a queue bound to a durable consumer filtered on subject.
func (m *NATsMessageQueueManager) NewMessageQueue(ctx context.Context, consumerName, subject string) (MessageQueue, error) {
	cfg := jetstream.ConsumerConfig{
		Name:           consumerName,
		Durable:        consumerName,
		MaxAckPending:  16,
		FilterSubjects: []string{subject},
		MaxDeliver:     3,
	}
	consumer, err := m.js.CreateOrUpdateConsumer(ctx, m.queueName, cfg)
	if err != nil {
		return nil, fmt.Errorf("create jetstream consumer %s: %w", consumerName, err)
	}
	return &msgQueue{
		consumerName: consumerName,
		js:           m.js,
		consumer:     consumer,
	}, nil
}

// Publisher returns a queue that can only enqueue.
func (m *NATsMessageQueueManager) Publisher() MessageQueue {
	return &msgQueue{js: m.js}
}

func (mq *msgQueue) Enqueue(ctx context.Context, topic string, message []byte, options *EnqueueOptions) error {
	header := nats.Header{}
	if options != nil && options.IdempotentKey != "" {
		header.Add(jetstream.MsgIDHeader, options.IdempotentKey)
	}

	_, err := mq.js.PublishMsg(ctx, &nats.Msg{
		Subject: topic,
		Data:    message,
		Header:  header,
	})
	if err != nil {
		return fmt.Errorf("error enqueueing message: %w", err)
	}
	logger.Debug("Enqueued message", "topic", topic, "size", len(message))
	return nil
}

func (mq *msgQueue) Dequeue(handler func(message []byte) error) error {
	if mq.consumer == nil {
		return fmt.Errorf("queue has no consumer")
	}
	c, err := mq.consumer.Consume(func(msg jetstream.Msg) {
		err := handler(msg.Data())
		if err != nil {
			if errors.Is(err, ErrPermament) {
				logger.Warn("Permanent error on message", "consumer", mq.consumerName, "subject", msg.Subject())
				_ = msg.Term()
				return
			}
			logger.Error("Error handling message", "consumer", mq.consumerName, "err", err)
			_ = msg.Nak()
			return
		}
		if err := msg.Ack(); err != nil {
			logger.Error("Error acknowledging message", "err", err)
		}
	})
	mq.consumerContext = c
	return err
}

func (mq *msgQueue) Close() {
	if mq.consumerContext != nil {
		mq.consumerContext.Stop()
	}
}
