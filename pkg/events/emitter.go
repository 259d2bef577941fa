package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
)

const (
	StreamName = "gateway"

	TypePayment = "payment"
	TypeError   = "error"
)

// GatewayEvent is the envelope published on the bus.
type GatewayEvent struct {
	Type      string `json:"type"`
	Chain     string `json:"chain"`
	Data      any    `json:"data"`
	Timestamp int64  `json:"timestamp"`
}

type Emitter interface {
	EmitPayment(ctx context.Context, record types.PaymentRecord) error
	EmitError(ctx context.Context, chain string, err error) error
	Close()
}

type emitter struct {
	queue         infra.MessageQueue
	subjectPrefix string
}

func NewEmitter(queue infra.MessageQueue, subjectPrefix string) Emitter {
	if subjectPrefix == "" {
		subjectPrefix = StreamName
	}
	return &emitter{
		queue:         queue,
		subjectPrefix: subjectPrefix,
	}
}

// Subjects returns the wildcard the stream must capture for this prefix.
func Subjects(subjectPrefix string) []string {
	if subjectPrefix == "" {
		subjectPrefix = StreamName
	}
	return []string{subjectPrefix + ".>"}
}

func (e *emitter) subject(eventType, chain string) string {
	return e.subjectPrefix + "." + eventType + "." + chain
}

// EmitPayment publishes the record keyed by its hash so redeliveries collapse.
func (e *emitter) EmitPayment(ctx context.Context, record types.PaymentRecord) error {
	data, err := json.Marshal(GatewayEvent{
		Type:      TypePayment,
		Chain:     record.Blockchain,
		Data:      record,
		Timestamp: time.Now().UTC().Unix(),
	})
	if err != nil {
		return err
	}
	return e.queue.Enqueue(ctx, e.subject(TypePayment, record.Blockchain), data, &infra.EnqueueOptions{
		IdempotentKey: record.Hash(),
	})
}

func (e *emitter) EmitError(ctx context.Context, chain string, err error) error {
	payload := map[string]string{}
	if err != nil {
		payload["message"] = err.Error()
	}
	data, mErr := json.Marshal(GatewayEvent{
		Type:      TypeError,
		Chain:     chain,
		Data:      payload,
		Timestamp: time.Now().UTC().Unix(),
	})
	if mErr != nil {
		return mErr
	}
	return e.queue.Enqueue(ctx, e.subject(TypeError, chain), data, nil)
}

func (e *emitter) Close() {
	if e.queue != nil {
		e.queue.Close()
	}
}
