package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

var validate = validator.New()

// Enqueuer is the write side of the notification queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, record types.NotificationRecord) error
}

func recordKey(parts ...string) string {
	return strings.Join(append(parts, uuid.NewString()), "#")
}

// PaymentNotifications builds the payment_status and webhook records for a
// detected payment. Keys carry a random suffix so several records for the
// same payment never collide.
func PaymentNotifications(payment types.PaymentRecord, now time.Time) ([]types.NotificationRecord, error) {
	payload, err := json.Marshal(types.PaymentNotification{Payment: payment})
	if err != nil {
		return nil, fmt.Errorf("encode payment notification: %w", err)
	}
	key := recordKey(payment.AccountID, payment.PaymentID)
	ts := now.Unix()
	return []types.NotificationRecord{
		{Key: key, Type: enum.NotificationPaymentStatus, Timestamp: ts, Payload: payload},
		{Key: key, Type: enum.NotificationWebhook, Timestamp: ts, Payload: payload},
	}, nil
}

// EnqueueSupportTicket queues a ticket for the support mailbox.
func EnqueueSupportTicket(ctx context.Context, queue Enqueuer, ticket types.SupportTicket) (*types.NotificationRecord, error) {
	if strings.TrimSpace(ticket.Message) == "" {
		return nil, fmt.Errorf("support ticket message is required")
	}
	if err := validate.Var(ticket.Email, "required,email"); err != nil {
		return nil, fmt.Errorf("invalid support ticket email %q: %w", ticket.Email, err)
	}
	payload, err := json.Marshal(ticket)
	if err != nil {
		return nil, err
	}
	owner := ticket.AccountID
	if owner == "" {
		owner = "anonymous"
	}
	rec := types.NotificationRecord{
		Key:       recordKey(owner),
		Type:      enum.NotificationSupportTicket,
		Timestamp: time.Now().Unix(),
		Payload:   payload,
	}
	if err := queue.Enqueue(ctx, rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func decodePayment(record types.NotificationRecord) (types.PaymentRecord, error) {
	var n types.PaymentNotification
	if err := json.Unmarshal(record.Payload, &n); err != nil {
		return types.PaymentRecord{}, fmt.Errorf("decode %s payload %s: %w", record.Type, record.Key, err)
	}
	return n.Payment, nil
}

func validEmail(email string) bool {
	return validate.Var(email, "required,email") == nil
}
