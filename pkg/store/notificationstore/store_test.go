package notificationstore

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationStore(t *testing.T) {
	ctx := context.Background()
	s := New(kvstore.NewMemoryStore())

	newer := types.NotificationRecord{Key: "ACC0000001#PAY1#b", Type: enum.NotificationWebhook, Timestamp: 200, Payload: json.RawMessage(`{}`)}
	older := types.NotificationRecord{Key: "ACC0000001#PAY1#a", Type: enum.NotificationWebhook, Timestamp: 100, Payload: json.RawMessage(`{}`)}
	other := types.NotificationRecord{Key: "ACC0000001#PAY1#c", Type: enum.NotificationPaymentStatus, Timestamp: 150, Payload: json.RawMessage(`{}`)}

	require.NoError(t, s.Enqueue(ctx, newer))
	require.NoError(t, s.Enqueue(ctx, older))
	require.NoError(t, s.Enqueue(ctx, other))

	webhooks, err := s.List(ctx, enum.NotificationWebhook)
	require.NoError(t, err)
	require.Len(t, webhooks, 2)
	assert.Equal(t, older.Key, webhooks[0].Key)
	assert.Equal(t, newer.Key, webhooks[1].Key)

	require.NoError(t, s.Delete(ctx, older))
	webhooks, err = s.List(ctx, enum.NotificationWebhook)
	require.NoError(t, err)
	assert.Len(t, webhooks, 1)

	statuses, err := s.List(ctx, enum.NotificationPaymentStatus)
	require.NoError(t, err)
	assert.Len(t, statuses, 1)
}

func TestNotificationStore_RejectsIncomplete(t *testing.T) {
	s := New(kvstore.NewMemoryStore())
	assert.Error(t, s.Enqueue(context.Background(), types.NotificationRecord{Type: enum.NotificationWebhook}))
	assert.Error(t, s.Enqueue(context.Background(), types.NotificationRecord{Key: "k"}))
}
