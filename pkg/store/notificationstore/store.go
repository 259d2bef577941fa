package notificationstore

import (
	"context"
	"fmt"

	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
)

// Store is the durable notification queue. Records are never updated in place.
type Store interface {
	Enqueue(ctx context.Context, record types.NotificationRecord) error
	// List returns pending records of one type, oldest first.
	List(ctx context.Context, notificationType enum.NotificationType) ([]types.NotificationRecord, error)
	Delete(ctx context.Context, record types.NotificationRecord) error
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func typePrefix(t enum.NotificationType) string {
	return constant.NotificationKeyPrefix + string(t) + "/"
}

// recordKey orders records by timestamp within a type.
func recordKey(r types.NotificationRecord) string {
	return fmt.Sprintf("%s%020d/%s", typePrefix(r.Type), r.Timestamp, r.Key)
}

func (s *kvStore) Enqueue(_ context.Context, record types.NotificationRecord) error {
	if record.Key == "" {
		return fmt.Errorf("notification key is required")
	}
	if record.Type == "" {
		return fmt.Errorf("notification type is required")
	}
	if err := s.kv.SetAny(recordKey(record), record); err != nil {
		return fmt.Errorf("failed to enqueue %s notification %s: %w", record.Type, record.Key, err)
	}
	return nil
}

func (s *kvStore) List(_ context.Context, notificationType enum.NotificationType) ([]types.NotificationRecord, error) {
	pairs, err := s.kv.List(typePrefix(notificationType))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s notifications: %w", notificationType, err)
	}

	records := make([]types.NotificationRecord, 0, len(pairs))
	for _, pair := range pairs {
		var rec types.NotificationRecord
		if err := infra.JSON.Unmarshal(pair.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode notification %s: %w", pair.Key, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *kvStore) Delete(_ context.Context, record types.NotificationRecord) error {
	if err := s.kv.Delete(recordKey(record)); err != nil {
		return fmt.Errorf("failed to delete %s notification %s: %w", record.Type, record.Key, err)
	}
	return nil
}
