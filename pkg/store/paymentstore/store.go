package paymentstore

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/samber/lo"
)

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	PaymentID  string
	Blockchain string
}

// Store is the append-only payment ledger plus webhook delivery results.
type Store interface {
	// Append is idempotent on the record identity.
	Append(ctx context.Context, record types.PaymentRecord) error
	List(ctx context.Context, accountID string, filter Filter) ([]types.PaymentRecord, error)
	SaveDelivery(ctx context.Context, identity string, result types.DeliveryResult) error
	GetDelivery(ctx context.Context, identity string) (*types.DeliveryResult, error)
	ListDeliveries(ctx context.Context) (map[string]types.DeliveryResult, error)
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func recordKey(r types.PaymentRecord) string {
	return constant.PaymentKeyPrefix + strings.Join([]string{
		r.AccountID,
		r.PaymentID,
		strings.ToLower(r.Blockchain),
		r.Transaction,
		strconv.FormatUint(r.LogIndex, 10),
	}, "/")
}

func listPrefix(accountID string, filter Filter) string {
	prefix := constant.PaymentKeyPrefix + accountID + "/"
	if filter.PaymentID != "" {
		prefix += filter.PaymentID + "/"
		if filter.Blockchain != "" {
			prefix += strings.ToLower(filter.Blockchain) + "/"
		}
	}
	return prefix
}

func (s *kvStore) Append(_ context.Context, record types.PaymentRecord) error {
	if record.AccountID == "" || record.PaymentID == "" {
		return fmt.Errorf("payment record missing account or payment id")
	}
	if err := s.kv.SetAny(recordKey(record), record); err != nil {
		return fmt.Errorf("failed to append payment %s: %w", record.Identity(), err)
	}
	return nil
}

func (s *kvStore) List(_ context.Context, accountID string, filter Filter) ([]types.PaymentRecord, error) {
	if accountID == "" {
		return nil, fmt.Errorf("account id is required")
	}
	pairs, err := s.kv.List(listPrefix(accountID, filter))
	if err != nil {
		return nil, fmt.Errorf("failed to list payments for %s: %w", accountID, err)
	}

	records := make([]types.PaymentRecord, 0, len(pairs))
	for _, pair := range pairs {
		var rec types.PaymentRecord
		if err := infra.JSON.Unmarshal(pair.Value, &rec); err != nil {
			return nil, fmt.Errorf("decode payment %s: %w", pair.Key, err)
		}
		records = append(records, rec)
	}

	// ids are free text and may contain the key separator, so the prefix scan
	// can over-match; keep exact matches only
	records = lo.Filter(records, func(r types.PaymentRecord, _ int) bool {
		return r.AccountID == accountID &&
			(filter.PaymentID == "" || r.PaymentID == filter.PaymentID) &&
			(filter.Blockchain == "" || strings.EqualFold(r.Blockchain, filter.Blockchain))
	})
	return records, nil
}

func deliveryKey(identity string) string {
	return constant.DeliveryKeyPrefix + identity
}

func (s *kvStore) SaveDelivery(_ context.Context, identity string, result types.DeliveryResult) error {
	if err := s.kv.SetAny(deliveryKey(identity), result); err != nil {
		return fmt.Errorf("failed to save delivery for %s: %w", identity, err)
	}
	return nil
}

func (s *kvStore) GetDelivery(_ context.Context, identity string) (*types.DeliveryResult, error) {
	var res types.DeliveryResult
	found, err := s.kv.GetAny(deliveryKey(identity), &res)
	if err != nil {
		return nil, fmt.Errorf("failed to get delivery for %s: %w", identity, err)
	}
	if !found {
		return nil, nil
	}
	return &res, nil
}

func (s *kvStore) ListDeliveries(_ context.Context) (map[string]types.DeliveryResult, error) {
	pairs, err := s.kv.List(constant.DeliveryKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list deliveries: %w", err)
	}
	out := make(map[string]types.DeliveryResult, len(pairs))
	for _, pair := range pairs {
		var res types.DeliveryResult
		if err := infra.JSON.Unmarshal(pair.Value, &res); err != nil {
			continue
		}
		out[strings.TrimPrefix(pair.Key, constant.DeliveryKeyPrefix)] = res
	}
	return out, nil
}
