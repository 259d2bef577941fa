package valuationstore

import (
	"context"
	"fmt"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/infra"
	"github.com/shopspring/decimal"
)

// Snapshot is every subject's value for one bucket, written in a single put.
type Snapshot struct {
	Kind      string                     `json:"kind"`
	Bucket    int64                      `json:"bucket"`
	Values    map[string]decimal.Decimal `json:"values"`
	FetchedAt time.Time                  `json:"fetched_at"`
}

type Store interface {
	Load(ctx context.Context, kind, subject string, bucket int64) (decimal.Decimal, bool, error)
	LoadBucket(ctx context.Context, kind string, bucket int64) (*Snapshot, error)
	SaveBucket(ctx context.Context, kind string, bucket int64, samples []types.ValuationSample) error
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func bucketKey(kind string, bucket int64) string {
	return fmt.Sprintf("%s%s/%020d", constant.ValuationKeyPrefix, kind, bucket)
}

func (s *kvStore) LoadBucket(_ context.Context, kind string, bucket int64) (*Snapshot, error) {
	var snap Snapshot
	found, err := s.kv.GetAny(bucketKey(kind, bucket), &snap)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s bucket %d: %w", kind, bucket, err)
	}
	if !found {
		return nil, nil
	}
	return &snap, nil
}

func (s *kvStore) Load(ctx context.Context, kind, subject string, bucket int64) (decimal.Decimal, bool, error) {
	snap, err := s.LoadBucket(ctx, kind, bucket)
	if err != nil || snap == nil {
		return decimal.Zero, false, err
	}
	v, ok := snap.Values[subject]
	return v, ok, nil
}

func (s *kvStore) SaveBucket(_ context.Context, kind string, bucket int64, samples []types.ValuationSample) error {
	snap := Snapshot{
		Kind:      kind,
		Bucket:    bucket,
		Values:    make(map[string]decimal.Decimal, len(samples)),
		FetchedAt: time.Now().UTC(),
	}
	for _, sample := range samples {
		snap.Values[sample.Subject] = sample.Value
	}
	if err := s.kv.SetAny(bucketKey(kind, bucket), snap); err != nil {
		return fmt.Errorf("failed to save %s bucket %d: %w", kind, bucket, err)
	}
	return nil
}
