package valuationstore

import (
	"context"
	"testing"

	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValuationStore(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	s := New(kv)

	_, found, err := s.Load(ctx, "exchange_rate", "EUR", 3600)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, s.SaveBucket(ctx, "exchange_rate", 3600, []types.ValuationSample{
		{Subject: "EUR", Bucket: 3600, Value: decimal.RequireFromString("0.92")},
		{Subject: "GBP", Bucket: 3600, Value: decimal.RequireFromString("0.79")},
	}))
	assert.Equal(t, 1, kv.Len())

	v, found, err := s.Load(ctx, "exchange_rate", "GBP", 3600)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "0.79", v.String())

	_, found, err = s.Load(ctx, "exchange_rate", "JPY", 3600)
	require.NoError(t, err)
	assert.False(t, found)

	_, found, err = s.Load(ctx, "token_price", "GBP", 3600)
	require.NoError(t, err)
	assert.False(t, found)
}
