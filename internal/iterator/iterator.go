package iterator

import (
	"context"

	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/shopspring/decimal"
)

// Iterator walks a chain from a persisted cursor and yields payment records.
// Re-running NextBatch over a range that was already scanned yields the same
// records again; callers must tolerate duplicates.
type Iterator interface {
	// LastProcessed returns the cursor to persist after the last batch.
	// Empty means no position has been established yet.
	LastProcessed() string
	// Skip restores a previously persisted cursor.
	Skip(cursor string) error
	NextBatch(ctx context.Context) ([]types.PaymentRecord, error)
}

// MerchantResolver maps a receiving address to its merchant.
type MerchantResolver interface {
	ResolveAddress(ctx context.Context, chain, address string) (*types.MerchantProfile, error)
}

// PriceSource returns the USD price of a token at a unix time.
type PriceSource interface {
	Price(ctx context.Context, blockchain, token string, ts int64) (decimal.Decimal, bool, error)
}
