package valuation

import (
	"context"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/store/valuationstore"
	"github.com/shopspring/decimal"
)

const BaseCurrency = "USD"

// ExchangeRateCache holds fiat rates quoted as units of currency per USD.
type ExchangeRateCache struct {
	cache *BucketCache
}

func NewExchangeRateCache(interval time.Duration, store valuationstore.Store, provider Provider) *ExchangeRateCache {
	return &ExchangeRateCache{cache: NewBucketCache(enum.ValuationExchangeRate, interval, store, provider)}
}

func (c *ExchangeRateCache) Rate(ctx context.Context, currency string, ts int64) (decimal.Decimal, bool, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" || currency == BaseCurrency {
		return decimal.NewFromInt(1), true, nil
	}
	return c.cache.Lookup(ctx, currency, ts)
}

// Convert turns a USD amount into currency at time ts. The result is null
// when no rate is known for that time.
func (c *ExchangeRateCache) Convert(ctx context.Context, usd decimal.Decimal, currency string, ts int64) (decimal.NullDecimal, error) {
	rate, ok, err := c.Rate(ctx, currency, ts)
	if err != nil || !ok {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(usd.Mul(rate)), nil
}

// TokenSubject is the valuation key of a token on a chain. An empty token
// address means the chain's native asset.
func TokenSubject(blockchain, token string) string {
	token = strings.ToLower(strings.TrimSpace(token))
	if token == "" {
		token = constant.NativeTokenSubject
	}
	return strings.ToLower(blockchain) + "/" + token
}

// TokenPriceCache holds USD prices per token.
type TokenPriceCache struct {
	cache *BucketCache
}

func NewTokenPriceCache(interval time.Duration, store valuationstore.Store, provider Provider) *TokenPriceCache {
	return &TokenPriceCache{cache: NewBucketCache(enum.ValuationTokenPrice, interval, store, provider)}
}

func (c *TokenPriceCache) Price(ctx context.Context, blockchain, token string, ts int64) (decimal.Decimal, bool, error) {
	return c.cache.Lookup(ctx, TokenSubject(blockchain, token), ts)
}
