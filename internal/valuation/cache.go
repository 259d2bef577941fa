package valuation

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/store/valuationstore"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

// Provider returns every value an upstream source knows about right now.
type Provider interface {
	Fetch(ctx context.Context) ([]types.ValuationSample, error)
}

type ProviderFunc func(ctx context.Context) ([]types.ValuationSample, error)

func (f ProviderFunc) Fetch(ctx context.Context) ([]types.ValuationSample, error) { return f(ctx) }

// BucketCache partitions time into sampling buckets and calls the provider
// at most once per bucket. Past buckets are never backfilled.
type BucketCache struct {
	kind     string
	interval int64
	store    valuationstore.Store
	provider Provider
	now      func() time.Time

	group singleflight.Group
	mu    sync.Mutex
	// values of the latest fetched bucket, kept in memory so a failed
	// snapshot write does not turn later lookups into misses
	latest       map[string]decimal.Decimal
	latestBucket int64
	log          *slog.Logger
}

func NewBucketCache(kind string, interval time.Duration, store valuationstore.Store, provider Provider) *BucketCache {
	secs := int64(interval / time.Second)
	if secs <= 0 {
		secs = 1
	}
	return &BucketCache{
		kind:     kind,
		interval: secs,
		store:    store,
		provider: provider,
		now:      time.Now,
		log:      logger.With("component", "valuation", "kind", kind),
	}
}

// Bucket floors a unix timestamp to the start of its sampling bucket.
func (c *BucketCache) Bucket(ts int64) int64 {
	b := ts / c.interval * c.interval
	if ts < 0 && ts%c.interval != 0 {
		b -= c.interval
	}
	return b
}

// Lookup returns the value of subject at unix time ts. The bool is false
// when no sample exists and none can be fetched for that bucket.
func (c *BucketCache) Lookup(ctx context.Context, subject string, ts int64) (decimal.Decimal, bool, error) {
	current := c.Bucket(c.now().Unix())
	bucket := c.Bucket(ts)
	if bucket > current {
		bucket = current
	}

	v, ok, err := c.store.Load(ctx, c.kind, subject, bucket)
	if err != nil {
		return decimal.Zero, false, err
	}
	if ok {
		metrics.ValuationLookupsTotal.WithLabelValues(c.kind, "stored").Inc()
		return v, true, nil
	}
	if bucket < current {
		metrics.ValuationLookupsTotal.WithLabelValues(c.kind, "expired").Inc()
		return decimal.Zero, false, nil
	}

	values, err := c.fetchCurrent(ctx, bucket)
	if err != nil {
		return decimal.Zero, false, err
	}
	v, ok = values[subject]
	if !ok {
		metrics.ValuationLookupsTotal.WithLabelValues(c.kind, "missing").Inc()
		return decimal.Zero, false, nil
	}
	metrics.ValuationLookupsTotal.WithLabelValues(c.kind, "fetched").Inc()
	return v, true, nil
}

func (c *BucketCache) fetchCurrent(ctx context.Context, bucket int64) (map[string]decimal.Decimal, error) {
	res, err, _ := c.group.Do(strconv.FormatInt(bucket, 10), func() (any, error) {
		if values, ok := c.remembered(bucket); ok {
			return values, nil
		}

		// another instance sharing the store may already have written it
		snap, err := c.store.LoadBucket(ctx, c.kind, bucket)
		if err != nil {
			return nil, err
		}
		if snap != nil {
			c.remember(bucket, snap.Values)
			return snap.Values, nil
		}

		samples, err := c.provider.Fetch(ctx)
		if err != nil {
			metrics.ValuationProviderCallsTotal.WithLabelValues(c.kind, "error").Inc()
			return nil, fmt.Errorf("fetch %s: %w", c.kind, err)
		}
		metrics.ValuationProviderCallsTotal.WithLabelValues(c.kind, "ok").Inc()

		values := make(map[string]decimal.Decimal, len(samples))
		for i := range samples {
			samples[i].Bucket = bucket
			values[samples[i].Subject] = samples[i].Value
		}
		c.remember(bucket, values)
		if err := c.store.SaveBucket(ctx, c.kind, bucket, samples); err != nil {
			c.log.Error("Failed to persist valuation bucket", "bucket", bucket, "err", err)
		} else {
			c.log.Debug("Valuation bucket stored", "bucket", bucket, "samples", len(samples))
		}
		return values, nil
	})
	if err != nil {
		return nil, err
	}
	return res.(map[string]decimal.Decimal), nil
}

func (c *BucketCache) remembered(bucket int64) (map[string]decimal.Decimal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest == nil || c.latestBucket != bucket {
		return nil, false
	}
	return c.latest, true
}

func (c *BucketCache) remember(bucket int64, values map[string]decimal.Decimal) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.latest != nil && bucket < c.latestBucket {
		return
	}
	c.latest = values
	c.latestBucket = bucket
}
