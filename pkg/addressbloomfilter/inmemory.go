package addressbloomfilter

import (
	"context"
	"math"
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
	"github.com/fystack/payment-gateway/pkg/common/logger"
)

const (
	DefaultExpectedItems     = 100_000
	DefaultFalsePositiveRate = 0.001
)

type Config struct {
	Source            AddressSource
	ExpectedItems     uint    // Estimated number of addresses per chain
	FalsePositiveRate float64 // Desired false positive rate
}

type walletBloomFilter struct {
	mu           sync.RWMutex
	filter       *bloom.BloomFilter
	addressCount uint
}

type addressBloomFilter struct {
	mu      sync.RWMutex
	filters map[string]*walletBloomFilter
	config  Config
}

func NewAddressBloomFilter(cfg Config) WalletAddressBloomFilter {
	if cfg.ExpectedItems == 0 {
		cfg.ExpectedItems = DefaultExpectedItems
	}
	if cfg.FalsePositiveRate <= 0 {
		cfg.FalsePositiveRate = DefaultFalsePositiveRate
	}
	return &addressBloomFilter{
		filters: make(map[string]*walletBloomFilter),
		config:  cfg,
	}
}

func (abf *addressBloomFilter) Initialize(ctx context.Context) error {
	if abf.config.Source == nil {
		return nil
	}
	byChain, err := abf.config.Source.ListAddresses(ctx)
	if err != nil {
		return err
	}

	for chain, addresses := range byChain {
		abf.Clear(chain)
		abf.AddBatch(addresses, chain)
		logger.Info("In-memory Bloom filter initialized", "chain", chain, "total", len(addresses))
	}
	return nil
}

func (abf *addressBloomFilter) getOrCreateFilter(chain string) *walletBloomFilter {
	chain = normalizeChain(chain)

	abf.mu.RLock()
	bf, ok := abf.filters[chain]
	abf.mu.RUnlock()
	if ok {
		return bf
	}

	abf.mu.Lock()
	defer abf.mu.Unlock()
	if bf, ok := abf.filters[chain]; ok {
		return bf
	}

	m, k := bloom.EstimateParameters(abf.config.ExpectedItems, abf.config.FalsePositiveRate)
	bf = &walletBloomFilter{filter: bloom.New(m, k)}
	abf.filters[chain] = bf
	return bf
}

func (abf *addressBloomFilter) Add(address string, chain string) {
	abf.AddBatch([]string{address}, chain)
}

func (abf *addressBloomFilter) AddBatch(addresses []string, chain string) {
	bf := abf.getOrCreateFilter(chain)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	for _, address := range addresses {
		bf.filter.AddString(Normalize(address))
		bf.addressCount++
	}
}

func (abf *addressBloomFilter) Contains(address string, chain string) bool {
	bf := abf.getOrCreateFilter(chain)
	bf.mu.RLock()
	defer bf.mu.RUnlock()
	return bf.filter.TestString(Normalize(address))
}

func (abf *addressBloomFilter) Clear(chain string) {
	bf := abf.getOrCreateFilter(chain)
	bf.mu.Lock()
	defer bf.mu.Unlock()
	bf.filter.ClearAll()
	bf.addressCount = 0
}

func (abf *addressBloomFilter) Stats(chain string) map[string]any {
	bf := abf.getOrCreateFilter(chain)
	bf.mu.RLock()
	defer bf.mu.RUnlock()

	fillRatio := bf.approximatedFillRatio()
	return map[string]any{
		"chain":                      normalizeChain(chain),
		"addressCount":               bf.addressCount,
		"bitsCount":                  bf.filter.Cap(),
		"hashFunctions":              bf.filter.K(),
		"approximateFillRatio":       fillRatio,
		"estimatedFalsePositiveRate": bf.estimateFalsePositiveRate(),
	}
}

func (bf *walletBloomFilter) approximatedFillRatio() float64 {
	bitset := bf.filter.BitSet()
	totalBits := bitset.Len()
	if totalBits == 0 {
		return 0
	}
	return float64(bitset.Count()) / float64(totalBits)
}

func (bf *walletBloomFilter) estimateFalsePositiveRate() float64 {
	n := float64(bf.addressCount)
	m := float64(bf.filter.Cap())
	k := float64(bf.filter.K())
	if m == 0 || k == 0 {
		return 0.0
	}
	return math.Pow(1-math.Exp(-k*n/m), k)
}
