package worker

import (
	"context"

	"github.com/fystack/payment-gateway/pkg/addressbloomfilter"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/samber/lo"
)

const BloomSyncTaskKey = "bloom-sync"

// BloomSyncTask feeds merchant addresses written by other processes (seed
// tooling, a shared Consul store) into the local bloom filter.
type BloomSyncTask struct {
	filter addressbloomfilter.WalletAddressBloomFilter
	source addressbloomfilter.AddressSource
}

func NewBloomSyncTask(filter addressbloomfilter.WalletAddressBloomFilter, source addressbloomfilter.AddressSource) *BloomSyncTask {
	return &BloomSyncTask{filter: filter, source: source}
}

func (w *BloomSyncTask) Run(ctx context.Context) {
	byChain, err := w.source.ListAddresses(ctx)
	if err != nil {
		logger.Error("Failed to list merchant addresses for bloom filter", "err", err)
		return
	}
	for chain, addrs := range byChain {
		w.filter.AddBatch(addrs, chain)
	}
	logger.Debug("Bloom filter synced",
		"chains", len(byChain),
		"addresses", lo.Sum(lo.Map(lo.Values(byChain), func(a []string, _ int) int { return len(a) })),
	)
}
