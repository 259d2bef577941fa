package addressbloomfilter

import (
	"context"
	"strings"
)

// WalletAddressBloomFilter is a per-chain prefilter for merchant receiving addresses.
// A negative answer is definitive; a positive one must be confirmed by the store.
type WalletAddressBloomFilter interface {
	// Initialize resets every chain's filter from the address source.
	Initialize(ctx context.Context) error
	Add(address string, chain string)
	AddBatch(addresses []string, chain string)
	Contains(address string, chain string) bool
	Clear(chain string)
	Stats(chain string) map[string]any
}

// AddressSource lists known receiving addresses grouped by chain.
type AddressSource interface {
	ListAddresses(ctx context.Context) (map[string][]string, error)
}

// Normalize is applied to every address before it touches a filter.
func Normalize(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

func normalizeChain(chain string) string {
	return strings.ToLower(chain)
}
