package iterator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/fystack/payment-gateway/internal/rpc"
	"github.com/fystack/payment-gateway/internal/rpc/bitcoin"
	"github.com/fystack/payment-gateway/internal/rpc/evm"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/ratelimiter"
)

var ErrUnsupportedBlockchain = errors.New("unsupported blockchain")

// Builder turns a chain configuration into the matching iterator.
type Builder struct {
	merchants MerchantResolver
	prices    PriceSource

	newEVMClient    func(chain config.ChainConfig) evm.EthereumAPI
	newNativeClient func(chain config.ChainConfig) bitcoin.BitcoinAPI

	// clients are kept across builds so rate limits span cycles
	mu            sync.Mutex
	evmClients    map[string]evm.EthereumAPI
	nativeClients map[string]bitcoin.BitcoinAPI
}

func NewBuilder(merchants MerchantResolver, prices PriceSource) *Builder {
	return &Builder{
		merchants: merchants,
		prices:    prices,
		newEVMClient: func(chain config.ChainConfig) evm.EthereumAPI {
			return evm.NewEthereumClient(chain.Nodes, clientOptions(chain))
		},
		newNativeClient: func(chain config.ChainConfig) bitcoin.BitcoinAPI {
			return bitcoin.NewBitcoinClient(chain.Nodes, chain.Contracts.Wallet, clientOptions(chain))
		},
		evmClients:    make(map[string]evm.EthereumAPI),
		nativeClients: make(map[string]bitcoin.BitcoinAPI),
	}
}

// WithClients overrides how RPC clients are created.
func (b *Builder) WithClients(
	newEVM func(config.ChainConfig) evm.EthereumAPI,
	newNative func(config.ChainConfig) bitcoin.BitcoinAPI,
) *Builder {
	if newEVM != nil {
		b.newEVMClient = newEVM
	}
	if newNative != nil {
		b.newNativeClient = newNative
	}
	return b
}

func clientOptions(chain config.ChainConfig) rpc.Options {
	opts := rpc.Options{
		Timeout:    chain.Client.Timeout,
		MaxRetries: chain.Client.MaxRetries,
		RetryDelay: chain.Client.RetryDelay,
	}
	if chain.Throttle.RPS > 0 {
		opts.RateLimiter = ratelimiter.NewPooledRateLimiter(chain.Throttle.RPS, chain.Throttle.Burst)
	}
	return opts
}

// Build returns the iterator for chain, positioned at savedCursor when it is
// not empty.
func (b *Builder) Build(ctx context.Context, chain config.ChainConfig, savedCursor string) (Iterator, error) {
	var it Iterator
	switch chain.Type {
	case enum.ChainTypeEVM:
		if chain.Contracts.PaymentReceiver == "" {
			return nil, fmt.Errorf("%w: %s has no payment receiver contract", ErrUnsupportedBlockchain, chain.Name)
		}
		it = NewEVMIterator(chain, b.evmClient(chain), b.merchants, b.prices)
	case enum.ChainTypeNative:
		if chain.Contracts.Wallet == "" {
			return nil, fmt.Errorf("%w: %s has no wallet configured", ErrUnsupportedBlockchain, chain.Name)
		}
		it = NewNativeIterator(chain, b.nativeClient(chain), b.prices)
	default:
		return nil, fmt.Errorf("%w: %s has type %q", ErrUnsupportedBlockchain, chain.Name, chain.Type)
	}

	if savedCursor != "" {
		if err := it.Skip(savedCursor); err != nil {
			return nil, err
		}
	}
	return it, nil
}

func (b *Builder) evmClient(chain config.ChainConfig) evm.EthereumAPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(chain.Name)
	c, ok := b.evmClients[key]
	if !ok {
		c = b.newEVMClient(chain)
		b.evmClients[key] = c
	}
	return c
}

func (b *Builder) nativeClient(chain config.ChainConfig) bitcoin.BitcoinAPI {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(chain.Name)
	c, ok := b.nativeClients[key]
	if !ok {
		c = b.newNativeClient(chain)
		b.nativeClients[key] = c
	}
	return c
}

// Forget drops the cached clients of a chain so the next build picks up
// new node settings.
func (b *Builder) Forget(chain string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := strings.ToLower(chain)
	if c, ok := b.evmClients[key]; ok {
		_ = c.Close()
		delete(b.evmClients, key)
	}
	if c, ok := b.nativeClients[key]; ok {
		_ = c.Close()
		delete(b.nativeClients, key)
	}
}
