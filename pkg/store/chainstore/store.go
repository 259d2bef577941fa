package chainstore

import (
	"context"
	"fmt"
	"strings"

	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/infra"
)

// Store holds chain configurations so they can be edited while the gateway runs.
type Store interface {
	LoadChainConfigs(ctx context.Context) ([]config.ChainConfig, error)
	Get(ctx context.Context, name string) (*config.ChainConfig, error)
	Save(ctx context.Context, chain config.ChainConfig) error
	Delete(ctx context.Context, name string) error
	Seed(ctx context.Context, chains config.Chains) (int, error)
}

type kvStore struct {
	kv infra.KVStore
}

func New(kv infra.KVStore) Store {
	return &kvStore{kv: kv}
}

func chainKey(name string) string {
	return constant.ChainKeyPrefix + strings.ToLower(name)
}

// LoadChainConfigs returns every stored chain. Entries that fail to decode or
// validate are logged and skipped so one bad edit cannot stop the others.
func (s *kvStore) LoadChainConfigs(_ context.Context) ([]config.ChainConfig, error) {
	pairs, err := s.kv.List(constant.ChainKeyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list chains: %w", err)
	}

	chains := make([]config.ChainConfig, 0, len(pairs))
	for _, pair := range pairs {
		var chain config.ChainConfig
		if err := infra.JSON.Unmarshal(pair.Value, &chain); err != nil {
			logger.Warn("Skipping undecodable chain config", "key", pair.Key, "err", err)
			continue
		}
		if err := config.ValidateChain(chain); err != nil {
			logger.Warn("Skipping invalid chain config", "key", pair.Key, "err", err)
			continue
		}
		chains = append(chains, chain)
	}
	return chains, nil
}

func (s *kvStore) Get(_ context.Context, name string) (*config.ChainConfig, error) {
	var chain config.ChainConfig
	found, err := s.kv.GetAny(chainKey(name), &chain)
	if err != nil {
		return nil, fmt.Errorf("failed to get chain %s: %w", name, err)
	}
	if !found {
		return nil, nil
	}
	return &chain, nil
}

func (s *kvStore) Save(_ context.Context, chain config.ChainConfig) error {
	if err := config.ValidateChain(chain); err != nil {
		return fmt.Errorf("invalid chain %s: %w", chain.Name, err)
	}
	if err := s.kv.SetAny(chainKey(chain.Name), chain); err != nil {
		return fmt.Errorf("failed to save chain %s: %w", chain.Name, err)
	}
	return nil
}

func (s *kvStore) Delete(_ context.Context, name string) error {
	if err := s.kv.Delete(chainKey(name)); err != nil {
		return fmt.Errorf("failed to delete chain %s: %w", name, err)
	}
	return nil
}

// Seed writes every chain from the file config, overwriting stored entries.
func (s *kvStore) Seed(ctx context.Context, chains config.Chains) (int, error) {
	n := 0
	for _, chain := range chains {
		if err := s.Save(ctx, chain); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
