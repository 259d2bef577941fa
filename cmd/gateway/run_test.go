package main

import (
	"context"
	"errors"
	"testing"

	"github.com/fystack/payment-gateway/internal/valuation"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/fystack/payment-gateway/pkg/store/chainstore"
	"github.com/fystack/payment-gateway/pkg/store/merchantstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeedStores(t *testing.T) {
	ctx := context.Background()
	kv := kvstore.NewMemoryStore()
	chains := chainstore.New(kv)
	merchants := merchantstore.New(kv, nil)

	cfg := &config.Config{
		Chains: config.Chains{
			"ethereum": {
				Name:           "ethereum",
				Type:           enum.ChainTypeEVM,
				PaymentEnabled: true,
				Nodes:          []config.NodeConfig{{URL: "http://localhost:8545"}},
			},
		},
		Merchants: []types.MerchantProfile{
			{AccountID: "ACC0000001", Wallets: map[string]string{"ethereum": "0xABC"}},
			{AccountID: "short"},
		},
	}

	err := seedStores(ctx, cfg, chains, merchants)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "short")

	stored, err := chains.LoadChainConfigs(ctx)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "ethereum", stored[0].Name)

	profile, err := merchants.ResolveAddress(ctx, "ethereum", "0xabc")
	require.NoError(t, err)
	require.NotNil(t, profile)
	assert.Equal(t, "ACC0000001", profile.AccountID)
}

func TestProviderOrNoop(t *testing.T) {
	p := providerOrNoop("exchange rate", func() (valuation.Provider, error) {
		return nil, valuation.ErrProviderNotConfigured
	})
	samples, err := p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)

	p = providerOrNoop("token price", func() (valuation.Provider, error) {
		return nil, errors.New("bad url")
	})
	samples, err = p.Fetch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, samples)
}
