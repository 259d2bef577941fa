package valuation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/fystack/payment-gateway/internal/rpc"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/shopspring/decimal"
)

const TokenPriceAPIKeyHeader = "X-API-Key"

var ErrProviderNotConfigured = errors.New("valuation provider url not configured")

type exchangeRateResponse struct {
	Base      string                     `json:"base"`
	Timestamp int64                      `json:"timestamp"`
	Rates     map[string]decimal.Decimal `json:"rates"`
}

// ExchangeRateProvider reads latest fiat rates from an
// openexchangerates-style endpoint (GET <url>?app_id=<key>).
type ExchangeRateProvider struct {
	client rpc.NetworkClient
}

func NewExchangeRateProvider(cfg config.ProviderConfig) (*ExchangeRateProvider, error) {
	if cfg.URL == "" {
		return nil, ErrProviderNotConfigured
	}
	node := config.NodeConfig{URL: cfg.URL}
	if cfg.APIKey != "" {
		node.Auth = config.AuthConfig{Type: rpc.AuthTypeQuery, Key: "app_id", Value: cfg.APIKey}
	}
	return &ExchangeRateProvider{
		client: rpc.NewBaseClient([]config.NodeConfig{node}, rpc.Options{Timeout: cfg.Timeout}),
	}, nil
}

func (p *ExchangeRateProvider) Fetch(ctx context.Context) ([]types.ValuationSample, error) {
	raw, err := p.client.Do(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp exchangeRateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode exchange rates: %w", err)
	}

	// rebase to USD when the provider quotes another base
	factor := decimal.NewFromInt(1)
	if base := strings.ToUpper(resp.Base); base != "" && base != BaseCurrency {
		usd, ok := resp.Rates[BaseCurrency]
		if !ok || usd.IsZero() {
			return nil, fmt.Errorf("exchange rates quoted in %s without a USD rate", base)
		}
		factor = decimal.NewFromInt(1).Div(usd)
	}

	samples := make([]types.ValuationSample, 0, len(resp.Rates))
	for currency, rate := range resp.Rates {
		samples = append(samples, types.ValuationSample{
			Subject: strings.ToUpper(currency),
			Value:   rate.Mul(factor),
		})
	}
	return samples, nil
}

type tokenPriceResponse struct {
	Timestamp int64 `json:"timestamp"`
	Prices    []struct {
		Blockchain string          `json:"blockchain"`
		Address    string          `json:"address"`
		PriceUSD   decimal.Decimal `json:"price_usd"`
	} `json:"prices"`
}

// TokenPriceProvider reads a snapshot of USD prices for every listed token.
type TokenPriceProvider struct {
	client rpc.NetworkClient
}

func NewTokenPriceProvider(cfg config.ProviderConfig) (*TokenPriceProvider, error) {
	if cfg.URL == "" {
		return nil, ErrProviderNotConfigured
	}
	node := config.NodeConfig{URL: cfg.URL}
	if cfg.APIKey != "" {
		node.Auth = config.AuthConfig{Type: rpc.AuthTypeHeader, Key: TokenPriceAPIKeyHeader, Value: cfg.APIKey}
	}
	return &TokenPriceProvider{
		client: rpc.NewBaseClient([]config.NodeConfig{node}, rpc.Options{Timeout: cfg.Timeout}),
	}, nil
}

func (p *TokenPriceProvider) Fetch(ctx context.Context) ([]types.ValuationSample, error) {
	raw, err := p.client.Do(ctx, http.MethodGet, "", nil, nil)
	if err != nil {
		return nil, err
	}
	var resp tokenPriceResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode token prices: %w", err)
	}

	samples := make([]types.ValuationSample, 0, len(resp.Prices))
	for _, price := range resp.Prices {
		if price.Blockchain == "" {
			continue
		}
		samples = append(samples, types.ValuationSample{
			Subject: TokenSubject(price.Blockchain, price.Address),
			Value:   price.PriceUSD,
		})
	}
	return samples, nil
}
