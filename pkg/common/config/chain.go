package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/imdario/mergo"
)

type Chains map[string]ChainConfig

type ChainConfig struct {
	Name           string            `yaml:"name"            json:"name"`
	Type           enum.ChainType    `yaml:"type"            json:"type"            validate:"required,oneof=evm native"`
	PaymentEnabled bool              `yaml:"payment_enabled" json:"payment_enabled"`
	FromLatest     bool              `yaml:"from_latest"     json:"from_latest"`
	StartBlock     uint64            `yaml:"start_block"     json:"start_block"`
	PollInterval   time.Duration     `yaml:"poll_interval"   json:"poll_interval"`
	Contracts      Contracts         `yaml:"contracts"       json:"contracts"`
	Tokens         []types.TokenInfo `yaml:"tokens"          json:"tokens"          validate:"dive"`
	Native         NativeAsset       `yaml:"native"          json:"native"`
	Client         ClientConfig      `yaml:"client"          json:"client"`
	Throttle       Throttle          `yaml:"throttle"        json:"throttle"`
	Nodes          []NodeConfig      `yaml:"nodes"           json:"nodes"           validate:"required,min=1,dive"`
}

type Contracts struct {
	// PaymentReceiver emits PaymentReceived on EVM chains.
	PaymentReceiver string `yaml:"payment_receiver" json:"payment_receiver"`
	// Wallet is the node wallet queried by listsinceblock on native chains.
	Wallet string `yaml:"wallet" json:"wallet"`
}

type NativeAsset struct {
	Symbol   string `yaml:"symbol"   json:"symbol"`
	Decimals int32  `yaml:"decimals" json:"decimals" validate:"gte=0"`
}

type ClientConfig struct {
	Timeout    time.Duration `yaml:"timeout"     json:"timeout"`
	MaxRetries int           `yaml:"max_retries" json:"max_retries" validate:"min=0"`
	RetryDelay time.Duration `yaml:"retry_delay" json:"retry_delay"`
}

type Throttle struct {
	RPS   int `yaml:"rps"   json:"rps"`
	Burst int `yaml:"burst" json:"burst"`
}

// FindToken looks up a configured token by contract address, case-insensitively.
func (c ChainConfig) FindToken(address string) (types.TokenInfo, bool) {
	for _, t := range c.Tokens {
		if strings.EqualFold(t.Address, address) {
			return t, true
		}
	}
	return types.TokenInfo{}, false
}

// ApplyDefaults merges defaults into every chain and names it after its key.
func (c Chains) ApplyDefaults(def Defaults) error {
	for name, chain := range c {
		if err := mergo.Merge(&chain.Client, def.Client); err != nil {
			return fmt.Errorf("merge client defaults for %s: %w", name, err)
		}
		if err := mergo.Merge(&chain.Throttle, def.Throttle); err != nil {
			return fmt.Errorf("merge throttle defaults for %s: %w", name, err)
		}
		if chain.PollInterval == 0 {
			chain.PollInterval = def.PollInterval
		}
		if !chain.FromLatest {
			chain.FromLatest = def.FromLatest
		}
		if chain.Name == "" {
			chain.Name = name
		}
		c[name] = chain
	}
	return nil
}

// PaymentEnabled returns the chains that take part in payment detection.
func (c Chains) PaymentEnabled() []ChainConfig {
	out := make([]ChainConfig, 0, len(c))
	for _, chain := range c {
		if chain.PaymentEnabled {
			out = append(out, chain)
		}
	}
	return out
}
