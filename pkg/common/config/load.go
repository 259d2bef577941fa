package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-yaml"
)

var validate = validator.New()

// Secrets are read from the environment and override values from the file.
type Secrets struct {
	WebhookSigningKey string `env:"GATEWAY_WEBHOOK_SIGNING_KEY"`
	SMTPPassword      string `env:"GATEWAY_SMTP_PASSWORD"`
	ExchangeRateKey   string `env:"GATEWAY_EXCHANGE_RATE_API_KEY"`
	TokenPriceKey     string `env:"GATEWAY_TOKEN_PRICE_API_KEY"`
	RedisPassword     string `env:"GATEWAY_REDIS_PASSWORD"`
	NatsPassword      string `env:"GATEWAY_NATS_PASSWORD"`
	ConsulToken       string `env:"GATEWAY_CONSUL_TOKEN"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes, defaults, overlays secrets and validates a config document.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Chains.ApplyDefaults(cfg.Defaults); err != nil {
		return nil, err
	}
	cfg.Chains.finalizeNodes()
	cfg.applyServiceDefaults()

	var secrets Secrets
	if err := env.Parse(&secrets); err != nil {
		return nil, fmt.Errorf("parse env secrets: %w", err)
	}
	cfg.overlay(secrets)

	if err := validate.Struct(&cfg); err != nil {
		return nil, fmt.Errorf("struct validation failed: %w", err)
	}

	for name, chain := range cfg.Chains {
		if err := ValidateChain(chain); err != nil {
			return nil, fmt.Errorf("chain %s validation failed: %w", name, err)
		}
	}

	return &cfg, nil
}

// ValidateChain checks a single chain config, e.g. one loaded from the KV store.
func ValidateChain(chain ChainConfig) error {
	if strings.TrimSpace(chain.Name) == "" {
		return fmt.Errorf("chain name is required")
	}
	return validate.Struct(chain)
}

func (c *Config) applyServiceDefaults() {
	if c.Services.KVS.Type == "" {
		c.Services.KVS.Type = enum.KVStoreTypeBadger
	}
	if c.Manager.Interval == 0 {
		c.Manager.Interval = constant.DefaultManagerInterval
	}
	if c.Pricing.SamplingInterval == 0 {
		c.Pricing.SamplingInterval = constant.DefaultSamplingInterval
	}
	if c.Notifications.TTL == 0 {
		c.Notifications.TTL = constant.DefaultNotificationTTL
	}
	if c.Notifications.Interval == 0 {
		c.Notifications.Interval = constant.DefaultNotificationInterval
	}
	if c.Webhook.Timeout == 0 {
		c.Webhook.Timeout = constant.DefaultWebhookTimeout
	}
	for name, chain := range c.Chains {
		if chain.PollInterval == 0 {
			chain.PollInterval = constant.DefaultPollInterval
			c.Chains[name] = chain
		}
	}
}

func (c *Config) overlay(s Secrets) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Webhook.SigningKey, s.WebhookSigningKey)
	set(&c.Mail.Password, s.SMTPPassword)
	set(&c.Pricing.ExchangeRate.APIKey, s.ExchangeRateKey)
	set(&c.Pricing.TokenPrice.APIKey, s.TokenPriceKey)
	set(&c.Services.Redis.Password, s.RedisPassword)
	set(&c.Services.Nats.Password, s.NatsPassword)
	set(&c.Services.KVS.Consul.Token, s.ConsulToken)
}
