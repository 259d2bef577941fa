package config

import (
	"time"

	"github.com/fystack/payment-gateway/pkg/common/types"
)

type Env string

const (
	DevEnv  Env = "dev"
	ProdEnv Env = "prod"
	StgEnv  Env = "stag"
)

type Config struct {
	Environment   Env                     `yaml:"env"           validate:"required,oneof=dev prod stag"`
	Defaults      Defaults                `yaml:"defaults"`
	Chains        Chains                  `yaml:"chains"        validate:"required,min=1"`
	Services      Services                `yaml:"services"      validate:"required"`
	Manager       ManagerConfig           `yaml:"manager"`
	Pricing       PricingConfig           `yaml:"pricing"`
	Notifications NotificationsConfig     `yaml:"notifications"`
	Webhook       WebhookConfig           `yaml:"webhook"`
	Mail          MailConfig              `yaml:"mail"`
	Merchants     []types.MerchantProfile `yaml:"merchants"     validate:"dive"`
}

type Defaults struct {
	FromLatest   bool          `yaml:"from_latest"`
	PollInterval time.Duration `yaml:"poll_interval"`
	Client       ClientConfig  `yaml:"client"`
	Throttle     Throttle      `yaml:"throttle"`
}

type ManagerConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type PricingConfig struct {
	// SamplingInterval is the valuation bucket width.
	SamplingInterval time.Duration  `yaml:"sampling_interval"`
	ExchangeRate     ProviderConfig `yaml:"exchange_rate"`
	TokenPrice       ProviderConfig `yaml:"token_price"`
}

type ProviderConfig struct {
	URL     string        `yaml:"url"     validate:"omitempty,url"`
	APIKey  string        `yaml:"api_key"`
	Timeout time.Duration `yaml:"timeout"`
}

type NotificationsConfig struct {
	TTL       time.Duration            `yaml:"ttl"`
	Interval  time.Duration            `yaml:"interval"`
	Intervals map[string]time.Duration `yaml:"intervals"` // per notification type
	// DeadLetter keeps a copy of expired records in a redis list before deletion.
	DeadLetter bool `yaml:"dead_letter"`
}

// IntervalFor returns the dispatch interval for a notification type.
func (n NotificationsConfig) IntervalFor(notificationType string) time.Duration {
	if d, ok := n.Intervals[notificationType]; ok && d > 0 {
		return d
	}
	return n.Interval
}

type WebhookConfig struct {
	SigningKey string        `yaml:"signing_key"`
	Timeout    time.Duration `yaml:"timeout"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"    validate:"omitempty,min=1,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"    validate:"omitempty,email"`
	Support  string `yaml:"support" validate:"omitempty,email"`
}

// Enabled reports whether an SMTP relay is configured.
func (m MailConfig) Enabled() bool {
	return m.Host != ""
}
