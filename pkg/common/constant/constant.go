package constant

import "time"

// KV key prefixes. Every store owns exactly one prefix.
const (
	CursorKeyPrefix       = "cursors/"
	PaymentKeyPrefix      = "payments/"
	DeliveryKeyPrefix     = "webhook_results/"
	NotificationKeyPrefix = "notifications/"
	ValuationKeyPrefix    = "valuation/"
	ChainKeyPrefix        = "chains/"
	MerchantKeyPrefix     = "merchants/"
	MerchantAddressPrefix = "merchant_addresses/"
	SessionKeyPrefix      = "sessions/"
)

// AllKeyPrefixes lists every prefix the gateway writes under.
var AllKeyPrefixes = []string{
	ChainKeyPrefix,
	MerchantKeyPrefix,
	MerchantAddressPrefix,
	SessionKeyPrefix,
	CursorKeyPrefix,
	PaymentKeyPrefix,
	DeliveryKeyPrefix,
	NotificationKeyPrefix,
	ValuationKeyPrefix,
}

const (
	IngestionTaskPrefix = "ingest:"
	DispatchTaskPrefix  = "dispatch:"
	ChainManagerTaskKey = "chain-manager"
)

const (
	DefaultPollInterval         = 15 * time.Second
	DefaultManagerInterval      = 30 * time.Second
	DefaultNotificationTTL      = 24 * time.Hour
	DefaultNotificationInterval = 10 * time.Second
	DefaultSamplingInterval     = time.Hour
	DefaultWebhookTimeout       = 10 * time.Second

	NativeTokenSubject = "native"
	SignatureHeader    = "X-Gateway-Signature"
	DeadLetterListKey  = "gateway:notifications:dead"
)
