package enum

// ChainType selects how a chain is scanned for payments.
type ChainType string

type KVStoreType string
type NotificationType string
type Direction string

const (
	// ChainTypeEVM chains emit a PaymentReceived event from a receiver contract.
	ChainTypeEVM ChainType = "evm"
	// ChainTypeNative chains are polled through a wallet RPC (listsinceblock).
	ChainTypeNative ChainType = "native"
)

const (
	KVStoreTypeBadger KVStoreType = "badger"
	KVStoreTypeConsul KVStoreType = "consul"
	KVStoreTypeMemory KVStoreType = "memory"
)

const (
	NotificationPaymentStatus NotificationType = "payment_status"
	NotificationWebhook       NotificationType = "webhook"
	NotificationSupportTicket NotificationType = "support_ticket"
)

var AllNotificationTypes = []NotificationType{
	NotificationPaymentStatus,
	NotificationWebhook,
	NotificationSupportTicket,
}

const (
	DirectionIncoming Direction = "incoming"
)

const (
	ValuationExchangeRate = "exchange_rate"
	ValuationTokenPrice   = "token_price"
)
