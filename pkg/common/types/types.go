package types

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/shopspring/decimal"
)

// AccountIDLength is the fixed length of the account-id prefix carried in an
// on-chain payment reference or wallet label. The remainder is the payment id.
const AccountIDLength = 10

// SplitReference splits a payment reference into account id and payment id.
// References shorter than AccountIDLength are rejected.
func SplitReference(ref string) (accountID, paymentID string, ok bool) {
	if len(ref) < AccountIDLength {
		return "", "", false
	}
	return ref[:AccountIDLength], ref[AccountIDLength:], true
}

type TokenInfo struct {
	Address  string `json:"address"  yaml:"address"  validate:"required"`
	Symbol   string `json:"symbol"   yaml:"symbol"   validate:"required"`
	Decimals int32  `json:"decimals" yaml:"decimals" validate:"gte=0"`
}

// PaymentRecord is an immutable ledger entry for one detected payment.
type PaymentRecord struct {
	AccountID     string              `json:"account_id"`
	PaymentID     string              `json:"payment_id"`
	Blockchain    string              `json:"blockchain"`
	Transaction   string              `json:"transaction"`
	LogIndex      uint64              `json:"log_index"`
	Block         string              `json:"block"`
	Timestamp     int64               `json:"timestamp"`
	Sender        string              `json:"sender,omitempty"`
	Receiver      string              `json:"receiver"`
	Direction     enum.Direction      `json:"direction"`
	Amount        string              `json:"amount"`
	AmountUSD     decimal.NullDecimal `json:"amount_usd"`
	Token         *TokenInfo          `json:"token,omitempty"`
	TokenPriceUSD decimal.NullDecimal `json:"token_price_usd"`
}

// Identity renders (account, payment, chain, tx, log index) as a stable key.
func (p PaymentRecord) Identity() string {
	return strings.Join([]string{
		p.AccountID,
		p.PaymentID,
		strings.ToLower(p.Blockchain),
		p.Transaction,
		strconv.FormatUint(p.LogIndex, 10),
	}, "/")
}

// Hash generates a deterministic hash for the record that can be used as an idempotent key.
func (p PaymentRecord) Hash() string {
	hash := sha256.Sum256([]byte(p.Identity()))
	return fmt.Sprintf("%x", hash)
}

// Decimals returns the precision of the paid asset.
func (p PaymentRecord) Decimals(nativeDecimals int32) int32 {
	if p.Token != nil {
		return p.Token.Decimals
	}
	return nativeDecimals
}

func (p PaymentRecord) MarshalBinary() ([]byte, error) {
	return json.Marshal(p)
}

func (p *PaymentRecord) UnmarshalBinary(data []byte) error {
	return json.Unmarshal(data, p)
}

func (p PaymentRecord) String() string {
	return fmt.Sprintf(
		"{Account: %s, Payment: %s, Chain: %s, Tx: %s, LogIndex: %d, Block: %s, Amount: %s, USD: %s}",
		p.AccountID,
		p.PaymentID,
		p.Blockchain,
		p.Transaction,
		p.LogIndex,
		p.Block,
		p.Amount,
		nullString(p.AmountUSD),
	)
}

func nullString(d decimal.NullDecimal) string {
	if !d.Valid {
		return "null"
	}
	return d.Decimal.String()
}

// NotificationRecord is a pending side effect. Identity is (Key, Type, Timestamp).
type NotificationRecord struct {
	Key       string                `json:"key"`
	Type      enum.NotificationType `json:"type"`
	Timestamp int64                 `json:"timestamp"`
	Payload   json.RawMessage       `json:"payload"`
}

// Age reports how long the record has been pending at now.
func (n NotificationRecord) Age(now time.Time) time.Duration {
	return now.Sub(time.Unix(n.Timestamp, 0))
}

type ValuationSample struct {
	Subject string          `json:"subject"`
	Bucket  int64           `json:"bucket"`
	Value   decimal.Decimal `json:"value"`
}

type MerchantProfile struct {
	AccountID     string            `json:"account_id"     yaml:"account_id"     validate:"required,len=10"`
	Name          string            `json:"name"           yaml:"name"`
	Email         string            `json:"email"          yaml:"email"          validate:"omitempty,email"`
	Currency      string            `json:"currency"       yaml:"currency"       validate:"omitempty,len=3"`
	WebhookURL    string            `json:"webhook_url"    yaml:"webhook_url"    validate:"omitempty,url"`
	WebhookSecret string            `json:"webhook_secret" yaml:"webhook_secret"`
	Wallets       map[string]string `json:"wallets"        yaml:"wallets"` // chain name -> receiving address
}

type PaymentSession struct {
	AccountID   string          `json:"account_id"`
	PaymentID   string          `json:"payment_id"`
	RequiredUSD decimal.Decimal `json:"required_usd"`
	Email       string          `json:"email,omitempty"`
	ConfirmedAt int64           `json:"confirmed_at,omitempty"`
}

func (s PaymentSession) Confirmed() bool {
	return s.ConfirmedAt > 0
}

type SupportTicket struct {
	AccountID string `json:"account_id"`
	Email     string `json:"email"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// DeliveryResult is the raw outcome of one webhook POST.
type DeliveryResult struct {
	StatusCode  int    `json:"status_code"`
	Body        string `json:"body,omitempty"`
	Error       string `json:"error,omitempty"`
	AttemptedAt int64  `json:"attempted_at"`
}

// PaymentNotification is the payload of payment_status and webhook records.
type PaymentNotification struct {
	Payment PaymentRecord `json:"payment"`
}
