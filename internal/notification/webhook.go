package notification

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/internal/metrics"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/store/paymentstore"
	"github.com/shopspring/decimal"
)

const (
	WebhookEventPaymentReceived = "payment.received"
	maxResponseBody             = 4096
)

type ProfileStore interface {
	GetProfile(ctx context.Context, accountID string) (*types.MerchantProfile, error)
}

// DeliveryStore persists raw webhook outcomes.
type DeliveryStore interface {
	PaymentLister
	SaveDelivery(ctx context.Context, identity string, result types.DeliveryResult) error
}

// CurrencyConverter converts USD amounts into a fiat currency.
type CurrencyConverter interface {
	Convert(ctx context.Context, usd decimal.Decimal, currency string, ts int64) (decimal.NullDecimal, error)
}

// WebhookPayload is the JSON body POSTed to merchants.
type WebhookPayload struct {
	Event       string              `json:"event"`
	AccountID   string              `json:"account_id"`
	PaymentID   string              `json:"payment_id"`
	Blockchain  string              `json:"blockchain"`
	Transaction string              `json:"transaction"`
	LogIndex    uint64              `json:"log_index"`
	Block       string              `json:"block"`
	Timestamp   int64               `json:"timestamp"`
	Sender      string              `json:"sender,omitempty"`
	Receiver    string              `json:"receiver"`
	Amount      string              `json:"amount"`
	Token       *types.TokenInfo    `json:"token,omitempty"`
	AmountUSD   decimal.NullDecimal `json:"amount_usd"`
	AmountFiat  decimal.NullDecimal `json:"amount_fiat"`
	Currency    string              `json:"currency"`
	TotalUSD    decimal.Decimal     `json:"total_usd"`
	TotalFiat   decimal.NullDecimal `json:"total_fiat"`
	Payments    int                 `json:"payments"`
	SentAt      int64               `json:"sent_at"`
}

// WebhookHandler notifies merchants of each detected payment. Delivery
// failures are stored as results, never retried.
type WebhookHandler struct {
	merchants  ProfileStore
	payments   DeliveryStore
	rates      CurrencyConverter
	client     *http.Client
	signingKey []byte
	now        func() time.Time
	log        *slog.Logger
}

func NewWebhookHandler(merchants ProfileStore, payments DeliveryStore, rates CurrencyConverter, cfg config.WebhookConfig) *WebhookHandler {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = constant.DefaultWebhookTimeout
	}
	return &WebhookHandler{
		merchants:  merchants,
		payments:   payments,
		rates:      rates,
		client:     &http.Client{Timeout: timeout},
		signingKey: []byte(cfg.SigningKey),
		now:        time.Now,
		log:        logger.With("component", "notification", "type", enum.NotificationWebhook),
	}
}

func (h *WebhookHandler) Type() enum.NotificationType { return enum.NotificationWebhook }

func (h *WebhookHandler) Handle(ctx context.Context, record types.NotificationRecord) (Result, error) {
	if record.Type != h.Type() {
		return NotMine, nil
	}
	payment, err := decodePayment(record)
	if err != nil {
		return Deferred, err
	}

	merchant, err := h.merchants.GetProfile(ctx, payment.AccountID)
	if err != nil {
		return Deferred, err
	}
	if merchant == nil || merchant.WebhookURL == "" {
		h.log.Debug("No webhook configured", "account", payment.AccountID)
		return Handled, nil
	}

	payload, err := h.buildPayload(ctx, payment, merchant.Currency)
	if err != nil {
		return Deferred, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return Deferred, fmt.Errorf("encode webhook payload: %w", err)
	}

	result := h.post(ctx, merchant, body)
	if err := h.payments.SaveDelivery(ctx, payment.Identity(), result); err != nil {
		return Deferred, fmt.Errorf("store webhook result %s: %w", payment.Identity(), err)
	}
	h.log.Info("Webhook delivered",
		"account", payment.AccountID,
		"payment", payment.PaymentID,
		"status", result.StatusCode,
		"error", result.Error,
	)
	return Handled, nil
}

func (h *WebhookHandler) buildPayload(ctx context.Context, payment types.PaymentRecord, currency string) (*WebhookPayload, error) {
	records, err := h.payments.List(ctx, payment.AccountID, paymentstore.Filter{PaymentID: payment.PaymentID})
	if err != nil {
		return nil, err
	}
	totalUSD := TotalUSD(records)
	currency = strings.ToUpper(currency)
	if currency == "" {
		currency = "USD"
	}

	p := &WebhookPayload{
		Event:       WebhookEventPaymentReceived,
		AccountID:   payment.AccountID,
		PaymentID:   payment.PaymentID,
		Blockchain:  payment.Blockchain,
		Transaction: payment.Transaction,
		LogIndex:    payment.LogIndex,
		Block:       payment.Block,
		Timestamp:   payment.Timestamp,
		Sender:      payment.Sender,
		Receiver:    payment.Receiver,
		Amount:      payment.Amount,
		Token:       payment.Token,
		AmountUSD:   payment.AmountUSD,
		Currency:    currency,
		TotalUSD:    totalUSD,
		Payments:    len(records),
		SentAt:      h.now().Unix(),
	}
	if payment.AmountUSD.Valid {
		p.AmountFiat = h.convert(ctx, payment.AmountUSD.Decimal, currency, payment.Timestamp)
	}
	p.TotalFiat = h.convert(ctx, totalUSD, currency, p.SentAt)
	return p, nil
}

// convert prefers the rate at ts and falls back to the current rate when
// that bucket was never sampled. Unknown rates yield null.
func (h *WebhookHandler) convert(ctx context.Context, usd decimal.Decimal, currency string, ts int64) decimal.NullDecimal {
	v, err := h.rates.Convert(ctx, usd, currency, ts)
	if err == nil && !v.Valid {
		v, err = h.rates.Convert(ctx, usd, currency, h.now().Unix())
	}
	if err != nil {
		h.log.Warn("Currency conversion failed", "currency", currency, "err", err)
		return decimal.NullDecimal{}
	}
	return v
}

func (h *WebhookHandler) post(ctx context.Context, merchant *types.MerchantProfile, body []byte) types.DeliveryResult {
	result := types.DeliveryResult{AttemptedAt: h.now().Unix()}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, merchant.WebhookURL, bytes.NewReader(body))
	if err != nil {
		result.Error = err.Error()
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return result
	}
	req.Header.Set("Content-Type", "application/json")
	if len(h.signingKey) > 0 {
		req.Header.Set(constant.SignatureHeader, Sign(h.signingKey, body))
	}
	if merchant.WebhookSecret != "" {
		req.Header.Set("Authorization", "Bearer "+merchant.WebhookSecret)
	}

	resp, err := h.client.Do(req)
	if err != nil {
		result.Error = err.Error()
		metrics.WebhookDeliveriesTotal.WithLabelValues("error").Inc()
		return result
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		result.Error = err.Error()
	}
	result.StatusCode = resp.StatusCode
	result.Body = string(respBody)
	metrics.WebhookDeliveriesTotal.WithLabelValues(fmt.Sprintf("%dxx", resp.StatusCode/100)).Inc()
	return result
}

// Sign returns the hex HMAC-SHA256 of body.
func Sign(key, body []byte) string {
	mac := hmac.New(sha256.New, key)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
