package notification

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fystack/payment-gateway/internal/mailer"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/store/paymentstore"
	"github.com/shopspring/decimal"
)

// PaymentLister reads the ledger.
type PaymentLister interface {
	List(ctx context.Context, accountID string, filter paymentstore.Filter) ([]types.PaymentRecord, error)
}

// SessionStore holds checkout sessions.
type SessionStore interface {
	GetSession(ctx context.Context, accountID, paymentID string) (*types.PaymentSession, error)
	MarkConfirmed(ctx context.Context, accountID, paymentID string, at time.Time) error
}

// PaymentStatusHandler confirms a session once the USD received covers the
// required amount and mails the buyer.
type PaymentStatusHandler struct {
	payments PaymentLister
	sessions SessionStore
	mailer   mailer.Mailer
	now      func() time.Time
	log      *slog.Logger
}

func NewPaymentStatusHandler(payments PaymentLister, sessions SessionStore, m mailer.Mailer) *PaymentStatusHandler {
	return &PaymentStatusHandler{
		payments: payments,
		sessions: sessions,
		mailer:   m,
		now:      time.Now,
		log:      logger.With("component", "notification", "type", enum.NotificationPaymentStatus),
	}
}

func (h *PaymentStatusHandler) Type() enum.NotificationType { return enum.NotificationPaymentStatus }

func (h *PaymentStatusHandler) Handle(ctx context.Context, record types.NotificationRecord) (Result, error) {
	if record.Type != h.Type() {
		return NotMine, nil
	}
	payment, err := decodePayment(record)
	if err != nil {
		return Deferred, err
	}

	session, err := h.sessions.GetSession(ctx, payment.AccountID, payment.PaymentID)
	if err != nil {
		return Deferred, err
	}
	if session == nil {
		h.log.Debug("No session for payment yet", "account", payment.AccountID, "payment", payment.PaymentID)
		return Deferred, nil
	}
	if session.Confirmed() {
		return Handled, nil
	}

	records, err := h.payments.List(ctx, payment.AccountID, paymentstore.Filter{PaymentID: payment.PaymentID})
	if err != nil {
		return Deferred, err
	}
	received := TotalUSD(records)
	if received.LessThan(session.RequiredUSD) {
		h.log.Debug("Payment not yet reconciled",
			"account", payment.AccountID,
			"payment", payment.PaymentID,
			"received_usd", received.String(),
			"required_usd", session.RequiredUSD.String(),
		)
		return Deferred, nil
	}

	if validEmail(session.Email) {
		msg := mailer.Message{
			To:      []string{session.Email},
			Subject: fmt.Sprintf("Payment %s confirmed", payment.PaymentID),
			Body:    confirmationBody(*session, records, received),
		}
		if err := h.mailer.Send(ctx, msg); err != nil {
			return Deferred, fmt.Errorf("send confirmation for %s/%s: %w", payment.AccountID, payment.PaymentID, err)
		}
	} else if session.Email != "" {
		h.log.Warn("Skipping confirmation mail, invalid address", "account", payment.AccountID, "payment", payment.PaymentID)
	}

	if err := h.sessions.MarkConfirmed(ctx, payment.AccountID, payment.PaymentID, h.now()); err != nil {
		return Deferred, err
	}
	h.log.Info("Payment session confirmed",
		"account", payment.AccountID,
		"payment", payment.PaymentID,
		"received_usd", received.StringFixed(2),
	)
	return Handled, nil
}

// TotalUSD sums the USD value of payments that could be valued.
func TotalUSD(records []types.PaymentRecord) decimal.Decimal {
	total := decimal.Zero
	for _, r := range records {
		if r.AmountUSD.Valid {
			total = total.Add(r.AmountUSD.Decimal)
		}
	}
	return total
}

func confirmationBody(session types.PaymentSession, records []types.PaymentRecord, received decimal.Decimal) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your payment %s has been received in full.\n\n", session.PaymentID)
	fmt.Fprintf(&b, "Required: %s USD\n", session.RequiredUSD.StringFixed(2))
	fmt.Fprintf(&b, "Received: %s USD\n\n", received.StringFixed(2))
	for _, r := range records {
		symbol := ""
		if r.Token != nil {
			symbol = r.Token.Symbol
		}
		fmt.Fprintf(&b, "- %s %s %s on %s (tx %s)\n", r.Amount, symbol, nullUSD(r.AmountUSD), r.Blockchain, r.Transaction)
	}
	return b.String()
}

func nullUSD(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return "(" + d.Decimal.StringFixed(2) + " USD)"
}
