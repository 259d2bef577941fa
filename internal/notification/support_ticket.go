package notification

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fystack/payment-gateway/internal/mailer"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
)

// SupportTicketHandler forwards tickets to the support mailbox. A ticket is
// consumed even when the mail cannot be sent.
type SupportTicketHandler struct {
	mailer  mailer.Mailer
	support string
}

func NewSupportTicketHandler(m mailer.Mailer, supportAddress string) *SupportTicketHandler {
	return &SupportTicketHandler{mailer: m, support: supportAddress}
}

func (h *SupportTicketHandler) Type() enum.NotificationType { return enum.NotificationSupportTicket }

func (h *SupportTicketHandler) Handle(ctx context.Context, record types.NotificationRecord) (Result, error) {
	if record.Type != h.Type() {
		return NotMine, nil
	}

	var ticket types.SupportTicket
	if err := json.Unmarshal(record.Payload, &ticket); err != nil {
		return Handled, fmt.Errorf("decode support ticket %s: %w", record.Key, err)
	}
	if h.support == "" {
		logger.Warn("No support address configured, dropping ticket", "key", record.Key)
		return Handled, nil
	}

	msg := mailer.Message{
		To:      []string{h.support},
		Subject: fmt.Sprintf("[support] %s", ticket.Subject),
		Body: fmt.Sprintf("Account: %s\nFrom: %s\n\n%s\n",
			ticket.AccountID, ticket.Email, ticket.Message),
	}
	if err := h.mailer.Send(ctx, msg); err != nil {
		return Handled, fmt.Errorf("send support ticket %s: %w", record.Key, err)
	}
	return Handled, nil
}
