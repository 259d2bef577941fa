package notification

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fystack/payment-gateway/internal/mailer"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/constant"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/fystack/payment-gateway/pkg/store/merchantstore"
	"github.com/fystack/payment-gateway/pkg/store/notificationstore"
	"github.com/fystack/payment-gateway/pkg/store/paymentstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

type fakeMailer struct {
	mu   sync.Mutex
	sent []mailer.Message
	err  error
}

func (m *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

type fixedRates map[string]decimal.Decimal

func (r fixedRates) Convert(ctx context.Context, usd decimal.Decimal, currency string, ts int64) (decimal.NullDecimal, error) {
	rate, ok := r[currency]
	if !ok {
		return decimal.NullDecimal{}, nil
	}
	return decimal.NewNullDecimal(usd.Mul(rate)), nil
}

func payment(tx string, usd string) types.PaymentRecord {
	rec := types.PaymentRecord{
		AccountID:   "ACC0000001",
		PaymentID:   "PAY1",
		Blockchain:  "ethereum",
		Transaction: tx,
		Block:       "103",
		Timestamp:   1_700_000_000,
		Receiver:    "0x2222222222222222222222222222222222222222",
		Direction:   enum.DirectionIncoming,
		Amount:      "2000000",
		Token:       &types.TokenInfo{Address: "0xa0b8", Symbol: "USDC", Decimals: 6},
	}
	if usd != "" {
		rec.AmountUSD = decimal.NewNullDecimal(decimal.RequireFromString(usd))
	}
	return rec
}

func recordsFor(t *testing.T, p types.PaymentRecord, nt enum.NotificationType) types.NotificationRecord {
	recs, err := PaymentNotifications(p, time.Now())
	require.NoError(t, err)
	for _, r := range recs {
		if r.Type == nt {
			return r
		}
	}
	t.Fatalf("no %s record", nt)
	return types.NotificationRecord{}
}

type HandlerTestSuite struct {
	suite.Suite
	ctx       context.Context
	payments  paymentstore.Store
	merchants merchantstore.Store
	mail      *fakeMailer
}

func (s *HandlerTestSuite) SetupTest() {
	s.ctx = context.Background()
	kv := kvstore.NewMemoryStore()
	s.payments = paymentstore.New(kv)
	s.merchants = merchantstore.New(kv, nil)
	s.mail = &fakeMailer{}
}

func (s *HandlerTestSuite) TestPaymentNotificationsShareKey() {
	recs, err := PaymentNotifications(payment("0xt1", "4"), time.Unix(100, 0))
	s.Require().NoError(err)
	s.Require().Len(recs, 2)
	s.Equal(enum.NotificationPaymentStatus, recs[0].Type)
	s.Equal(enum.NotificationWebhook, recs[1].Type)
	s.Equal(recs[0].Key, recs[1].Key)
	s.True(strings.HasPrefix(recs[0].Key, "ACC0000001#PAY1#"))

	again, err := PaymentNotifications(payment("0xt1", "4"), time.Unix(100, 0))
	s.Require().NoError(err)
	s.NotEqual(recs[0].Key, again[0].Key)
}

func (s *HandlerTestSuite) TestPaymentStatus_ReconcilesAndMails() {
	h := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	s.Require().NoError(s.merchants.SaveSession(s.ctx, types.PaymentSession{
		AccountID: "ACC0000001", PaymentID: "PAY1",
		RequiredUSD: decimal.RequireFromString("5"), Email: "buyer@example.com",
	}))

	first := payment("0xt1", "3")
	s.Require().NoError(s.payments.Append(s.ctx, first))
	res, err := h.Handle(s.ctx, recordsFor(s.T(), first, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Deferred, res)
	s.Empty(s.mail.sent)

	second := payment("0xt2", "2")
	s.Require().NoError(s.payments.Append(s.ctx, second))
	res, err = h.Handle(s.ctx, recordsFor(s.T(), second, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Handled, res)
	s.Require().Len(s.mail.sent, 1)
	s.Equal([]string{"buyer@example.com"}, s.mail.sent[0].To)
	s.Contains(s.mail.sent[0].Body, "Received: 5.00 USD")

	session, err := s.merchants.GetSession(s.ctx, "ACC0000001", "PAY1")
	s.Require().NoError(err)
	s.True(session.Confirmed())

	// the first record, polled again, sees a confirmed session and does not resend
	res, err = h.Handle(s.ctx, recordsFor(s.T(), first, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Handled, res)
	s.Len(s.mail.sent, 1)
}

func (s *HandlerTestSuite) TestPaymentStatus_MailFailureDefers() {
	h := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	s.mail.err = errors.New("smtp down")
	s.Require().NoError(s.merchants.SaveSession(s.ctx, types.PaymentSession{
		AccountID: "ACC0000001", PaymentID: "PAY1",
		RequiredUSD: decimal.RequireFromString("1"), Email: "buyer@example.com",
	}))
	p := payment("0xt1", "4")
	s.Require().NoError(s.payments.Append(s.ctx, p))

	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationPaymentStatus))
	s.Error(err)
	s.Equal(Deferred, res)

	session, _ := s.merchants.GetSession(s.ctx, "ACC0000001", "PAY1")
	s.False(session.Confirmed())
}

func (s *HandlerTestSuite) TestPaymentStatus_InvalidEmailStillConfirms() {
	h := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	s.Require().NoError(s.merchants.SaveSession(s.ctx, types.PaymentSession{
		AccountID: "ACC0000001", PaymentID: "PAY1",
		RequiredUSD: decimal.RequireFromString("1"), Email: "not-an-email",
	}))
	p := payment("0xt1", "4")
	s.Require().NoError(s.payments.Append(s.ctx, p))

	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Handled, res)
	s.Empty(s.mail.sent)
}

func (s *HandlerTestSuite) TestPaymentStatus_IgnoresSiblingPaymentIDs() {
	h := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	s.Require().NoError(s.merchants.SaveSession(s.ctx, types.PaymentSession{
		AccountID: "ACC0000001", PaymentID: "PAY1",
		RequiredUSD: decimal.RequireFromString("10"), Email: "buyer@example.com",
	}))

	other := payment("0xt1", "50")
	other.PaymentID = "PAY1/extra"
	own := payment("0xt2", "1")
	s.Require().NoError(s.payments.Append(s.ctx, other))
	s.Require().NoError(s.payments.Append(s.ctx, own))

	res, err := h.Handle(s.ctx, recordsFor(s.T(), own, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Deferred, res)
	s.Empty(s.mail.sent)

	session, err := s.merchants.GetSession(s.ctx, "ACC0000001", "PAY1")
	s.Require().NoError(err)
	s.False(session.Confirmed())
}

func (s *HandlerTestSuite) TestPaymentStatus_NoSessionDefers() {
	h := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	p := payment("0xt1", "4")
	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationPaymentStatus))
	s.NoError(err)
	s.Equal(Deferred, res)
}

func (s *HandlerTestSuite) TestHandlersRejectForeignTypes() {
	p := payment("0xt1", "4")
	status := NewPaymentStatusHandler(s.payments, s.merchants, s.mail)
	webhook := NewWebhookHandler(s.merchants, s.payments, fixedRates{}, config.WebhookConfig{})
	support := NewSupportTicketHandler(s.mail, "support@example.com")

	res, _ := status.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.Equal(NotMine, res)
	res, _ = webhook.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationPaymentStatus))
	s.Equal(NotMine, res)
	res, _ = support.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.Equal(NotMine, res)
}

func (s *HandlerTestSuite) TestWebhook_SignsPostsAndStoresResult() {
	var gotBody []byte
	var gotSig, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get(constant.SignatureHeader)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	s.Require().NoError(s.merchants.SaveProfile(s.ctx, types.MerchantProfile{
		AccountID: "ACC0000001", Currency: "eur",
		WebhookURL: srv.URL, WebhookSecret: "merchant-secret",
	}))
	earlier := payment("0xt0", "1")
	p := payment("0xt1", "4")
	s.Require().NoError(s.payments.Append(s.ctx, earlier))
	s.Require().NoError(s.payments.Append(s.ctx, p))

	h := NewWebhookHandler(s.merchants, s.payments, fixedRates{"EUR": decimal.RequireFromString("0.5")},
		config.WebhookConfig{SigningKey: "signing-key"})
	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.NoError(err)
	s.Equal(Handled, res)

	s.Equal(Sign([]byte("signing-key"), gotBody), gotSig)
	s.Equal("Bearer merchant-secret", gotAuth)

	var payload WebhookPayload
	s.Require().NoError(json.Unmarshal(gotBody, &payload))
	s.Equal(WebhookEventPaymentReceived, payload.Event)
	s.Equal("EUR", payload.Currency)
	s.Equal("4", payload.AmountUSD.Decimal.String())
	s.Equal("2", payload.AmountFiat.Decimal.String())
	s.Equal("5", payload.TotalUSD.String())
	s.Equal("2.5", payload.TotalFiat.Decimal.String())
	s.Equal(2, payload.Payments)

	result, err := s.payments.GetDelivery(s.ctx, p.Identity())
	s.Require().NoError(err)
	s.Require().NotNil(result)
	s.Equal(http.StatusAccepted, result.StatusCode)
	s.Equal("ok", result.Body)
}

func (s *HandlerTestSuite) TestWebhook_FailureIsData() {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	s.Require().NoError(s.merchants.SaveProfile(s.ctx, types.MerchantProfile{AccountID: "ACC0000001", WebhookURL: srv.URL}))
	p := payment("0xt1", "")
	s.Require().NoError(s.payments.Append(s.ctx, p))

	h := NewWebhookHandler(s.merchants, s.payments, fixedRates{}, config.WebhookConfig{})
	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.NoError(err)
	s.Equal(Handled, res)

	result, err := s.payments.GetDelivery(s.ctx, p.Identity())
	s.Require().NoError(err)
	s.Equal(http.StatusInternalServerError, result.StatusCode)
	s.Contains(result.Body, "boom")

	// unreachable endpoint: error captured, still handled
	srv.Close()
	res, err = h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.NoError(err)
	s.Equal(Handled, res)
	result, _ = s.payments.GetDelivery(s.ctx, p.Identity())
	s.NotEmpty(result.Error)
	s.Zero(result.StatusCode)
}

type failingDeliveries struct {
	paymentstore.Store
	err error
}

func (f failingDeliveries) SaveDelivery(ctx context.Context, identity string, result types.DeliveryResult) error {
	return f.err
}

func (s *HandlerTestSuite) TestWebhook_UnstoredResultDefers() {
	var posts atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		posts.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s.Require().NoError(s.merchants.SaveProfile(s.ctx, types.MerchantProfile{AccountID: "ACC0000001", WebhookURL: srv.URL}))
	p := payment("0xt1", "4")
	s.Require().NoError(s.payments.Append(s.ctx, p))

	kvDown := errors.New("kv down")
	h := NewWebhookHandler(s.merchants, failingDeliveries{Store: s.payments, err: kvDown}, fixedRates{}, config.WebhookConfig{})
	res, err := h.Handle(s.ctx, recordsFor(s.T(), p, enum.NotificationWebhook))
	s.ErrorIs(err, kvDown)
	s.Equal(Deferred, res)
	s.Equal(int32(1), posts.Load())

	stored, err := s.payments.GetDelivery(s.ctx, p.Identity())
	s.NoError(err)
	s.Nil(stored)
}

func (s *HandlerTestSuite) TestWebhook_NoCallbackConfigured() {
	s.Require().NoError(s.merchants.SaveProfile(s.ctx, types.MerchantProfile{AccountID: "ACC0000001"}))
	h := NewWebhookHandler(s.merchants, s.payments, fixedRates{}, config.WebhookConfig{})
	res, err := h.Handle(s.ctx, recordsFor(s.T(), payment("0xt1", "1"), enum.NotificationWebhook))
	s.NoError(err)
	s.Equal(Handled, res)
}

func (s *HandlerTestSuite) TestSupportTicket() {
	queue := notificationstore.New(kvstore.NewMemoryStore())
	rec, err := EnqueueSupportTicket(s.ctx, queue, types.SupportTicket{
		AccountID: "ACC0000001", Email: "buyer@example.com", Subject: "Missing payment", Message: "Paid twice",
	})
	s.Require().NoError(err)
	s.Equal(enum.NotificationSupportTicket, rec.Type)

	pending, err := queue.List(s.ctx, enum.NotificationSupportTicket)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)

	h := NewSupportTicketHandler(s.mail, "support@example.com")
	res, err := h.Handle(s.ctx, pending[0])
	s.NoError(err)
	s.Equal(Handled, res)
	s.Require().Len(s.mail.sent, 1)
	s.Equal("[support] Missing payment", s.mail.sent[0].Subject)
	s.Contains(s.mail.sent[0].Body, "Paid twice")

	s.mail.err = errors.New("smtp down")
	res, err = h.Handle(s.ctx, pending[0])
	s.Error(err)
	s.Equal(Handled, res)

	_, err = EnqueueSupportTicket(s.ctx, queue, types.SupportTicket{Email: "nope", Message: "x"})
	s.Error(err)
}

func TestHandlerTestSuite(t *testing.T) {
	suite.Run(t, new(HandlerTestSuite))
}

func TestRegistry(t *testing.T) {
	m := &fakeMailer{}
	r, err := NewRegistry(NewSupportTicketHandler(m, ""), NewPaymentStatusHandler(nil, nil, m))
	require.NoError(t, err)
	assert.Equal(t, []enum.NotificationType{enum.NotificationPaymentStatus, enum.NotificationSupportTicket}, r.Types())

	_, ok := r.Get(enum.NotificationWebhook)
	assert.False(t, ok)

	_, err = NewRegistry(NewSupportTicketHandler(m, ""), NewSupportTicketHandler(m, "x@example.com"))
	assert.Error(t, err)
}

func TestResultString(t *testing.T) {
	assert.Equal(t, "handled", Handled.String())
	assert.Equal(t, "deferred", Deferred.String())
	assert.Equal(t, "not_mine", NotMine.String())
}
