package paymentstore

import (
	"context"
	"testing"

	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/kvstore"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

type PaymentStoreTestSuite struct {
	suite.Suite
	kv    *kvstore.MemoryStore
	store Store
}

func (s *PaymentStoreTestSuite) SetupTest() {
	s.kv = kvstore.NewMemoryStore()
	s.store = New(s.kv)
}

func record(pid, chain, tx string, logIndex uint64) types.PaymentRecord {
	return types.PaymentRecord{
		AccountID:   "ACC0000001",
		PaymentID:   pid,
		Blockchain:  chain,
		Transaction: tx,
		LogIndex:    logIndex,
		Block:       "103",
		Timestamp:   1700000000,
		Receiver:    "0xreceiver",
		Direction:   enum.DirectionIncoming,
		Amount:      "2000000",
		AmountUSD:   decimal.NewNullDecimal(decimal.NewFromInt(4)),
	}
}

func (s *PaymentStoreTestSuite) TestAppendIsIdempotent() {
	ctx := context.Background()
	rec := record("PAY1", "ethereum", "0xaaa", 0)

	s.NoError(s.store.Append(ctx, rec))
	s.NoError(s.store.Append(ctx, rec))

	got, err := s.store.List(ctx, "ACC0000001", Filter{})
	s.NoError(err)
	s.Len(got, 1)
	s.True(got[0].AmountUSD.Decimal.Equal(decimal.NewFromInt(4)))
}

func (s *PaymentStoreTestSuite) TestListFilters() {
	ctx := context.Background()
	s.NoError(s.store.Append(ctx, record("PAY1", "ethereum", "0xaaa", 0)))
	s.NoError(s.store.Append(ctx, record("PAY1", "ethereum", "0xaaa", 1)))
	s.NoError(s.store.Append(ctx, record("PAY10", "bitcoin", "ffee", 0)))

	byPayment, err := s.store.List(ctx, "ACC0000001", Filter{PaymentID: "PAY1"})
	s.NoError(err)
	s.Len(byPayment, 2)

	byChain, err := s.store.List(ctx, "ACC0000001", Filter{Blockchain: "Bitcoin"})
	s.NoError(err)
	s.Len(byChain, 1)
	s.Equal("PAY10", byChain[0].PaymentID)

	_, err = s.store.List(ctx, "", Filter{})
	s.Error(err)
}

func (s *PaymentStoreTestSuite) TestListMatchesWholePaymentID() {
	ctx := context.Background()
	own := record("PAY1", "ethereum", "0xaaa", 0)
	nested := record("PAY1/extra", "ethereum", "0xbbb", 0)
	nested.AmountUSD = decimal.NewNullDecimal(decimal.NewFromInt(50))
	chainLike := record("PAY1/ethereum", "ethereum", "0xccc", 0)
	s.NoError(s.store.Append(ctx, own))
	s.NoError(s.store.Append(ctx, nested))
	s.NoError(s.store.Append(ctx, chainLike))

	got, err := s.store.List(ctx, "ACC0000001", Filter{PaymentID: "PAY1"})
	s.NoError(err)
	s.Require().Len(got, 1)
	s.Equal("0xaaa", got[0].Transaction)

	got, err = s.store.List(ctx, "ACC0000001", Filter{PaymentID: "PAY1", Blockchain: "ethereum"})
	s.NoError(err)
	s.Len(got, 1)

	got, err = s.store.List(ctx, "ACC0000001", Filter{PaymentID: "PAY1/extra"})
	s.NoError(err)
	s.Require().Len(got, 1)
	s.Equal("0xbbb", got[0].Transaction)
}

func (s *PaymentStoreTestSuite) TestDeliveries() {
	ctx := context.Background()
	rec := record("PAY1", "ethereum", "0xaaa", 0)

	got, err := s.store.GetDelivery(ctx, rec.Identity())
	s.NoError(err)
	s.Nil(got)

	s.NoError(s.store.SaveDelivery(ctx, rec.Identity(), types.DeliveryResult{StatusCode: 500, Body: "boom"}))
	got, err = s.store.GetDelivery(ctx, rec.Identity())
	s.NoError(err)
	s.Equal(500, got.StatusCode)

	all, err := s.store.ListDeliveries(ctx)
	s.NoError(err)
	s.Contains(all, rec.Identity())
}

func TestPaymentStoreTestSuite(t *testing.T) {
	suite.Run(t, new(PaymentStoreTestSuite))
}
