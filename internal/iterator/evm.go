package iterator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fystack/payment-gateway/internal/rpc/evm"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/common/utils"
	"github.com/shopspring/decimal"
)

// EVMIterator scans PaymentReceived events of the chain's receiver contract.
// The cursor is the next block to scan, in decimal.
type EVMIterator struct {
	chain     config.ChainConfig
	client    evm.EthereumAPI
	merchants MerchantResolver
	prices    PriceSource

	next   uint64
	loaded bool
	log    *slog.Logger
}

func NewEVMIterator(chain config.ChainConfig, client evm.EthereumAPI, merchants MerchantResolver, prices PriceSource) *EVMIterator {
	it := &EVMIterator{
		chain:     chain,
		client:    client,
		merchants: merchants,
		prices:    prices,
		log:       logger.With("component", "evm_iterator", "chain", chain.Name),
	}
	if !chain.FromLatest {
		it.next = chain.StartBlock
		it.loaded = true
	}
	return it
}

func (it *EVMIterator) LastProcessed() string {
	if !it.loaded {
		return ""
	}
	return strconv.FormatUint(it.next, 10)
}

func (it *EVMIterator) Skip(cursor string) error {
	n, err := strconv.ParseUint(strings.TrimSpace(cursor), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid evm cursor %q: %w", cursor, err)
	}
	it.next = n
	it.loaded = true
	return nil
}

func (it *EVMIterator) NextBatch(ctx context.Context) ([]types.PaymentRecord, error) {
	head, err := it.client.GetBlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("get head: %w", err)
	}
	if !it.loaded {
		it.next = head
		it.loaded = true
		it.log.Info("No cursor, starting from head", "block", head)
	}

	from := it.next
	if from > head {
		return nil, nil
	}

	logs, err := it.client.GetLogs(ctx, evm.LogFilter{
		FromBlock: evm.ToHex(from),
		ToBlock:   evm.ToHex(head),
		Address:   it.chain.Contracts.PaymentReceiver,
		Topics:    [][]string{{evm.PaymentReceivedTopic}},
	})
	if err != nil {
		return nil, fmt.Errorf("get logs [%d, %d]: %w", from, head, err)
	}

	timestamps := make(map[uint64]int64)
	records := make([]types.PaymentRecord, 0, len(logs))
	for _, l := range logs {
		if l.Removed {
			continue
		}
		rec, err := it.toRecord(ctx, l, timestamps)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	it.next = head + 1
	it.log.Debug("Scanned range", "from", from, "to", head, "logs", len(logs), "payments", len(records))
	return records, nil
}

// toRecord returns nil for events that are not payments to a known merchant.
func (it *EVMIterator) toRecord(ctx context.Context, l evm.Log, timestamps map[uint64]int64) (*types.PaymentRecord, error) {
	ev, err := evm.DecodePaymentReceived(l)
	if err != nil {
		it.log.Warn("Skipping undecodable log", "tx", l.TransactionHash, "err", err)
		return nil, nil
	}

	accountID, paymentID, ok := types.SplitReference(ev.Reference)
	if !ok {
		it.log.Debug("Skipping event with short reference", "tx", l.TransactionHash, "reference", ev.Reference)
		return nil, nil
	}

	merchant, err := it.merchants.ResolveAddress(ctx, it.chain.Name, ev.Receiver)
	if err != nil {
		return nil, fmt.Errorf("resolve receiver %s: %w", ev.Receiver, err)
	}
	if merchant == nil {
		it.log.Debug("Skipping event for unknown receiver", "tx", l.TransactionHash, "receiver", ev.Receiver)
		return nil, nil
	}
	if merchant.AccountID != accountID {
		it.log.Warn("Reference account does not own receiver",
			"tx", l.TransactionHash,
			"reference_account", accountID,
			"receiver_account", merchant.AccountID,
		)
		return nil, nil
	}

	var token *types.TokenInfo
	tokenAddress := ""
	decimals := it.chain.Native.Decimals
	if !evm.IsZeroAddress(ev.Token) {
		t, ok := it.chain.FindToken(ev.Token)
		if !ok {
			it.log.Warn("Skipping payment in unconfigured token", "tx", l.TransactionHash, "token", ev.Token)
			return nil, nil
		}
		token = &t
		tokenAddress = t.Address
		decimals = t.Decimals
	}

	blockNumber, err := utils.ParseHexUint64(l.BlockNumber)
	if err != nil {
		return nil, fmt.Errorf("parse block number %q: %w", l.BlockNumber, err)
	}
	logIndex, err := utils.ParseHexUint64(l.LogIndex)
	if err != nil {
		return nil, fmt.Errorf("parse log index %q: %w", l.LogIndex, err)
	}
	ts, err := it.blockTime(ctx, blockNumber, timestamps)
	if err != nil {
		return nil, err
	}

	rec := &types.PaymentRecord{
		AccountID:   accountID,
		PaymentID:   paymentID,
		Blockchain:  it.chain.Name,
		Transaction: l.TransactionHash,
		LogIndex:    logIndex,
		Block:       strconv.FormatUint(blockNumber, 10),
		Timestamp:   ts,
		Sender:      ev.Payer,
		Receiver:    ev.Receiver,
		Direction:   enum.DirectionIncoming,
		Amount:      ev.Amount.String(),
		Token:       token,
	}
	if err := value(ctx, it.prices, rec, tokenAddress, decimals); err != nil {
		it.log.Warn("Valuation failed, leaving USD amount empty", "tx", l.TransactionHash, "err", err)
	}
	return rec, nil
}

func (it *EVMIterator) blockTime(ctx context.Context, number uint64, cache map[uint64]int64) (int64, error) {
	if ts, ok := cache[number]; ok {
		return ts, nil
	}
	block, err := it.client.GetBlockByNumber(ctx, number)
	if err != nil {
		return 0, fmt.Errorf("get block %d: %w", number, err)
	}
	ts, err := utils.ParseHexUint64(block.Timestamp)
	if err != nil {
		return 0, fmt.Errorf("parse timestamp of block %d: %w", number, err)
	}
	cache[number] = int64(ts)
	return int64(ts), nil
}

// value fills the USD fields of rec from the token price at rec.Timestamp.
// A missing price leaves them null.
func value(ctx context.Context, prices PriceSource, rec *types.PaymentRecord, token string, decimals int32) error {
	if prices == nil {
		return nil
	}
	price, ok, err := prices.Price(ctx, rec.Blockchain, token, rec.Timestamp)
	if err != nil || !ok {
		return err
	}
	units, err := utils.ToUnits(rec.Amount, decimals)
	if err != nil {
		return err
	}
	rec.TokenPriceUSD = decimal.NewNullDecimal(price)
	rec.AmountUSD = decimal.NewNullDecimal(units.Mul(price))
	return nil
}
