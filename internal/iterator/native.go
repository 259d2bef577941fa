package iterator

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/fystack/payment-gateway/internal/rpc/bitcoin"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/enum"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/common/types"
	"github.com/fystack/payment-gateway/pkg/common/utils"
)

// NativeIterator polls a node wallet with listsinceblock. The cursor is the
// hash of the last block covered.
type NativeIterator struct {
	chain  config.ChainConfig
	client bitcoin.BitcoinAPI
	prices PriceSource

	cursor string
	log    *slog.Logger
}

func NewNativeIterator(chain config.ChainConfig, client bitcoin.BitcoinAPI, prices PriceSource) *NativeIterator {
	return &NativeIterator{
		chain:  chain,
		client: client,
		prices: prices,
		log:    logger.With("component", "native_iterator", "chain", chain.Name),
	}
}

func (it *NativeIterator) LastProcessed() string { return it.cursor }

func (it *NativeIterator) Skip(cursor string) error {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return fmt.Errorf("empty block hash cursor")
	}
	it.cursor = cursor
	return nil
}

func (it *NativeIterator) NextBatch(ctx context.Context) ([]types.PaymentRecord, error) {
	if it.cursor == "" && it.chain.FromLatest {
		info, err := it.client.GetBlockchainInfo(ctx)
		if err != nil {
			return nil, fmt.Errorf("get chain tip: %w", err)
		}
		it.cursor = info.BestBlockHash
		it.log.Info("No cursor, starting from tip", "block", info.BestBlockHash, "height", info.Blocks)
	}

	res, err := it.client.ListSinceBlock(ctx, it.cursor)
	if err != nil {
		return nil, err
	}

	records := make([]types.PaymentRecord, 0, len(res.Transactions))
	for _, tx := range res.Transactions {
		rec, err := it.toRecord(ctx, tx)
		if err != nil {
			return nil, err
		}
		if rec != nil {
			records = append(records, *rec)
		}
	}

	if res.LastBlock != "" {
		it.cursor = res.LastBlock
	}
	it.log.Debug("Listed wallet transactions", "count", len(res.Transactions), "payments", len(records), "tip", res.LastBlock)
	return records, nil
}

func (it *NativeIterator) toRecord(ctx context.Context, tx bitcoin.WalletTransaction) (*types.PaymentRecord, error) {
	if tx.Category != bitcoin.CategoryReceive {
		return nil, nil
	}
	// unconfirmed entries come back again once mined
	if tx.Confirmations < 1 || tx.BlockHash == "" {
		return nil, nil
	}
	accountID, paymentID, ok := types.SplitReference(tx.Label)
	if !ok {
		it.log.Debug("Skipping receive with short label", "txid", tx.TxID, "label", tx.Label)
		return nil, nil
	}

	decimals := it.chain.Native.Decimals
	rec := &types.PaymentRecord{
		AccountID:   accountID,
		PaymentID:   paymentID,
		Blockchain:  it.chain.Name,
		Transaction: tx.TxID,
		LogIndex:    uint64(tx.Vout),
		Block:       strconv.FormatUint(tx.BlockHeight, 10),
		Timestamp:   tx.BlockTime,
		Receiver:    tx.Address,
		Direction:   enum.DirectionIncoming,
		Amount:      utils.FromUnits(tx.Amount, decimals),
	}
	if err := value(ctx, it.prices, rec, "", decimals); err != nil {
		it.log.Warn("Valuation failed, leaving USD amount empty", "txid", tx.TxID, "err", err)
	}
	return rec, nil
}
