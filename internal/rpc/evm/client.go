package evm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/fystack/payment-gateway/internal/rpc"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/utils"
)

type Client struct {
	*rpc.BaseClient
}

func NewEthereumClient(nodes []config.NodeConfig, opts rpc.Options) *Client {
	return &Client{BaseClient: rpc.NewBaseClient(nodes, opts)}
}

// GetBlockNumber returns the current block number
func (c *Client) GetBlockNumber(ctx context.Context) (uint64, error) {
	resp, err := c.CallRPC(ctx, "eth_blockNumber", nil)
	if err != nil {
		return 0, fmt.Errorf("eth_blockNumber failed: %w", err)
	}

	var blockHex string
	if err := json.Unmarshal(resp.Result, &blockHex); err != nil {
		return 0, fmt.Errorf("failed to unmarshal block number: %w", err)
	}
	blockNum, err := utils.ParseHexUint64(blockHex)
	if err != nil {
		return 0, fmt.Errorf("failed to parse block number: %w", err)
	}
	return blockNum, nil
}

// GetBlockByNumber returns a block header without transactions.
func (c *Client) GetBlockByNumber(ctx context.Context, blockNumber uint64) (*Block, error) {
	resp, err := c.CallRPC(ctx, "eth_getBlockByNumber", []any{ToHex(blockNumber), false})
	if err != nil {
		return nil, fmt.Errorf("eth_getBlockByNumber failed: %w", err)
	}
	if resp.IsNull() {
		return nil, fmt.Errorf("block %d not found", blockNumber)
	}

	var block Block
	if err := json.Unmarshal(resp.Result, &block); err != nil {
		return nil, fmt.Errorf("failed to unmarshal block: %w", err)
	}
	return &block, nil
}

func (c *Client) GetLogs(ctx context.Context, filter LogFilter) ([]Log, error) {
	resp, err := c.CallRPC(ctx, "eth_getLogs", []any{filter})
	if err != nil {
		return nil, fmt.Errorf("eth_getLogs failed: %w", err)
	}

	var logs []Log
	if resp.IsNull() {
		return logs, nil
	}
	if err := json.Unmarshal(resp.Result, &logs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal logs: %w", err)
	}
	return logs, nil
}

func ToHex(n uint64) string {
	return fmt.Sprintf("0x%x", n)
}
