package evm

import (
	"context"

	"github.com/fystack/payment-gateway/internal/rpc"
)

type EthereumAPI interface {
	rpc.NetworkClient
	GetBlockNumber(ctx context.Context) (uint64, error)
	GetBlockByNumber(ctx context.Context, blockNumber uint64) (*Block, error)
	GetLogs(ctx context.Context, filter LogFilter) ([]Log, error)
}
