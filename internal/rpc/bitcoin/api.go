package bitcoin

import (
	"context"

	"github.com/fystack/payment-gateway/internal/rpc"
)

// BitcoinAPI is the wallet-RPC surface used to detect native payments.
type BitcoinAPI interface {
	rpc.NetworkClient
	ListSinceBlock(ctx context.Context, blockHash string) (*ListSinceBlockResult, error)
	GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error)
}
