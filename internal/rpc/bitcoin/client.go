package bitcoin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fystack/payment-gateway/internal/rpc"
	"github.com/fystack/payment-gateway/pkg/common/config"
)

type BitcoinClient struct {
	*rpc.BaseClient
}

// NewBitcoinClient creates a client bound to a node wallet. An empty wallet
// name talks to the node's default wallet.
func NewBitcoinClient(nodes []config.NodeConfig, wallet string, opts rpc.Options) *BitcoinClient {
	if wallet != "" {
		opts.PathSuffix = "/wallet/" + url.PathEscape(wallet)
	}
	return &BitcoinClient{BaseClient: rpc.NewBaseClient(nodes, opts)}
}

// ListSinceBlock returns wallet transactions after blockHash (all when empty)
// and the current tip hash.
func (c *BitcoinClient) ListSinceBlock(ctx context.Context, blockHash string) (*ListSinceBlockResult, error) {
	params := []any{blockHash, 1, true}
	resp, err := c.CallRPC(ctx, "listsinceblock", params)
	if err != nil {
		return nil, fmt.Errorf("listsinceblock failed: %w", err)
	}

	var result ListSinceBlockResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listsinceblock: %w", err)
	}
	return &result, nil
}

func (c *BitcoinClient) GetBlockchainInfo(ctx context.Context) (*BlockchainInfo, error) {
	resp, err := c.CallRPC(ctx, "getblockchaininfo", nil)
	if err != nil {
		return nil, fmt.Errorf("getblockchaininfo failed: %w", err)
	}

	var result BlockchainInfo
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal blockchain info: %w", err)
	}
	return &result, nil
}
