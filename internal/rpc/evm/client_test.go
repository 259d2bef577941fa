package evm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fystack/payment-gateway/internal/rpc"
	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, results map[string]any) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpc.RPCRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		result, ok := results[req.Method]
		if !ok {
			_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": -32601, "message": "method not found"}})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": result})
	}))
	t.Cleanup(srv.Close)
	return NewEthereumClient([]config.NodeConfig{{URL: srv.URL}}, rpc.Options{})
}

func TestClient_GetBlockNumber(t *testing.T) {
	c := newTestClient(t, map[string]any{"eth_blockNumber": "0x69"})
	n, err := c.GetBlockNumber(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(105), n)
}

func TestClient_GetBlockByNumber(t *testing.T) {
	c := newTestClient(t, map[string]any{
		"eth_getBlockByNumber": map[string]any{"number": "0x67", "hash": "0xabc", "timestamp": "0x6553f100"},
	})
	b, err := c.GetBlockByNumber(context.Background(), 103)
	require.NoError(t, err)
	assert.Equal(t, "0x6553f100", b.Timestamp)
}

func TestClient_GetBlockByNumber_Null(t *testing.T) {
	c := newTestClient(t, map[string]any{"eth_getBlockByNumber": nil})
	_, err := c.GetBlockByNumber(context.Background(), 103)
	assert.Error(t, err)
}

func TestClient_GetLogs(t *testing.T) {
	c := newTestClient(t, map[string]any{
		"eth_getLogs": []map[string]any{{
			"address":         "0x5fbdb2315678afecb367f032d93f642f64180aa3",
			"topics":          []string{PaymentReceivedTopic},
			"data":            "0x",
			"blockNumber":     "0x67",
			"transactionHash": "0xdead",
			"logIndex":        "0x1",
		}},
	})
	logs, err := c.GetLogs(context.Background(), LogFilter{FromBlock: ToHex(100), ToBlock: ToHex(105)})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "0xdead", logs[0].TransactionHash)
}

func TestClient_MethodError(t *testing.T) {
	c := newTestClient(t, map[string]any{})
	_, err := c.GetBlockNumber(context.Background())
	require.Error(t, err)
	assert.True(t, rpc.IsRPCError(err))
}
