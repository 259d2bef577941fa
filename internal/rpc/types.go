package rpc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Client types - communication protocols used by blockchain providers
const (
	ClientTypeRPC  = "rpc"
	ClientTypeREST = "rest"
)

const (
	AuthTypeHeader = "header"
	AuthTypeQuery  = "query"
	AuthTypeBearer = "bearer"
	AuthTypeBasic  = "basic"
)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	ID      any    `json:"id"`
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	ID      any             `json:"id"`
	JSONRPC string          `json:"jsonrpc"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

func (r *RPCResponse) IDInt64() (int64, bool) {
	switch v := r.ID.(type) {
	case float64:
		return int64(v), true
	case int64:
		return v, true
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// IsNull reports whether the node returned a JSON null result.
func (r *RPCResponse) IsNull() bool {
	return len(r.Result) == 0 || string(r.Result) == "null"
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// IsRPCError reports whether err is an application-level error returned by the node.
func IsRPCError(err error) bool {
	var rpcErr *RPCError
	return errors.As(err, &rpcErr)
}
