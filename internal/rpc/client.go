package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fystack/payment-gateway/pkg/common/config"
	"github.com/fystack/payment-gateway/pkg/common/logger"
	"github.com/fystack/payment-gateway/pkg/ratelimiter"
	"github.com/fystack/payment-gateway/pkg/retry"
)

var ErrNoNodes = errors.New("no rpc nodes configured")

type NetworkClient interface {
	CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error)
	Do(ctx context.Context, method, endpoint string, body any, params map[string]string) ([]byte, error)
	GetURL() string
	Close() error
}

type Options struct {
	Timeout     time.Duration
	MaxRetries  int
	RetryDelay  time.Duration
	RateLimiter *ratelimiter.PooledRateLimiter
	// PathSuffix is appended to every node url, e.g. /wallet/<name> for wallet RPCs.
	PathSuffix string
}

// BaseClient speaks JSON-RPC over HTTP to a list of nodes. A failed attempt
// moves the next attempt to the following node.
type BaseClient struct {
	httpClient  *http.Client
	nodes       []config.NodeConfig
	current     atomic.Uint32
	opts        Options
	rateLimiter *ratelimiter.PooledRateLimiter

	rpcID int64
	mutex sync.Mutex
}

func NewBaseClient(nodes []config.NodeConfig, opts Options) *BaseClient {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = retry.DefaultInterval
	}
	return &BaseClient{
		httpClient:  &http.Client{Timeout: opts.Timeout},
		nodes:       nodes,
		opts:        opts,
		rateLimiter: opts.RateLimiter,
		rpcID:       1,
	}
}

func (c *BaseClient) node() (config.NodeConfig, error) {
	if len(c.nodes) == 0 {
		return config.NodeConfig{}, ErrNoNodes
	}
	return c.nodes[int(c.current.Load())%len(c.nodes)], nil
}

func (c *BaseClient) rotate() {
	if len(c.nodes) > 1 {
		c.current.Add(1)
	}
}

func (c *BaseClient) nextID() int64 {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	id := c.rpcID
	c.rpcID++
	return id
}

// CallRPC posts a JSON-RPC request. Transport failures are retried against the
// next node; errors reported by the node itself are returned as *RPCError.
func (c *BaseClient) CallRPC(ctx context.Context, method string, params any) (*RPCResponse, error) {
	var rpcResp RPCResponse
	var rpcErr error

	op := func() error {
		req := &RPCRequest{ID: c.nextID(), JSONRPC: "2.0", Method: method, Params: params}
		raw, err := c.Do(ctx, http.MethodPost, "", req, nil)
		if err != nil {
			c.rotate()
			return err
		}
		rpcResp = RPCResponse{}
		if err := json.Unmarshal(raw, &rpcResp); err != nil {
			return fmt.Errorf("unmarshal RPC response: %w", err)
		}
		if rpcResp.Error != nil {
			rpcErr = rpcResp.Error
		}
		return nil
	}

	if err := retry.Constant(ctx, op, c.opts.RetryDelay, c.opts.MaxRetries+1); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	if rpcErr != nil {
		return &rpcResp, rpcErr
	}
	return &rpcResp, nil
}

func (c *BaseClient) Do(ctx context.Context, method, endpoint string, body any, params map[string]string) ([]byte, error) {
	node, err := c.node()
	if err != nil {
		return nil, err
	}

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx, node.URL); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	u, err := url.Parse(strings.TrimSuffix(node.URL, "/") + c.opts.PathSuffix + endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid node url %q: %w", node.URL, err)
	}
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	if node.Auth.Type == AuthTypeQuery {
		q.Set(node.Auth.Key, node.Auth.Value)
	}
	u.RawQuery = q.Encode()

	var reqBody io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reqBody)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	setAuthHeaders(req, node.Auth)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	logger.Debug("HTTP request completed", "host", u.Host, "status", resp.StatusCode, "elapsed", time.Since(start))

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		// bitcoind answers RPC errors with HTTP 500 and a JSON-RPC body
		if len(data) > 0 && json.Valid(data) && strings.Contains(string(data), `"error"`) {
			return data, nil
		}
		return data, fmt.Errorf("HTTP %d from %s: %s", resp.StatusCode, u.Host, string(data))
	}
	return data, nil
}

func setAuthHeaders(req *http.Request, auth config.AuthConfig) {
	switch auth.Type {
	case AuthTypeHeader:
		req.Header.Set(auth.Key, auth.Value)
	case AuthTypeBearer:
		req.Header.Set("Authorization", "Bearer "+auth.Value)
	case AuthTypeBasic:
		req.SetBasicAuth(auth.Key, auth.Value)
	}
}

func (c *BaseClient) GetURL() string {
	node, err := c.node()
	if err != nil {
		return ""
	}
	return node.URL
}

func (c *BaseClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
