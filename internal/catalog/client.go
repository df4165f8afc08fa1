package catalog

import (
	"context"
	"fmt"
	"time"

	"github.com/TykTechnologies/gorpc"
)

// Config configures the catalog RPC client.
type Config struct {
	Addr    string
	Timeout time.Duration
	// PoolSize bounds the persistent connections to the backend.
	PoolSize int
}

// Client is a long-lived, connection-reusing client for the catalog
// backend's binary RPC protocol. It is safe for concurrent use; every call
// is a self-contained request/response exchange.
type Client struct {
	rpc     *gorpc.Client
	funcs   *gorpc.DispatcherClient
	timeout time.Duration
}

// NewClient dials the catalog backend. The connection pool reconnects on
// its own; a failed backend surfaces as per-call errors, not at
// construction.
func NewClient(cfg Config) *Client {
	rpcClient := gorpc.NewTCPClient(cfg.Addr)
	rpcClient.Conns = cfg.PoolSize
	if rpcClient.Conns == 0 {
		rpcClient.Conns = 4
	}
	rpcClient.LogError = gorpc.NilErrorLogger
	rpcClient.Start()

	// The client-side dispatcher mirrors the backend's function signatures
	// so request and response types are registered for the wire encoding.
	// Struct requests must be declared by pointer.
	dispatcher := gorpc.NewDispatcher()
	dispatcher.AddFunc(SearchFunc, func(req *SearchRequest) (*SearchResponse, error) { return nil, nil })

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		rpc:     rpcClient,
		funcs:   dispatcher.NewFuncClient(rpcClient),
		timeout: timeout,
	}
}

// Search performs one catalog lookup. A nil response from the backend is an
// error; an empty item list is a valid result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	type callResult struct {
		resp interface{}
		err  error
	}
	resultCh := make(chan callResult, 1)

	go func() {
		resp, err := c.funcs.CallTimeout(SearchFunc, &req, c.timeout)
		resultCh <- callResult{resp: resp, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case result := <-resultCh:
		if result.err != nil {
			return nil, fmt.Errorf("catalog search: %w", result.err)
		}
		resp, ok := result.resp.(*SearchResponse)
		if !ok || resp == nil {
			return nil, fmt.Errorf("catalog search: no response from backend")
		}
		return resp, nil
	}
}

// Close stops the underlying connection pool.
func (c *Client) Close() {
	c.rpc.Stop()
}
