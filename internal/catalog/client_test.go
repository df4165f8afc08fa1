package catalog

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/TykTechnologies/gorpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

type addrListener struct {
	L net.Listener
}

func (ln *addrListener) Init(addr string) (err error) {
	ln.L, err = net.Listen("tcp", addr)
	return
}

func (ln *addrListener) Accept() (conn net.Conn, err error) {
	return ln.L.Accept()
}

func (ln *addrListener) Close() error {
	return ln.L.Close()
}

func startCatalogMock(t *testing.T, handler func(req *SearchRequest) (*SearchResponse, error)) string {
	t.Helper()

	dispatcher := gorpc.NewDispatcher()
	dispatcher.AddFunc(SearchFunc, handler)

	server := gorpc.NewTCPServer("127.0.0.1:0", dispatcher.NewHandlerFunc())
	listener := &addrListener{}
	server.Listener = listener
	server.LogError = gorpc.NilErrorLogger

	require.NoError(t, server.Start())
	t.Cleanup(func() {
		listener.Close()
		server.Stop()
	})

	return listener.L.Addr().String()
}

func newTestClient(t *testing.T, addr string) *Client {
	t.Helper()
	client := NewClient(Config{Addr: addr, Timeout: 2 * time.Second, PoolSize: 1})
	t.Cleanup(client.Close)
	return client
}

func TestSearch(t *testing.T) {
	var seen SearchRequest
	addr := startCatalogMock(t, func(req *SearchRequest) (*SearchResponse, error) {
		seen = *req
		return &SearchResponse{Items: []Item{
			{SKU: "123", Name: "Valeria Two-Layer Tank"},
			{SKU: "456", Name: "Second Item"},
		}}, nil
	})
	client := newTestClient(t, addr)

	resp, err := client.Search(context.Background(), SearchRequest{SKUs: []string{"123"}, Store: "default"})
	require.NoError(t, err)

	assert.Equal(t, []string{"123"}, seen.SKUs)
	assert.Equal(t, "default", seen.Store)
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "123", resp.Items[0].SKU)
}

func TestSearchBackendDown(t *testing.T) {
	client := NewClient(Config{Addr: "127.0.0.1:1", Timeout: 300 * time.Millisecond, PoolSize: 1})
	t.Cleanup(client.Close)

	_, err := client.Search(context.Background(), SearchRequest{SKUs: []string{"123"}, Store: "default"})
	assert.Error(t, err)
}

func TestSearchContextCancelled(t *testing.T) {
	addr := startCatalogMock(t, func(req *SearchRequest) (*SearchResponse, error) {
		time.Sleep(500 * time.Millisecond)
		return &SearchResponse{}, nil
	})
	client := newTestClient(t, addr)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Search(ctx, SearchRequest{SKUs: []string{"123"}, Store: "default"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProductBySkuResolver(t *testing.T) {
	t.Run("uses first item only", func(t *testing.T) {
		var seen SearchRequest
		addr := startCatalogMock(t, func(req *SearchRequest) (*SearchResponse, error) {
			seen = *req
			return &SearchResponse{Items: []Item{
				{SKU: "123", Name: "First"},
				{SKU: "999", Name: "Ignored"},
			}}, nil
		})
		resolver := productBySku(newTestClient(t, addr))

		value, err := resolver(context.Background(), reqcontext.Context{}, map[string]interface{}{"sku": "123"})
		require.NoError(t, err)

		assert.Equal(t, []string{"123"}, seen.SKUs)
		assert.Equal(t, DefaultStore, seen.Store)
		assert.Equal(t, Product{SKU: "123", Name: "First"}, value)
	})

	t.Run("empty result is null not error", func(t *testing.T) {
		addr := startCatalogMock(t, func(req *SearchRequest) (*SearchResponse, error) {
			return &SearchResponse{}, nil
		})
		resolver := productBySku(newTestClient(t, addr))

		value, err := resolver(context.Background(), reqcontext.Context{}, map[string]interface{}{"sku": "404"})
		require.NoError(t, err)
		assert.Nil(t, value)
	})

	t.Run("no response is a resolution error", func(t *testing.T) {
		client := NewClient(Config{Addr: "127.0.0.1:1", Timeout: 300 * time.Millisecond, PoolSize: 1})
		t.Cleanup(client.Close)
		resolver := productBySku(client)

		_, err := resolver(context.Background(), reqcontext.Context{}, map[string]interface{}{"sku": "123"})
		assert.Error(t, err)
	})

	t.Run("missing sku argument", func(t *testing.T) {
		addr := startCatalogMock(t, func(req *SearchRequest) (*SearchResponse, error) {
			return &SearchResponse{}, nil
		})
		resolver := productBySku(newTestClient(t, addr))

		_, err := resolver(context.Background(), reqcontext.Context{}, map[string]interface{}{})
		assert.Error(t, err)
	})
}
