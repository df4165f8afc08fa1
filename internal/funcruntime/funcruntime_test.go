package funcruntime

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commercegraph/storefront-gateway/internal/compose"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

func TestLoadSources(t *testing.T) {
	fragments := map[string]string{
		"/checkout/schema.graphql": `extend type Query { storeConfig: String @function(name: "storeConfig") }`,
		"/cart/schema.graphql":     `extend type Query { cartTotals: Float @function(name: "totals") }`,
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sdl, ok := fragments[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, sdl)
	}))
	defer srv.Close()

	rt := New(srv.URL, srv.Client())

	sources, err := rt.LoadSources(context.Background(), []string{"checkout", "cart"})
	require.NoError(t, err)
	require.Len(t, sources, 2)

	assert.Equal(t, "checkout", sources[0].Name)
	assert.Equal(t, compose.KindFunction, sources[0].Kind)
	assert.Contains(t, sources[0].SDL, "storeConfig")
	assert.Equal(t, "cart", sources[1].Name)
	assert.Contains(t, sources[1].SDL, "cartTotals")
}

func TestLoadSourcesNamesFailingPackage(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	rt := New(srv.URL, srv.Client())

	_, err := rt.LoadSources(context.Background(), []string{"checkout"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"checkout"`)
}

func TestInvoke(t *testing.T) {
	var gotPath string
	var gotBody map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `{"total": 42.5}`)
	}))
	defer srv.Close()

	rt := New(srv.URL, srv.Client())

	rc := reqcontext.Context{Token: "Bearer abc", Currency: "EUR", Store: "berlin"}
	args := map[string]interface{}{"cartId": "c-1"}

	raw, err := rt.Invoke(context.Background(), "checkout/totals", "cartTotals", args, rc)
	require.NoError(t, err)
	assert.JSONEq(t, `{"total": 42.5}`, string(raw))

	assert.Equal(t, "/checkout/totals", gotPath)
	assert.Equal(t, "cartTotals", gotBody["field"])
	assert.Equal(t, map[string]interface{}{"cartId": "c-1"}, gotBody["arguments"])
	assert.Equal(t, map[string]interface{}{
		"token":    "Bearer abc",
		"currency": "EUR",
		"store":    "berlin",
	}, gotBody["context"])
}

func TestInvokeOmitsEmptyContextFields(t *testing.T) {
	var gotBody map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		io.WriteString(w, `null`)
	}))
	defer srv.Close()

	rt := New(srv.URL, srv.Client())

	_, err := rt.Invoke(context.Background(), "checkout/totals", "cartTotals", nil, reqcontext.Context{})
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(gotBody["context"]))
}

func TestInvokeErrors(t *testing.T) {
	t.Run("unqualified function name", func(t *testing.T) {
		rt := New("http://127.0.0.1:1", nil)
		_, err := rt.Invoke(context.Background(), "totals", "cartTotals", nil, reqcontext.Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "not package qualified")
	})

	t.Run("runtime failure status", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		rt := New(srv.URL, srv.Client())
		_, err := rt.Invoke(context.Background(), "checkout/totals", "cartTotals", nil, reqcontext.Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "status 500")
	})

	t.Run("invalid JSON response", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"broken`)
		}))
		defer srv.Close()

		rt := New(srv.URL, srv.Client())
		_, err := rt.Invoke(context.Background(), "checkout/totals", "cartTotals", nil, reqcontext.Context{})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid JSON")
	})
}
