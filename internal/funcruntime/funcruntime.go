// Package funcruntime talks to the remote function runtime: it loads schema
// fragments for configured IO packages at startup and invokes named functions
// during execution.
package funcruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/commercegraph/storefront-gateway/internal/compose"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// Runtime is a client for one function registry endpoint.
type Runtime struct {
	registryURL string
	client      *http.Client
}

// New returns a runtime client. A nil httpClient falls back to
// http.DefaultClient.
func New(registryURL string, httpClient *http.Client) *Runtime {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Runtime{
		registryURL: strings.TrimSuffix(registryURL, "/"),
		client:      httpClient,
	}
}

// LoadSources fetches the schema fragment of every configured package and
// returns them as function schema sources, in the given package order. Any
// failure aborts the load and names the offending package.
func (r *Runtime) LoadSources(ctx context.Context, packages []string) ([]compose.Source, error) {
	sources := make([]compose.Source, 0, len(packages))
	for _, pkg := range packages {
		sdl, err := r.fetchSchema(ctx, pkg)
		if err != nil {
			return nil, fmt.Errorf("load function package %q: %w", pkg, err)
		}
		sources = append(sources, compose.Source{
			Name: pkg,
			Kind: compose.KindFunction,
			SDL:  sdl,
		})
	}
	return sources, nil
}

func (r *Runtime) fetchSchema(ctx context.Context, pkg string) (string, error) {
	endpoint := fmt.Sprintf("%s/%s/schema.graphql", r.registryURL, url.PathEscape(pkg))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("registry returned status %d for %s", resp.StatusCode, endpoint)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// invocation is the wire payload for a function call.
type invocation struct {
	Field     string                 `json:"field"`
	Arguments map[string]interface{} `json:"arguments"`
	Context   invocationContext      `json:"context"`
}

type invocationContext struct {
	Token    string `json:"token,omitempty"`
	Currency string `json:"currency,omitempty"`
	Store    string `json:"store,omitempty"`
}

// Invoke calls the namespaced function (for example "checkout/orders") with
// the resolved field arguments and the request context, and returns the raw
// JSON value the function produced.
func (r *Runtime) Invoke(ctx context.Context, function, field string, args map[string]interface{}, rc reqcontext.Context) (json.RawMessage, error) {
	pkg, name, ok := strings.Cut(function, "/")
	if !ok {
		return nil, fmt.Errorf("invoke %q: function name is not package qualified", function)
	}

	payload, err := json.Marshal(invocation{
		Field:     field,
		Arguments: args,
		Context: invocationContext{
			Token:    rc.Token,
			Currency: rc.Currency,
			Store:    rc.Store,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %q: %w", function, err)
	}

	endpoint := fmt.Sprintf("%s/%s/%s", r.registryURL, url.PathEscape(pkg), url.PathEscape(name))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("invoke %q: %w", function, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("invoke %q: %w", function, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("invoke %q: %w", function, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("invoke %q: runtime returned status %d", function, resp.StatusCode)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("invoke %q: runtime returned invalid JSON", function)
	}
	return json.RawMessage(body), nil
}
