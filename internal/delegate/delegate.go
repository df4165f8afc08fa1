// Package delegate forwards GraphQL operations to the legacy monolith
// endpoint, attaching caller identity headers derived from the request
// context.
package delegate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/buger/jsonparser"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/gqlerror"

	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// Operation is a single GraphQL operation to forward. Either Document or
// Query must be set; a Document is serialized to its canonical textual form
// before transmission.
type Operation struct {
	Document      *ast.QueryDocument
	Query         string
	Variables     map[string]interface{}
	OperationName string
}

// Result is the decoded GraphQL response envelope of a delegated call.
type Result struct {
	// Data is the raw JSON value of the "data" key, nil when absent or null.
	Data json.RawMessage
	// Errors are the downstream GraphQL errors, passed through untouched.
	Errors gqlerror.List
}

// Delegator performs synchronous calls against one configured legacy
// endpoint. It is safe for concurrent use; the underlying transport reuses
// connections across requests.
type Delegator struct {
	endpoint string
	client   *http.Client
	timeout  time.Duration
}

// New returns a Delegator for the given endpoint. A nil client falls back to
// a connection-reusing default.
func New(endpoint string, client *http.Client, timeout time.Duration) *Delegator {
	if client == nil {
		client = &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 64,
			},
		}
	}
	return &Delegator{endpoint: endpoint, client: client, timeout: timeout}
}

// Endpoint returns the configured legacy endpoint URL.
func (d *Delegator) Endpoint() string {
	return d.endpoint
}

type requestBody struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables,omitempty"`
	OperationName string                 `json:"operationName,omitempty"`
}

// Delegate forwards op to the legacy endpoint. Headers derived from rc are
// attached only when the corresponding field is present; absent fields omit
// the header key entirely. Every call is forwarded fresh, there is no
// caching. Transport failures and undecodable responses are returned as
// errors for the caller to surface as field-level resolution errors.
func (d *Delegator) Delegate(ctx context.Context, op Operation, rc reqcontext.Context) (*Result, error) {
	query := op.Query
	if op.Document != nil {
		var buf bytes.Buffer
		formatter.NewFormatter(&buf).FormatQueryDocument(op.Document)
		query = buf.String()
	}

	payload, err := json.Marshal(requestBody{
		Query:         query,
		Variables:     op.Variables,
		OperationName: op.OperationName,
	})
	if err != nil {
		return nil, fmt.Errorf("encode delegated operation: %w", err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build delegated request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	applyContextHeaders(req.Header, rc)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call legacy endpoint %s: %w", d.endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read legacy response: %w", err)
	}

	result, parseErr := parseEnvelope(body)
	if parseErr != nil {
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, fmt.Errorf("legacy endpoint %s returned status %d", d.endpoint, resp.StatusCode)
		}
		return nil, parseErr
	}
	return result, nil
}

func applyContextHeaders(h http.Header, rc reqcontext.Context) {
	if rc.Token != "" {
		h.Set(reqcontext.HeaderAuthorization, ensureBearer(rc.Token))
	}
	if rc.Currency != "" {
		h.Set(reqcontext.HeaderCurrency, rc.Currency)
	}
	if rc.Store != "" {
		h.Set(reqcontext.HeaderStore, rc.Store)
	}
}

// ensureBearer normalizes the forwarded token to a bearer credential without
// doubling an existing scheme prefix.
func ensureBearer(token string) string {
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return token
	}
	return "Bearer " + token
}

func parseEnvelope(body []byte) (*Result, error) {
	result := &Result{}

	data, dataType, _, err := jsonparser.Get(body, "data")
	switch {
	case err == nil && dataType != jsonparser.Null:
		result.Data = json.RawMessage(data)
	case err != nil && err != jsonparser.KeyPathNotFoundError:
		return nil, fmt.Errorf("decode legacy response envelope: %w", err)
	}

	rawErrs, errsType, _, err := jsonparser.Get(body, "errors")
	if err == nil && errsType == jsonparser.Array {
		if err := json.Unmarshal(rawErrs, &result.Errors); err != nil {
			return nil, fmt.Errorf("decode legacy errors: %w", err)
		}
	}

	if result.Data == nil && len(result.Errors) == 0 {
		return nil, fmt.Errorf("legacy response carries neither data nor errors")
	}
	return result, nil
}
