// Package introspect obtains the legacy monolith's schema by introspecting
// its GraphQL endpoint at startup and rendering the result back to SDL.
package introspect

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Client fetches introspection data from a remote GraphQL endpoint.
type Client struct {
	httpClient *http.Client
	retries    uint64
}

// NewClient returns an introspection client. A nil httpClient falls back to
// a short-timeout default; retries bounds the startup backoff.
func NewClient(httpClient *http.Client, retries uint64) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{httpClient: httpClient, retries: retries}
}

// Response is the introspection query response envelope.
type Response struct {
	Data struct {
		Schema Schema `json:"__schema"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Schema mirrors the __schema introspection shape.
type Schema struct {
	QueryType        *TypeRef    `json:"queryType"`
	MutationType     *TypeRef    `json:"mutationType"`
	SubscriptionType *TypeRef    `json:"subscriptionType"`
	Types            []FullType  `json:"types"`
	Directives       []Directive `json:"directives"`
}

// FullType is one introspected type with all metadata.
type FullType struct {
	Kind          string       `json:"kind"`
	Name          *string      `json:"name"`
	Description   *string      `json:"description"`
	Fields        []Field      `json:"fields"`
	InputFields   []InputValue `json:"inputFields"`
	Interfaces    []TypeRef    `json:"interfaces"`
	EnumValues    []EnumValue  `json:"enumValues"`
	PossibleTypes []TypeRef    `json:"possibleTypes"`
}

// Field is one introspected field.
type Field struct {
	Name              string       `json:"name"`
	Description       *string      `json:"description"`
	Args              []InputValue `json:"args"`
	Type              TypeRef      `json:"type"`
	IsDeprecated      bool         `json:"isDeprecated"`
	DeprecationReason *string      `json:"deprecationReason"`
}

// InputValue is an argument or input object field.
type InputValue struct {
	Name         string  `json:"name"`
	Description  *string `json:"description"`
	Type         TypeRef `json:"type"`
	DefaultValue *string `json:"defaultValue"`
}

// TypeRef is a possibly wrapped type reference.
type TypeRef struct {
	Kind   string   `json:"kind"`
	Name   *string  `json:"name"`
	OfType *TypeRef `json:"ofType"`
}

// EnumValue is one introspected enum value.
type EnumValue struct {
	Name              string  `json:"name"`
	Description       *string `json:"description"`
	IsDeprecated      bool    `json:"isDeprecated"`
	DeprecationReason *string `json:"deprecationReason"`
}

// Directive is one introspected directive definition.
type Directive struct {
	Name        string       `json:"name"`
	Description *string      `json:"description"`
	Locations   []string     `json:"locations"`
	Args        []InputValue `json:"args"`
}

// Fetch runs the introspection query against endpoint, retrying transient
// failures with exponential backoff. The returned error names the endpoint
// so the operator can verify the configured URL.
func (c *Client) Fetch(ctx context.Context, endpoint string) (*Schema, error) {
	var schema *Schema

	operation := func() error {
		s, err := c.fetchOnce(ctx, endpoint)
		if err != nil {
			return err
		}
		schema = s
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, fmt.Errorf(
			"introspection against legacy endpoint %s failed: %w; verify the configured URL points at a running GraphQL service",
			endpoint, err,
		)
	}
	return schema, nil
}

func (c *Client) fetchOnce(ctx context.Context, endpoint string) (*Schema, error) {
	payload, err := json.Marshal(map[string]string{"query": Query})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var decoded Response
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode introspection response: %w", err)
	}
	if len(decoded.Errors) > 0 {
		return nil, fmt.Errorf("introspection rejected: %s", decoded.Errors[0].Message)
	}
	if decoded.Data.Schema.QueryType == nil {
		return nil, fmt.Errorf("introspection response carries no query type")
	}
	return &decoded.Data.Schema, nil
}
