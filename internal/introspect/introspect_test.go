package introspect

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
)

const introspectionFixture = `{
  "data": {
    "__schema": {
      "queryType": {"kind": "OBJECT", "name": "Query"},
      "mutationType": null,
      "subscriptionType": null,
      "types": [
        {
          "kind": "OBJECT",
          "name": "Query",
          "fields": [
            {
              "name": "products",
              "args": [
                {"name": "search", "type": {"kind": "SCALAR", "name": "String"}, "defaultValue": null},
                {"name": "pageSize", "type": {"kind": "SCALAR", "name": "Int"}, "defaultValue": "20"}
              ],
              "type": {"kind": "OBJECT", "name": "Products"},
              "isDeprecated": false
            },
            {
              "name": "category",
              "args": [],
              "type": {"kind": "OBJECT", "name": "CategoryTree"},
              "isDeprecated": true,
              "deprecationReason": "Use categoryList instead"
            }
          ],
          "inputFields": null,
          "interfaces": [],
          "enumValues": null,
          "possibleTypes": null
        },
        {
          "kind": "OBJECT",
          "name": "Products",
          "fields": [
            {"name": "total_count", "args": [], "type": {"kind": "SCALAR", "name": "Int"}, "isDeprecated": false}
          ],
          "inputFields": null,
          "interfaces": [],
          "enumValues": null,
          "possibleTypes": null
        },
        {
          "kind": "OBJECT",
          "name": "CategoryTree",
          "fields": [
            {"name": "name", "args": [], "type": {"kind": "SCALAR", "name": "String"}, "isDeprecated": false}
          ],
          "inputFields": null,
          "interfaces": [],
          "enumValues": null,
          "possibleTypes": null
        },
        {
          "kind": "ENUM",
          "name": "CurrencyEnum",
          "fields": null,
          "inputFields": null,
          "interfaces": null,
          "enumValues": [
            {"name": "USD", "isDeprecated": false},
            {"name": "EUR", "isDeprecated": false}
          ],
          "possibleTypes": null
        },
        {"kind": "SCALAR", "name": "String", "fields": null},
        {"kind": "SCALAR", "name": "Int", "fields": null},
        {"kind": "SCALAR", "name": "Money", "fields": null},
        {
          "kind": "OBJECT",
          "name": "__Schema",
          "fields": []
        }
      ],
      "directives": [
        {"name": "deprecated", "locations": ["FIELD_DEFINITION"], "args": []},
        {"name": "cache", "locations": ["OBJECT"], "args": []}
      ]
    }
  }
}`

func startIntrospectable(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body["query"], "__schema")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(introspectionFixture))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFetch(t *testing.T) {
	srv := startIntrospectable(t)
	c := NewClient(srv.Client(), 0)

	schema, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, schema.QueryType)
	assert.Equal(t, "Query", *schema.QueryType.Name)
	assert.NotEmpty(t, schema.Types)
}

func TestFetchFailureNamesEndpoint(t *testing.T) {
	c := NewClient(&http.Client{}, 0)

	_, err := c.Fetch(context.Background(), "http://127.0.0.1:1/graphql")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "http://127.0.0.1:1/graphql")
	assert.Contains(t, err.Error(), "verify")
}

func TestRenderSDL(t *testing.T) {
	srv := startIntrospectable(t)
	c := NewClient(srv.Client(), 0)
	schema, err := c.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	sdl := RenderSDL(schema)

	// Built-ins and meta types must not leak into the rendered SDL.
	assert.NotContains(t, sdl, "__Schema")
	assert.NotContains(t, sdl, "scalar String")
	assert.NotContains(t, sdl, "directive @deprecated")

	assert.Contains(t, sdl, "scalar Money")
	assert.Contains(t, sdl, "directive @cache on OBJECT")
	assert.Contains(t, sdl, "pageSize: Int = 20")
	assert.Contains(t, sdl, `category: CategoryTree @deprecated(reason: "Use categoryList instead")`)

	parsed, parseErr := gqlparser.LoadSchema(&ast.Source{Name: "legacy", Input: sdl})
	require.NoError(t, parseErr)
	require.NotNil(t, parsed.Query)
	assert.NotNil(t, parsed.Query.Fields.ForName("products"))
}

func TestRenderSDLRenamesRoots(t *testing.T) {
	name := func(s string) *string { return &s }
	schema := &Schema{
		QueryType: &TypeRef{Kind: "OBJECT", Name: name("RootQuery")},
		Types: []FullType{
			{
				Kind: "OBJECT",
				Name: name("RootQuery"),
				Fields: []Field{
					{Name: "self", Type: TypeRef{Kind: "OBJECT", Name: name("RootQuery")}},
				},
			},
		},
	}

	sdl := RenderSDL(schema)
	assert.Contains(t, sdl, "type Query {")
	assert.True(t, strings.Contains(sdl, "self: Query"), "field type references must follow the rename")
}
