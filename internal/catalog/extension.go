package catalog

import (
	"context"
	"fmt"

	"github.com/commercegraph/storefront-gateway/internal/compose"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// DefaultStore is the fixed store scope for gateway-initiated lookups.
const DefaultStore = "default"

const schemaSDL = `
type CatalogProduct {
	sku: String!
	name: String!
}

extend type Query {
	productBySku(sku: String!): CatalogProduct
}
`

// Product is the projection of a catalog record exposed through the graph.
type Product struct {
	SKU  string `json:"sku"`
	Name string `json:"name"`
}

// NewSource returns the catalog extension as a local schema source.
func NewSource(client *Client) compose.Source {
	return compose.Source{
		Name: "catalog",
		Kind: compose.KindLocal,
		SDL:  schemaSDL,
		Resolvers: map[string]compose.Resolver{
			"Query.productBySku": productBySku(client),
		},
	}
}

// productBySku looks a single product up by identifier, scoped to the
// default store. An empty result list is a defined not-found outcome and
// resolves to null; only a missing response is an error.
func productBySku(client *Client) compose.Resolver {
	return func(ctx context.Context, _ reqcontext.Context, args map[string]interface{}) (interface{}, error) {
		sku, _ := args["sku"].(string)
		if sku == "" {
			return nil, fmt.Errorf("productBySku: sku argument is required")
		}

		resp, err := client.Search(ctx, SearchRequest{
			SKUs:  []string{sku},
			Store: DefaultStore,
		})
		if err != nil {
			return nil, err
		}
		if len(resp.Items) == 0 {
			return nil, nil
		}

		// Only the first record is surfaced; the contract ignores the rest.
		first := resp.Items[0]
		return Product{SKU: first.SKU, Name: first.Name}, nil
	}
}
