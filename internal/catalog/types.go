// Package catalog exposes the product lookup extension backed by the catalog
// service's binary RPC interface.
package catalog

// SearchFunc is the RPC function name served by the catalog backend.
const SearchFunc = "CatalogSearch"

// SearchRequest asks the catalog backend for products by SKU within one
// store scope.
type SearchRequest struct {
	SKUs  []string
	Store string
}

// SearchResponse carries the matching product records.
type SearchResponse struct {
	Items []Item
}

// Item is one product record as returned by the catalog backend.
type Item struct {
	SKU  string
	Name string
}
