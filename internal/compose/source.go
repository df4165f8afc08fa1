// Package compose merges independently authored schema sources into one
// unified schema under a strict precedence order and produces the routing
// information the executor needs to resolve each root field.
package compose

import (
	"context"

	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// Kind discriminates how a source's fields are executed.
type Kind int

const (
	// KindLocal sources define SDL and resolve in-process.
	KindLocal Kind = iota
	// KindFunction sources define SDL only; execution is delegated per-field
	// to a named remote function addressed through the function directive.
	KindFunction
	// KindLegacy sources are introspected from a running endpoint; execution
	// is forwarded wholesale to that endpoint.
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindLocal:
		return "local"
	case KindFunction:
		return "function"
	case KindLegacy:
		return "legacy"
	default:
		return "unknown"
	}
}

// Resolver resolves one local root field. Arguments arrive coerced against
// the schema; the returned value is projected against the selection set.
type Resolver func(ctx context.Context, rc reqcontext.Context, args map[string]interface{}) (interface{}, error)

// Source is one named, independently defined unit of schema definitions plus
// the execution strategy that satisfies them.
type Source struct {
	// Name identifies the source in errors and, for function sources, is the
	// owning package name used to namespace the function directive.
	Name string
	Kind Kind
	SDL  string

	// Resolvers maps "Type.field" to in-process resolvers. Local sources only.
	Resolvers map[string]Resolver
}

// Route describes how one root field is executed.
type Route struct {
	Kind Kind
	// SourceName is the owning source.
	SourceName string
	// Function is the namespaced remote function name. Function kind only.
	Function string
}
