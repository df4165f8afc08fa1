package compose

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
)

// placeholderField is injected into the root query type so remote-function
// fragments that only extend Query have something to extend. It is a
// structural artifact of the merge model, never real functionality, and is
// stripped from the public schema.
const placeholderField = "_placeholder"

var rootTypes = map[string]bool{
	"Query":        true,
	"Mutation":     true,
	"Subscription": true,
}

// Composed is the immutable result of merging an ordered list of sources.
// It is built once at startup and safe for unlimited concurrent reads.
type Composed struct {
	// Internal keeps composition-only metadata (the function directive and
	// the placeholder field) and backs routing decisions.
	Internal *ast.Schema
	// Public is the schema exposed to callers: no function directive, no
	// placeholder field.
	Public *ast.Schema
	// PublicSDL is the printed public schema without built-in definitions.
	PublicSDL string

	routes    map[string]Route
	resolvers map[string]Resolver
}

// Route returns how the given root field is executed.
func (c *Composed) Route(rootType, field string) (Route, bool) {
	r, ok := c.routes[rootType+"."+field]
	return r, ok
}

// Resolver returns the in-process resolver for a local root field.
func (c *Composed) Resolver(rootType, field string) (Resolver, bool) {
	r, ok := c.resolvers[rootType+"."+field]
	return r, ok
}

// Compose merges the given sources in order. Precedence on field conflict:
// the source later in the order wins, so callers pass local sources first,
// then remote-function sources, then the legacy source. Built-in definitions
// are seeded from the prelude and are never clobbered by any source.
func Compose(sources ...Source) (*Composed, error) {
	acc := newAccumulator()

	prelude, perr := parser.ParseSchema(validator.Prelude)
	if perr != nil {
		return nil, fmt.Errorf("parse prelude: %w", perr)
	}
	if err := acc.fold(prelude, Source{Name: "prelude"}, true); err != nil {
		return nil, err
	}

	hasFunctionSources := false
	for _, src := range sources {
		if src.Kind == KindFunction {
			hasFunctionSources = true
			break
		}
	}
	if hasFunctionSources {
		// The directive type must exist before any remote-function fragment
		// references it, and the placeholder gives extend-only fragments a
		// root query type to attach to.
		directiveDoc, derr := parser.ParseSchema(&ast.Source{Name: "function-directive", Input: functionDirectiveSDL})
		if derr != nil {
			return nil, fmt.Errorf("parse function directive: %w", derr)
		}
		if err := acc.fold(directiveDoc, Source{Name: "function-directive"}, false); err != nil {
			return nil, err
		}
		acc.ensurePlaceholder()
	}

	for i := range sources {
		src := sources[i]
		doc, serr := parser.ParseSchema(&ast.Source{Name: src.Name, Input: src.SDL})
		if serr != nil {
			return nil, fmt.Errorf("schema source %q: %w", src.Name, serr)
		}
		if src.Kind == KindFunction {
			RewriteFunctionDirectives(doc, src.Name)
		}
		if err := acc.fold(doc, src, false); err != nil {
			return nil, err
		}
		for key, resolver := range src.Resolvers {
			acc.resolvers[key] = resolver
		}
	}

	internalDoc := acc.document(false)
	internalSchema, verr := validator.ValidateSchemaDocument(internalDoc)
	if verr != nil {
		return nil, fmt.Errorf("compose schema: %w", verr)
	}

	publicDoc := acc.publicDocument()
	publicSchema, verr := validator.ValidateSchemaDocument(publicDoc)
	if verr != nil {
		return nil, fmt.Errorf("compose public schema: %w", verr)
	}

	var sdl bytes.Buffer
	formatter.NewFormatter(&sdl).FormatSchemaDocument(acc.publicPrintable())

	return &Composed{
		Internal:  internalSchema,
		Public:    publicSchema,
		PublicSDL: sdl.String(),
		routes:    acc.routes,
		resolvers: acc.resolvers,
	}, nil
}

type accumulator struct {
	defs      []*ast.Definition
	index     map[string]int
	builtin   map[string]bool
	dirs      []*ast.DirectiveDefinition
	dirIndex  map[string]bool
	routes    map[string]Route
	resolvers map[string]Resolver
}

func newAccumulator() *accumulator {
	return &accumulator{
		index:     make(map[string]int),
		builtin:   make(map[string]bool),
		dirIndex:  make(map[string]bool),
		routes:    make(map[string]Route),
		resolvers: make(map[string]Resolver),
	}
}

func (a *accumulator) fold(doc *ast.SchemaDocument, src Source, builtin bool) error {
	for _, dd := range doc.Directives {
		// Keep-first: the prelude's built-in directive definitions and the
		// gateway's function directive always survive the merge.
		if a.dirIndex[dd.Name] {
			continue
		}
		a.dirIndex[dd.Name] = true
		a.dirs = append(a.dirs, dd)
	}

	for _, def := range doc.Definitions {
		if err := a.mergeDefinition(def, src, builtin); err != nil {
			return err
		}
	}
	for _, def := range doc.Extensions {
		if err := a.mergeDefinition(def, src, builtin); err != nil {
			return err
		}
	}
	return nil
}

func (a *accumulator) mergeDefinition(def *ast.Definition, src Source, builtin bool) error {
	idx, exists := a.index[def.Name]
	if !exists {
		copied := *def
		a.index[def.Name] = len(a.defs)
		a.defs = append(a.defs, &copied)
		if builtin {
			a.builtin[def.Name] = true
		}
		a.recordRoutes(def.Name, def.Fields, src)
		return nil
	}

	existing := a.defs[idx]
	if existing.Kind != def.Kind {
		return fmt.Errorf("schema source %q redefines %s %q as %s", src.Name, existing.Kind, def.Name, def.Kind)
	}
	if a.builtin[def.Name] {
		// Sources cannot clobber prelude definitions.
		return nil
	}

	switch def.Kind {
	case ast.Object, ast.Interface:
		for _, field := range def.Fields {
			replaced := false
			for i, have := range existing.Fields {
				if have.Name == field.Name {
					existing.Fields[i] = field
					replaced = true
					break
				}
			}
			if !replaced {
				existing.Fields = append(existing.Fields, field)
			}
		}
		for _, d := range def.Directives {
			if existing.Directives.ForName(d.Name) == nil {
				existing.Directives = append(existing.Directives, d)
			}
		}
		for _, iface := range def.Interfaces {
			if !containsString(existing.Interfaces, iface) {
				existing.Interfaces = append(existing.Interfaces, iface)
			}
		}
		a.recordRoutes(def.Name, def.Fields, src)
	default:
		// Scalars, enums, unions and inputs are replaced wholesale; the
		// later source wins.
		copied := *def
		a.defs[idx] = &copied
	}
	return nil
}

func (a *accumulator) recordRoutes(typeName string, fields ast.FieldList, src Source) {
	if !rootTypes[typeName] {
		return
	}
	for _, field := range fields {
		if field.Name == placeholderField {
			continue
		}
		route := Route{Kind: src.Kind, SourceName: src.Name}
		if src.Kind == KindFunction {
			route.Function = functionName(field)
		}
		a.routes[typeName+"."+field.Name] = route
	}
}

func functionName(field *ast.FieldDefinition) string {
	dir := field.Directives.ForName(FunctionDirective)
	if dir == nil {
		return ""
	}
	arg := dir.Arguments.ForName("name")
	if arg == nil || arg.Value == nil {
		return ""
	}
	return arg.Value.Raw
}

func (a *accumulator) ensurePlaceholder() {
	idx, ok := a.index["Query"]
	if !ok {
		def := &ast.Definition{Kind: ast.Object, Name: "Query"}
		a.index["Query"] = len(a.defs)
		a.defs = append(a.defs, def)
		idx = a.index["Query"]
	}
	query := a.defs[idx]
	if query.Fields.ForName(placeholderField) != nil {
		return
	}
	query.Fields = append(query.Fields, &ast.FieldDefinition{
		Name: placeholderField,
		Type: ast.NamedType("Boolean", nil),
	})
}

// document assembles the merged schema document. With publicOnly set, the
// function directive, its usages and the placeholder field are stripped.
func (a *accumulator) document(publicOnly bool) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	for _, dd := range a.dirs {
		if publicOnly && dd.Name == FunctionDirective {
			continue
		}
		doc.Directives = append(doc.Directives, dd)
	}
	for _, def := range a.defs {
		if !publicOnly {
			doc.Definitions = append(doc.Definitions, def)
			continue
		}
		doc.Definitions = append(doc.Definitions, publicDefinition(def))
	}
	return doc
}

func (a *accumulator) publicDocument() *ast.SchemaDocument {
	return a.document(true)
}

// publicPrintable is the public document without prelude definitions, which
// is what the SDL endpoint and the golden tests want to see.
func (a *accumulator) publicPrintable() *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	for _, dd := range a.dirs {
		if dd.Name == FunctionDirective || builtinDirective(dd.Name) {
			continue
		}
		doc.Directives = append(doc.Directives, dd)
	}
	for _, def := range a.defs {
		if a.builtin[def.Name] {
			continue
		}
		doc.Definitions = append(doc.Definitions, publicDefinition(def))
	}
	return doc
}

func builtinDirective(name string) bool {
	switch name {
	case "skip", "include", "deprecated", "specifiedBy":
		return true
	}
	return false
}

func publicDefinition(def *ast.Definition) *ast.Definition {
	copied := *def
	if len(def.Fields) > 0 {
		fields := make(ast.FieldList, 0, len(def.Fields))
		for _, field := range def.Fields {
			if rootTypes[def.Name] && field.Name == placeholderField {
				continue
			}
			// Validating the internal document appends introspection meta
			// fields to the shared root definitions; they must not leak into
			// the public document or the printed SDL.
			if strings.HasPrefix(field.Name, "__") {
				continue
			}
			fields = append(fields, publicField(field))
		}
		copied.Fields = fields
	}
	return &copied
}

func publicField(field *ast.FieldDefinition) *ast.FieldDefinition {
	if field.Directives.ForName(FunctionDirective) == nil {
		return field
	}
	copied := *field
	dirs := make(ast.DirectiveList, 0, len(field.Directives)-1)
	for _, d := range field.Directives {
		if d.Name == FunctionDirective {
			continue
		}
		dirs = append(dirs, d)
	}
	copied.Directives = dirs
	return &copied
}

func containsString(list []string, want string) bool {
	for _, have := range list {
		if have == want {
			return true
		}
	}
	return false
}
