// Package executor resolves GraphQL operations against a composed schema by
// partitioning each operation's root fields across their owning sources,
// executing the partitions, and merging the partial results into a single
// response envelope.
package executor

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/buger/jsonparser"
	"github.com/tidwall/sjson"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"
	_ "github.com/vektah/gqlparser/v2/validator/rules"
	"golang.org/x/sync/errgroup"

	"github.com/commercegraph/storefront-gateway/internal/compose"
	"github.com/commercegraph/storefront-gateway/internal/delegate"
	"github.com/commercegraph/storefront-gateway/internal/reqcontext"
)

// LegacyDelegator forwards pruned operations to the legacy endpoint.
type LegacyDelegator interface {
	Delegate(ctx context.Context, op delegate.Operation, rc reqcontext.Context) (*delegate.Result, error)
}

// FunctionInvoker executes one namespaced remote function.
type FunctionInvoker interface {
	Invoke(ctx context.Context, function, field string, args map[string]interface{}, rc reqcontext.Context) (json.RawMessage, error)
}

// Request is one inbound GraphQL request.
type Request struct {
	Query         string                 `json:"query"`
	Variables     map[string]interface{} `json:"variables"`
	OperationName string                 `json:"operationName"`
}

// Response is the standard GraphQL response envelope.
type Response struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Errors gqlerror.List   `json:"errors,omitempty"`
}

// SourceMetrics observes per-source execution outcomes.
type SourceMetrics interface {
	RecordSourceCall(kind, status string)
}

// Executor executes operations against one immutable composed schema.
type Executor struct {
	schema    *compose.Composed
	legacy    LegacyDelegator
	functions FunctionInvoker
	metrics   SourceMetrics
}

// New returns an Executor. legacy and functions may be nil when the composed
// schema routes no fields to the corresponding source kind.
func New(schema *compose.Composed, legacy LegacyDelegator, functions FunctionInvoker) *Executor {
	return &Executor{schema: schema, legacy: legacy, functions: functions}
}

// ObserveSources wires per-source call accounting; a nil recorder disables it.
func (e *Executor) ObserveSources(m SourceMetrics) {
	e.metrics = m
}

// Execute resolves req and always produces a response envelope; failures
// before execution (parse, validation, variable coercion) surface as
// request-level errors with no data, failures during execution null the
// affected field and leave its siblings intact.
func (e *Executor) Execute(ctx context.Context, req Request) *Response {
	doc, err := parser.ParseQuery(&ast.Source{Name: "operation", Input: req.Query})
	if err != nil {
		return &Response{Errors: asGqlErrors(err)}
	}
	if errs := validator.Validate(e.schema.Public, doc); len(errs) > 0 {
		return &Response{Errors: errs}
	}

	op := doc.Operations.ForName(req.OperationName)
	if op == nil {
		if req.OperationName == "" {
			return &Response{Errors: gqlerror.List{gqlerror.Errorf("operationName is required when the document defines multiple operations")}}
		}
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("operation %q not found in document", req.OperationName)}}
	}
	if op.Operation == ast.Subscription {
		return &Response{Errors: gqlerror.List{gqlerror.Errorf("subscriptions are not supported")}}
	}

	vars, verr := validator.VariableValues(e.schema.Public, op, req.Variables)
	if verr != nil {
		return &Response{Errors: asGqlErrors(verr)}
	}

	rootType := "Query"
	if op.Operation == ast.Mutation {
		rootType = "Mutation"
	}

	walk := &docWalk{schema: e.schema.Public, doc: doc, vars: vars}
	fields := walk.flatten(op.SelectionSet, rootType)

	// Batching legacy root fields into one delegated call is only safe for
	// queries; mutation root fields must run one at a time in document order.
	partitions := e.partition(fields, rootType, op.Operation != ast.Mutation)
	partials := make([]partial, len(partitions))

	in := partitionInput{
		doc:      doc,
		op:       op,
		walk:     walk,
		vars:     vars,
		rawVars:  req.Variables,
		rootType: rootType,
		rc:       reqcontext.FromContext(ctx),
	}

	if op.Operation == ast.Mutation {
		for i, p := range partitions {
			partials[i] = e.runPartition(ctx, p, in)
		}
	} else {
		g := new(errgroup.Group)
		for i, p := range partitions {
			i, p := i, p
			g.Go(func() error {
				partials[i] = e.runPartition(ctx, p, in)
				return nil
			})
		}
		_ = g.Wait()
	}

	return mergePartials(partials)
}

// asGqlErrors normalizes parser and coercion failures into a GraphQL error
// list.
func asGqlErrors(err error) gqlerror.List {
	var list gqlerror.List
	if errors.As(err, &list) {
		return list
	}
	var gqlErr *gqlerror.Error
	if errors.As(err, &gqlErr) {
		return gqlerror.List{gqlErr}
	}
	return gqlerror.List{gqlerror.Errorf("%s", err.Error())}
}

// partitionT groups root fields that execute as one unit. Legacy query fields
// share a single delegated call; every other field is its own partition.
type partitionT struct {
	kind   compose.Kind
	meta   bool
	fields []*ast.Field
	routes []compose.Route
}

func (e *Executor) partition(fields []*ast.Field, rootType string, batchLegacy bool) []partitionT {
	var partitions []partitionT
	legacyIdx := -1

	for _, field := range fields {
		if isMetaField(field.Name) {
			partitions = append(partitions, partitionT{meta: true, fields: []*ast.Field{field}})
			continue
		}
		route, ok := e.schema.Route(rootType, field.Name)
		if !ok {
			// Validation guarantees the field exists; a missing route is a
			// composition defect.
			partitions = append(partitions, partitionT{kind: compose.KindLocal, fields: []*ast.Field{field}})
			continue
		}
		if route.Kind == compose.KindLegacy && batchLegacy {
			if legacyIdx < 0 {
				legacyIdx = len(partitions)
				partitions = append(partitions, partitionT{kind: compose.KindLegacy})
			}
			partitions[legacyIdx].fields = append(partitions[legacyIdx].fields, field)
			partitions[legacyIdx].routes = append(partitions[legacyIdx].routes, route)
			continue
		}
		partitions = append(partitions, partitionT{
			kind:   route.Kind,
			fields: []*ast.Field{field},
			routes: []compose.Route{route},
		})
	}
	return partitions
}

func isMetaField(name string) bool {
	return name == "__typename" || name == "__schema" || name == "__type"
}

type partitionInput struct {
	doc      *ast.QueryDocument
	op       *ast.OperationDefinition
	walk     *docWalk
	vars     map[string]interface{}
	rawVars  map[string]interface{}
	rootType string
	rc       reqcontext.Context
}

// entry is one resolved root field, keyed by its response alias.
type entry struct {
	key string
	raw json.RawMessage
}

type partial struct {
	entries []entry
	errs    gqlerror.List
}

func (e *Executor) runPartition(ctx context.Context, p partitionT, in partitionInput) partial {
	if p.meta {
		return e.runMeta(p.fields[0], in)
	}

	var out partial
	switch p.kind {
	case compose.KindLegacy:
		out = e.runLegacy(ctx, p, in)
	case compose.KindFunction:
		out = e.runFunction(ctx, p.fields[0], p.routes[0], in)
	default:
		out = e.runLocal(ctx, p.fields[0], in)
	}

	if e.metrics != nil {
		status := "ok"
		if len(out.errs) > 0 {
			status = "error"
		}
		e.metrics.RecordSourceCall(p.kind.String(), status)
	}
	return out
}

func (e *Executor) runMeta(field *ast.Field, in partitionInput) partial {
	intro := &introspector{schema: e.schema.Public, walk: in.walk, vars: in.vars}
	value := intro.resolveMeta(field, in.rootType)
	return marshalEntry(field, value, nil)
}

func (e *Executor) runLocal(ctx context.Context, field *ast.Field, in partitionInput) partial {
	resolver, ok := e.schema.Resolver(in.rootType, field.Name)
	if !ok {
		return errorEntry(field, gqlerror.Errorf("no resolver registered for %s.%s", in.rootType, field.Name))
	}

	value, err := resolver(ctx, in.rc, field.ArgumentMap(in.vars))
	if err != nil {
		return errorEntry(field, fieldError(field, err))
	}

	projected, err := in.walk.projectResolved(value, field)
	if err != nil {
		return errorEntry(field, fieldError(field, err))
	}
	return marshalEntry(field, projected, nil)
}

func (e *Executor) runFunction(ctx context.Context, field *ast.Field, route compose.Route, in partitionInput) partial {
	if e.functions == nil {
		return errorEntry(field, gqlerror.Errorf("no function runtime configured for field %q", field.Name))
	}
	if route.Function == "" {
		return errorEntry(field, gqlerror.Errorf("field %q carries no function binding", field.Name))
	}

	raw, err := e.functions.Invoke(ctx, route.Function, field.Name, field.ArgumentMap(in.vars), in.rc)
	if err != nil {
		return errorEntry(field, fieldError(field, err))
	}

	var value interface{}
	if err := json.Unmarshal(raw, &value); err != nil {
		return errorEntry(field, fieldError(field, err))
	}

	projected, err := in.walk.projectResolvedValue(value, field)
	if err != nil {
		return errorEntry(field, fieldError(field, err))
	}
	return marshalEntry(field, projected, nil)
}

func (e *Executor) runLegacy(ctx context.Context, p partitionT, in partitionInput) partial {
	if e.legacy == nil {
		out := partial{}
		for _, field := range p.fields {
			sub := errorEntry(field, gqlerror.Errorf("no legacy endpoint configured for field %q", field.Name))
			out.entries = append(out.entries, sub.entries...)
			out.errs = append(out.errs, sub.errs...)
		}
		return out
	}

	pruned, usedVars := pruneForLegacy(in.doc, in.op, p.fields)

	result, err := e.legacy.Delegate(ctx, delegate.Operation{
		Document:      pruned,
		Variables:     filterVariables(in.rawVars, usedVars),
		OperationName: in.op.Name,
	}, in.rc)
	if err != nil {
		out := partial{}
		for _, field := range p.fields {
			sub := errorEntry(field, fieldError(field, err))
			out.entries = append(out.entries, sub.entries...)
			out.errs = append(out.errs, sub.errs...)
		}
		return out
	}

	out := partial{errs: result.Errors}
	for _, field := range p.fields {
		raw := json.RawMessage("null")
		if result.Data != nil {
			if value, valueType, _, err := jsonparser.Get(result.Data, field.Alias); err == nil && valueType != jsonparser.Null {
				raw = normalizeRaw(value, valueType)
			}
		}
		out.entries = append(out.entries, entry{key: field.Alias, raw: raw})
	}
	return out
}

// normalizeRaw restores the quoting jsonparser strips from string values.
func normalizeRaw(value []byte, valueType jsonparser.ValueType) json.RawMessage {
	if valueType != jsonparser.String {
		return json.RawMessage(value)
	}
	quoted, err := json.Marshal(string(value))
	if err != nil {
		return json.RawMessage("null")
	}
	return json.RawMessage(quoted)
}

func filterVariables(vars map[string]interface{}, used map[string]bool) map[string]interface{} {
	if len(vars) == 0 || len(used) == 0 {
		return nil
	}
	out := make(map[string]interface{})
	for name := range used {
		if value, ok := vars[name]; ok {
			out[name] = value
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func fieldError(field *ast.Field, err error) *gqlerror.Error {
	var gqlErr *gqlerror.Error
	if e, ok := err.(*gqlerror.Error); ok {
		gqlErr = e
	} else {
		gqlErr = &gqlerror.Error{Message: err.Error()}
	}
	if len(gqlErr.Path) == 0 {
		gqlErr.Path = ast.Path{ast.PathName(field.Alias)}
	}
	return gqlErr
}

func errorEntry(field *ast.Field, err *gqlerror.Error) partial {
	return partial{
		entries: []entry{{key: field.Alias, raw: json.RawMessage("null")}},
		errs:    gqlerror.List{err},
	}
}

func marshalEntry(field *ast.Field, value interface{}, errs gqlerror.List) partial {
	raw, err := json.Marshal(value)
	if err != nil {
		return errorEntry(field, fieldError(field, fmt.Errorf("encode field %q: %w", field.Alias, err)))
	}
	return partial{
		entries: []entry{{key: field.Alias, raw: json.RawMessage(raw)}},
		errs:    errs,
	}
}

func mergePartials(partials []partial) *Response {
	data := []byte("{}")
	resp := &Response{}

	for _, p := range partials {
		for _, ent := range p.entries {
			merged, err := sjson.SetRawBytes(data, escapeKey(ent.key), ent.raw)
			if err != nil {
				resp.Errors = append(resp.Errors, gqlerror.Errorf("merge field %q: %s", ent.key, err))
				continue
			}
			data = merged
		}
		resp.Errors = append(resp.Errors, p.errs...)
	}

	resp.Data = json.RawMessage(data)
	return resp
}

// escapeKey guards the merge path syntax; GraphQL response keys cannot
// contain dots but the merge layer treats them as separators regardless.
func escapeKey(key string) string {
	out := make([]byte, 0, len(key))
	for i := 0; i < len(key); i++ {
		switch key[i] {
		case '.', '*', '?', '\\', '|', '#', '@':
			out = append(out, '\\')
		}
		out = append(out, key[i])
	}
	return string(out)
}
