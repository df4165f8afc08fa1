package executor

import (
	"encoding/json"
	"fmt"

	"github.com/vektah/gqlparser/v2/ast"
)

// docWalk carries the per-operation state every selection-set traversal
// needs: the schema for type relationships, the document for fragment
// lookups, and the coerced variables for skip and include evaluation.
type docWalk struct {
	schema *ast.Schema
	doc    *ast.QueryDocument
	vars   map[string]interface{}
}

// flatten resolves fragment spreads and inline fragments applicable to
// typeName into a flat, document-ordered field list, dropping fields excluded
// by skip or include.
func (w *docWalk) flatten(sel ast.SelectionSet, typeName string) []*ast.Field {
	var fields []*ast.Field
	for _, selection := range sel {
		switch s := selection.(type) {
		case *ast.Field:
			if w.skipped(s.Directives) {
				continue
			}
			fields = append(fields, s)
		case *ast.InlineFragment:
			if w.skipped(s.Directives) || !w.satisfies(typeName, s.TypeCondition) {
				continue
			}
			fields = append(fields, w.flatten(s.SelectionSet, typeName)...)
		case *ast.FragmentSpread:
			if w.skipped(s.Directives) {
				continue
			}
			frag := w.doc.Fragments.ForName(s.Name)
			if frag == nil || !w.satisfies(typeName, frag.TypeCondition) {
				continue
			}
			fields = append(fields, w.flatten(frag.SelectionSet, typeName)...)
		}
	}
	return fields
}

// satisfies reports whether a value of concrete type typeName matches the
// fragment type condition, directly or through an interface or union.
func (w *docWalk) satisfies(typeName, condition string) bool {
	if condition == "" || condition == typeName {
		return true
	}
	for _, possible := range w.schema.PossibleTypes[condition] {
		if possible.Name == typeName {
			return true
		}
	}
	return false
}

func (w *docWalk) skipped(dirs ast.DirectiveList) bool {
	if d := dirs.ForName("skip"); d != nil && w.boolArg(d, "if") {
		return true
	}
	if d := dirs.ForName("include"); d != nil && !w.boolArg(d, "if") {
		return true
	}
	return false
}

func (w *docWalk) boolArg(d *ast.Directive, name string) bool {
	arg := d.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return false
	}
	if arg.Value.Kind == ast.Variable {
		v, _ := w.vars[arg.Value.Raw].(bool)
		return v
	}
	return arg.Value.Raw == "true"
}

// projectResolved shapes an in-process resolver's return value to the field's
// selection set. The value is normalized through its JSON form first so
// structs and maps project uniformly.
func (w *docWalk) projectResolved(value interface{}, field *ast.Field) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode resolved value for %q: %w", field.Alias, err)
	}
	var normalized interface{}
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("normalize resolved value for %q: %w", field.Alias, err)
	}
	return w.projectResolvedValue(normalized, field)
}

// projectResolvedValue shapes an already-normalized JSON value (maps, slices,
// primitives) to the field's selection set.
func (w *docWalk) projectResolvedValue(value interface{}, field *ast.Field) (interface{}, error) {
	if field.Definition == nil {
		return value, nil
	}
	return w.project(value, field.Definition.Type.Name(), field.SelectionSet)
}

func (w *docWalk) project(value interface{}, typeName string, sel ast.SelectionSet) (interface{}, error) {
	if value == nil {
		return nil, nil
	}
	if len(sel) == 0 {
		return value, nil
	}

	if list, ok := value.([]interface{}); ok {
		out := make([]interface{}, len(list))
		for i, item := range list {
			projected, err := w.project(item, typeName, sel)
			if err != nil {
				return nil, err
			}
			out[i] = projected
		}
		return out, nil
	}

	obj, ok := value.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("cannot apply a selection set to a %T value of type %s", value, typeName)
	}

	// A backend-reported concrete type beats the schema's static type when
	// deciding which fragments apply.
	concrete := typeName
	if reported, ok := obj["__typename"].(string); ok && reported != "" {
		concrete = reported
	}

	out := make(map[string]interface{})
	for _, f := range w.flatten(sel, concrete) {
		if f.Name == "__typename" {
			out[f.Alias] = concrete
			continue
		}
		childType := ""
		if f.Definition != nil {
			childType = f.Definition.Type.Name()
		}
		projected, err := w.project(obj[f.Name], childType, f.SelectionSet)
		if err != nil {
			return nil, err
		}
		out[f.Alias] = projected
	}
	return out, nil
}
