package executor

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// introspector answers __schema, __type and __typename selections in-process
// against the public schema, so exploration tools work without any source
// being consulted.
type introspector struct {
	schema *ast.Schema
	walk   *docWalk
	vars   map[string]interface{}
}

func (in *introspector) resolveMeta(field *ast.Field, rootType string) interface{} {
	switch field.Name {
	case "__typename":
		return rootType
	case "__schema":
		return in.schemaValue(field.SelectionSet)
	case "__type":
		name := in.stringArg(field, "name")
		def, ok := in.schema.Types[name]
		if !ok {
			return nil
		}
		return in.typeValue(def, field.SelectionSet)
	}
	return nil
}

func (in *introspector) schemaValue(sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__Schema") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__Schema"
		case "description":
			out[f.Alias] = nil
		case "types":
			names := make([]string, 0, len(in.schema.Types))
			for name := range in.schema.Types {
				names = append(names, name)
			}
			sort.Strings(names)
			types := make([]interface{}, 0, len(names))
			for _, name := range names {
				types = append(types, in.typeValue(in.schema.Types[name], f.SelectionSet))
			}
			out[f.Alias] = types
		case "queryType":
			out[f.Alias] = in.rootTypeValue(in.schema.Query, f.SelectionSet)
		case "mutationType":
			out[f.Alias] = in.rootTypeValue(in.schema.Mutation, f.SelectionSet)
		case "subscriptionType":
			out[f.Alias] = in.rootTypeValue(in.schema.Subscription, f.SelectionSet)
		case "directives":
			names := make([]string, 0, len(in.schema.Directives))
			for name := range in.schema.Directives {
				names = append(names, name)
			}
			sort.Strings(names)
			dirs := make([]interface{}, 0, len(names))
			for _, name := range names {
				dirs = append(dirs, in.directiveValue(in.schema.Directives[name], f.SelectionSet))
			}
			out[f.Alias] = dirs
		}
	}
	return out
}

func (in *introspector) rootTypeValue(def *ast.Definition, sel ast.SelectionSet) interface{} {
	if def == nil {
		return nil
	}
	return in.typeValue(def, sel)
}

func (in *introspector) typeValue(def *ast.Definition, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__Type") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__Type"
		case "kind":
			out[f.Alias] = string(def.Kind)
		case "name":
			out[f.Alias] = def.Name
		case "description":
			out[f.Alias] = description(def.Description)
		case "fields":
			out[f.Alias] = in.fieldsValue(def, f)
		case "interfaces":
			out[f.Alias] = in.interfacesValue(def, f.SelectionSet)
		case "possibleTypes":
			out[f.Alias] = in.possibleTypesValue(def, f.SelectionSet)
		case "enumValues":
			out[f.Alias] = in.enumValuesValue(def, f)
		case "inputFields":
			out[f.Alias] = in.inputFieldsValue(def, f.SelectionSet)
		case "ofType":
			out[f.Alias] = nil
		case "specifiedByURL", "specifiedByUrl":
			out[f.Alias] = specifiedBy(def)
		}
	}
	return out
}

func (in *introspector) fieldsValue(def *ast.Definition, f *ast.Field) interface{} {
	if def.Kind != ast.Object && def.Kind != ast.Interface {
		return nil
	}
	includeDeprecated := in.boolFieldArg(f, "includeDeprecated")
	fields := make([]interface{}, 0, len(def.Fields))
	for _, fd := range def.Fields {
		if strings.HasPrefix(fd.Name, "__") {
			continue
		}
		if !includeDeprecated && fd.Directives.ForName("deprecated") != nil {
			continue
		}
		fields = append(fields, in.fieldDefValue(fd, f.SelectionSet))
	}
	return fields
}

func (in *introspector) fieldDefValue(fd *ast.FieldDefinition, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__Field") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__Field"
		case "name":
			out[f.Alias] = fd.Name
		case "description":
			out[f.Alias] = description(fd.Description)
		case "args":
			out[f.Alias] = in.argsValue(fd.Arguments, f.SelectionSet)
		case "type":
			out[f.Alias] = in.typeRefValue(fd.Type, f.SelectionSet)
		case "isDeprecated":
			out[f.Alias] = fd.Directives.ForName("deprecated") != nil
		case "deprecationReason":
			out[f.Alias] = deprecationReason(fd.Directives)
		}
	}
	return out
}

func (in *introspector) argsValue(args ast.ArgumentDefinitionList, sel ast.SelectionSet) []interface{} {
	out := make([]interface{}, 0, len(args))
	for _, arg := range args {
		out = append(out, in.inputValue(arg.Description, arg.Name, arg.Type, arg.DefaultValue, sel))
	}
	return out
}

func (in *introspector) inputFieldsValue(def *ast.Definition, sel ast.SelectionSet) interface{} {
	if def.Kind != ast.InputObject {
		return nil
	}
	out := make([]interface{}, 0, len(def.Fields))
	for _, fd := range def.Fields {
		out = append(out, in.inputValue(fd.Description, fd.Name, fd.Type, fd.DefaultValue, sel))
	}
	return out
}

func (in *introspector) inputValue(desc, name string, typ *ast.Type, def *ast.Value, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__InputValue") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__InputValue"
		case "name":
			out[f.Alias] = name
		case "description":
			out[f.Alias] = description(desc)
		case "type":
			out[f.Alias] = in.typeRefValue(typ, f.SelectionSet)
		case "defaultValue":
			if def == nil {
				out[f.Alias] = nil
			} else {
				out[f.Alias] = def.String()
			}
		}
	}
	return out
}

func (in *introspector) interfacesValue(def *ast.Definition, sel ast.SelectionSet) interface{} {
	if def.Kind != ast.Object && def.Kind != ast.Interface {
		return nil
	}
	out := make([]interface{}, 0, len(def.Interfaces))
	for _, name := range def.Interfaces {
		if iface, ok := in.schema.Types[name]; ok {
			out = append(out, in.typeValue(iface, sel))
		}
	}
	return out
}

func (in *introspector) possibleTypesValue(def *ast.Definition, sel ast.SelectionSet) interface{} {
	if def.Kind != ast.Interface && def.Kind != ast.Union {
		return nil
	}
	possible := in.schema.PossibleTypes[def.Name]
	out := make([]interface{}, 0, len(possible))
	for _, p := range possible {
		out = append(out, in.typeValue(p, sel))
	}
	return out
}

func (in *introspector) enumValuesValue(def *ast.Definition, f *ast.Field) interface{} {
	if def.Kind != ast.Enum {
		return nil
	}
	includeDeprecated := in.boolFieldArg(f, "includeDeprecated")
	out := make([]interface{}, 0, len(def.EnumValues))
	for _, ev := range def.EnumValues {
		if !includeDeprecated && ev.Directives.ForName("deprecated") != nil {
			continue
		}
		out = append(out, in.enumValue(ev, f.SelectionSet))
	}
	return out
}

func (in *introspector) enumValue(ev *ast.EnumValueDefinition, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__EnumValue") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__EnumValue"
		case "name":
			out[f.Alias] = ev.Name
		case "description":
			out[f.Alias] = description(ev.Description)
		case "isDeprecated":
			out[f.Alias] = ev.Directives.ForName("deprecated") != nil
		case "deprecationReason":
			out[f.Alias] = deprecationReason(ev.Directives)
		}
	}
	return out
}

func (in *introspector) directiveValue(dd *ast.DirectiveDefinition, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__Directive") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__Directive"
		case "name":
			out[f.Alias] = dd.Name
		case "description":
			out[f.Alias] = description(dd.Description)
		case "locations":
			locations := make([]interface{}, 0, len(dd.Locations))
			for _, loc := range dd.Locations {
				locations = append(locations, string(loc))
			}
			out[f.Alias] = locations
		case "args":
			out[f.Alias] = in.argsValue(dd.Arguments, f.SelectionSet)
		case "isRepeatable":
			out[f.Alias] = dd.IsRepeatable
		}
	}
	return out
}

// typeRefValue renders a type reference as nested NON_NULL and LIST wrappers
// around the named type.
func (in *introspector) typeRefValue(t *ast.Type, sel ast.SelectionSet) map[string]interface{} {
	if t == nil {
		return nil
	}
	if t.NonNull {
		inner := *t
		inner.NonNull = false
		return in.wrapperValue("NON_NULL", &inner, sel)
	}
	if t.Elem != nil {
		return in.wrapperValue("LIST", t.Elem, sel)
	}
	def, ok := in.schema.Types[t.NamedType]
	if !ok {
		return nil
	}
	return in.typeValue(def, sel)
}

func (in *introspector) wrapperValue(kind string, inner *ast.Type, sel ast.SelectionSet) map[string]interface{} {
	out := make(map[string]interface{})
	for _, f := range in.walk.flatten(sel, "__Type") {
		switch f.Name {
		case "__typename":
			out[f.Alias] = "__Type"
		case "kind":
			out[f.Alias] = kind
		case "ofType":
			out[f.Alias] = in.typeRefValue(inner, f.SelectionSet)
		case "name", "description", "specifiedByURL", "specifiedByUrl":
			out[f.Alias] = nil
		case "fields", "interfaces", "possibleTypes", "enumValues", "inputFields":
			out[f.Alias] = nil
		}
	}
	return out
}

func (in *introspector) stringArg(f *ast.Field, name string) string {
	arg := f.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return ""
	}
	if arg.Value.Kind == ast.Variable {
		v, _ := in.vars[arg.Value.Raw].(string)
		return v
	}
	return arg.Value.Raw
}

func (in *introspector) boolFieldArg(f *ast.Field, name string) bool {
	arg := f.Arguments.ForName(name)
	if arg == nil || arg.Value == nil {
		return false
	}
	if arg.Value.Kind == ast.Variable {
		v, _ := in.vars[arg.Value.Raw].(bool)
		return v
	}
	return arg.Value.Raw == "true"
}

func description(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

func deprecationReason(dirs ast.DirectiveList) interface{} {
	d := dirs.ForName("deprecated")
	if d == nil {
		return nil
	}
	if arg := d.Arguments.ForName("reason"); arg != nil && arg.Value != nil {
		return arg.Value.Raw
	}
	return "No longer supported"
}

func specifiedBy(def *ast.Definition) interface{} {
	if def.Kind != ast.Scalar {
		return nil
	}
	if d := def.Directives.ForName("specifiedBy"); d != nil {
		if arg := d.Arguments.ForName("url"); arg != nil && arg.Value != nil {
			return arg.Value.Raw
		}
	}
	return nil
}
