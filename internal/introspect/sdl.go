package introspect

import (
	"fmt"
	"strconv"
	"strings"
)

var builtinScalars = map[string]bool{
	"String":  true,
	"Int":     true,
	"Float":   true,
	"Boolean": true,
	"ID":      true,
}

var builtinDirectives = map[string]bool{
	"skip":        true,
	"include":     true,
	"deprecated":  true,
	"specifiedBy": true,
}

// RenderSDL turns an introspected schema into SDL that can be re-parsed and
// merged. Introspection meta types, built-in scalars and built-in directives
// are dropped so the result does not collide with the prelude during
// composition. Root operation types are renamed to the standard
// Query/Mutation/Subscription names so they merge with the other sources.
func RenderSDL(s *Schema) string {
	renames := rootRenames(s)

	var b strings.Builder
	for _, d := range s.Directives {
		if builtinDirectives[d.Name] {
			continue
		}
		renderDirectiveDefinition(&b, d)
	}
	for _, t := range s.Types {
		if t.Name == nil || strings.HasPrefix(*t.Name, "__") {
			continue
		}
		if t.Kind == "SCALAR" && builtinScalars[*t.Name] {
			continue
		}
		renderType(&b, t, renames)
	}
	return b.String()
}

func rootRenames(s *Schema) map[string]string {
	renames := map[string]string{}
	add := func(ref *TypeRef, standard string) {
		if ref != nil && ref.Name != nil && *ref.Name != standard {
			renames[*ref.Name] = standard
		}
	}
	add(s.QueryType, "Query")
	add(s.MutationType, "Mutation")
	add(s.SubscriptionType, "Subscription")
	return renames
}

func renderType(b *strings.Builder, t FullType, renames map[string]string) {
	name := *t.Name
	if renamed, ok := renames[name]; ok {
		name = renamed
	}

	switch t.Kind {
	case "SCALAR":
		fmt.Fprintf(b, "scalar %s\n\n", name)
	case "OBJECT":
		fmt.Fprintf(b, "type %s%s {\n", name, renderInterfaces(t))
		renderFields(b, t.Fields, renames)
		b.WriteString("}\n\n")
	case "INTERFACE":
		fmt.Fprintf(b, "interface %s {\n", name)
		renderFields(b, t.Fields, renames)
		b.WriteString("}\n\n")
	case "UNION":
		members := make([]string, 0, len(t.PossibleTypes))
		for _, p := range t.PossibleTypes {
			if p.Name != nil {
				members = append(members, *p.Name)
			}
		}
		fmt.Fprintf(b, "union %s = %s\n\n", name, strings.Join(members, " | "))
	case "ENUM":
		fmt.Fprintf(b, "enum %s {\n", name)
		for _, v := range t.EnumValues {
			fmt.Fprintf(b, "  %s%s\n", v.Name, renderDeprecation(v.IsDeprecated, v.DeprecationReason))
		}
		b.WriteString("}\n\n")
	case "INPUT_OBJECT":
		fmt.Fprintf(b, "input %s {\n", name)
		for _, f := range t.InputFields {
			fmt.Fprintf(b, "  %s: %s%s\n", f.Name, renderTypeRef(f.Type), renderDefault(f.DefaultValue))
		}
		b.WriteString("}\n\n")
	}
}

func renderInterfaces(t FullType) string {
	if len(t.Interfaces) == 0 {
		return ""
	}
	names := make([]string, 0, len(t.Interfaces))
	for _, i := range t.Interfaces {
		if i.Name != nil {
			names = append(names, *i.Name)
		}
	}
	return " implements " + strings.Join(names, " & ")
}

func renderFields(b *strings.Builder, fields []Field, renames map[string]string) {
	for _, f := range fields {
		fmt.Fprintf(b, "  %s%s: %s%s\n",
			f.Name,
			renderArgs(f.Args),
			renderTypeRefRenamed(f.Type, renames),
			renderDeprecation(f.IsDeprecated, f.DeprecationReason),
		)
	}
}

func renderArgs(args []InputValue) string {
	if len(args) == 0 {
		return ""
	}
	parts := make([]string, 0, len(args))
	for _, a := range args {
		parts = append(parts, fmt.Sprintf("%s: %s%s", a.Name, renderTypeRef(a.Type), renderDefault(a.DefaultValue)))
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func renderDefault(v *string) string {
	if v == nil {
		return ""
	}
	// Introspection returns default values as GraphQL literals already.
	return " = " + *v
}

func renderDeprecation(deprecated bool, reason *string) string {
	if !deprecated {
		return ""
	}
	if reason == nil || *reason == "" {
		return " @deprecated"
	}
	return " @deprecated(reason: " + strconv.Quote(*reason) + ")"
}

func renderTypeRef(ref TypeRef) string {
	return renderTypeRefRenamed(ref, nil)
}

func renderTypeRefRenamed(ref TypeRef, renames map[string]string) string {
	switch ref.Kind {
	case "NON_NULL":
		return renderTypeRefRenamed(*ref.OfType, renames) + "!"
	case "LIST":
		return "[" + renderTypeRefRenamed(*ref.OfType, renames) + "]"
	default:
		name := ""
		if ref.Name != nil {
			name = *ref.Name
		}
		if renamed, ok := renames[name]; ok {
			return renamed
		}
		return name
	}
}

func renderDirectiveDefinition(b *strings.Builder, d Directive) {
	fmt.Fprintf(b, "directive @%s%s on %s\n\n", d.Name, renderArgs(d.Args), strings.Join(d.Locations, " | "))
}
