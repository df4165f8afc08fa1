package compose

import (
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// FunctionDirective is the composition-internal directive marking a field as
// backed by a remote function. It is stripped from the public schema.
const FunctionDirective = "function"

const functionDirectiveSDL = `directive @function(name: String!) on FIELD_DEFINITION`

// RewriteFunctionDirectives namespaces every function directive usage in doc
// with the owning package name, so identical function names from different
// packages stay addressable as distinct identifiers after composition.
// Rewriting is idempotent: a name already carrying the package prefix is
// left untouched.
func RewriteFunctionDirectives(doc *ast.SchemaDocument, pkg string) {
	for _, def := range doc.Definitions {
		rewriteDefinition(def, pkg)
	}
	for _, def := range doc.Extensions {
		rewriteDefinition(def, pkg)
	}
}

func rewriteDefinition(def *ast.Definition, pkg string) {
	for _, field := range def.Fields {
		dir := field.Directives.ForName(FunctionDirective)
		if dir == nil {
			continue
		}
		arg := dir.Arguments.ForName("name")
		if arg == nil || arg.Value == nil || arg.Value.Kind != ast.StringValue {
			continue
		}
		arg.Value.Raw = namespacedFunction(pkg, arg.Value.Raw)
	}
}

func namespacedFunction(pkg, name string) string {
	if strings.HasPrefix(name, pkg+"/") {
		return name
	}
	return pkg + "/" + name
}
