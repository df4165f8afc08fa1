package executor

import "github.com/vektah/gqlparser/v2/ast"

// pruneForLegacy builds the minimal forwardable document for the legacy-owned
// root fields: only their selections, the fragments they reach, and the
// variable definitions they use. The returned set names the used variables so
// the caller can filter the forwarded variable values to match.
func pruneForLegacy(doc *ast.QueryDocument, op *ast.OperationDefinition, fields []*ast.Field) (*ast.QueryDocument, map[string]bool) {
	sel := make(ast.SelectionSet, 0, len(fields))
	for _, field := range fields {
		sel = append(sel, field)
	}

	c := &collector{
		doc:       doc,
		fragments: make(map[string]bool),
		variables: make(map[string]bool),
	}
	c.selectionSet(sel)

	var fragments ast.FragmentDefinitionList
	for _, frag := range doc.Fragments {
		if c.fragments[frag.Name] {
			fragments = append(fragments, frag)
		}
	}

	var varDefs ast.VariableDefinitionList
	for _, def := range op.VariableDefinitions {
		if c.variables[def.Variable] {
			varDefs = append(varDefs, def)
		}
	}

	pruned := &ast.QueryDocument{
		Operations: ast.OperationList{{
			Operation:           op.Operation,
			Name:                op.Name,
			VariableDefinitions: varDefs,
			Directives:          op.Directives,
			SelectionSet:        sel,
		}},
		Fragments: fragments,
	}
	return pruned, c.variables
}

type collector struct {
	doc       *ast.QueryDocument
	fragments map[string]bool
	variables map[string]bool
}

func (c *collector) selectionSet(sel ast.SelectionSet) {
	for _, selection := range sel {
		switch s := selection.(type) {
		case *ast.Field:
			for _, arg := range s.Arguments {
				c.value(arg.Value)
			}
			c.directives(s.Directives)
			c.selectionSet(s.SelectionSet)
		case *ast.InlineFragment:
			c.directives(s.Directives)
			c.selectionSet(s.SelectionSet)
		case *ast.FragmentSpread:
			c.directives(s.Directives)
			if c.fragments[s.Name] {
				continue
			}
			c.fragments[s.Name] = true
			if frag := c.doc.Fragments.ForName(s.Name); frag != nil {
				c.selectionSet(frag.SelectionSet)
			}
		}
	}
}

func (c *collector) directives(dirs ast.DirectiveList) {
	for _, d := range dirs {
		for _, arg := range d.Arguments {
			c.value(arg.Value)
		}
	}
}

func (c *collector) value(v *ast.Value) {
	if v == nil {
		return
	}
	if v.Kind == ast.Variable {
		c.variables[v.Raw] = true
	}
	for _, child := range v.Children {
		c.value(child.Value)
	}
}
