package parser

import (
	sitter "github.com/smacker/go-tree-sitter"
)

// Unit is a function-like construct cut out of a file so it can be parsed
// and measured on its own.
type Unit struct {
	Name        string `json:"name"`
	Source      []byte `json:"-"`
	StartLine   uint32 `json:"start_line"`
	StartColumn uint32 `json:"start_column"`
	EndLine     uint32 `json:"end_line"`
}

// Lines returns the number of source lines the unit spans.
func (u Unit) Lines() int {
	return int(u.EndLine-u.StartLine) + 1
}

// anonymousUnit names functions whose declarator could not be resolved.
const anonymousUnit = "<anonymous>"

// ExtractUnits returns every function definition with a body in source
// order. Declarations the grammar shapes like definitions (pure virtual
// methods, "= 0" member initializers, "= default" and "= delete") carry no
// body and are not units. Nested definitions such as local class methods
// stay part of their enclosing function.
func ExtractUnits(result *ParseResult) []Unit {
	var units []Unit
	root := result.Tree.RootNode()

	WalkTyped(root, result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		if nodeType != "function_definition" {
			return true
		}
		if node.ChildByFieldName("body") == nil {
			return false
		}
		units = append(units, Unit{
			Name:        functionName(node, source),
			Source:      []byte(GetNodeText(node, source)),
			StartLine:   node.StartPoint().Row + 1,
			StartColumn: node.StartPoint().Column + 1,
			EndLine:     node.EndPoint().Row + 1,
		})
		return false
	})

	return units
}

// functionName follows the declarator chain (pointer and reference
// declarators wrap the function declarator) down to the name.
func functionName(node *sitter.Node, source []byte) string {
	decl := node.ChildByFieldName("declarator")
	for decl != nil {
		switch decl.Type() {
		case "function_declarator":
			if name := decl.ChildByFieldName("declarator"); name != nil {
				return GetNodeText(name, source)
			}
			return anonymousUnit
		case "pointer_declarator", "reference_declarator", "parenthesized_declarator", "attributed_declarator":
			next := decl.ChildByFieldName("declarator")
			if next == nil && decl.NamedChildCount() > 0 {
				next = decl.NamedChild(int(decl.NamedChildCount()) - 1)
			}
			decl = next
		default:
			return anonymousUnit
		}
	}
	return anonymousUnit
}
