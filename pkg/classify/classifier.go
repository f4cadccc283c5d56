// Package classify walks C and C++ syntax trees and reports every token,
// tagged with its category, to a codestats.Recorder.
package classify

import (
	"strings"
	"unicode"

	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/panbanda/c3ms/pkg/parser"
	sitter "github.com/smacker/go-tree-sitter"
)

// Classifier maps tree-sitter C/C++ tokens to categories.
// It holds no per-call state and is safe for concurrent use.
type Classifier struct {
	catalog *Catalog
}

// New creates a classifier using catalog to tell library names from
// user-defined ones. A nil catalog means DefaultCatalog.
func New(catalog *Catalog) *Classifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Classifier{catalog: catalog}
}

// Catalog returns the catalog in use.
func (c *Classifier) Catalog() *Catalog {
	return c.catalog
}

// Classify records every token of a parsed file into rec. The first
// recorder error aborts the walk and is returned.
func (c *Classifier) Classify(result *parser.ParseResult, rec codestats.Recorder) error {
	return c.ClassifyNode(result.Tree.RootNode(), result.Source, rec)
}

// ClassifyNode records the tokens below node.
func (c *Classifier) ClassifyNode(node *sitter.Node, source []byte, rec codestats.Recorder) error {
	w := &walker{rec: rec, catalog: c.catalog, source: source}
	return w.walk(node, "", role{})
}

// role carries what a parent knows about a child: whether it names the
// called function and which "::" qualifier applies to it.
type role struct {
	callee bool
	scope  string
}

type walker struct {
	rec     codestats.Recorder
	catalog *Catalog
	source  []byte
}

// Nodes recorded as a single token without visiting their children.
var atomicConstants = map[string]bool{
	"string_literal":       true,
	"raw_string_literal":   true,
	"char_literal":         true,
	"system_lib_string":    true,
	"number_literal":       true,
	"user_defined_literal": true,
}

var conditionKeywords = map[string]bool{
	"if": true, "else": true, "switch": true, "case": true, "default": true,
}

var specifierKeywords = map[string]bool{
	"const": true, "volatile": true, "restrict": true, "__restrict": true,
	"_Atomic": true, "static": true, "extern": true, "register": true,
	"inline": true, "__inline": true, "thread_local": true, "_Thread_local": true,
	"mutable": true, "constexpr": true, "consteval": true, "constinit": true,
	"virtual": true, "explicit": true, "friend": true, "final": true,
	"override": true, "public": true, "private": true, "protected": true,
}

var closingBrackets = map[string]bool{")": true, "]": true, "}": true}

var emptyPairs = map[string]string{"(": ")", "[": "]", "{": "}"}

func (w *walker) walk(node *sitter.Node, parentType string, r role) error {
	if node == nil {
		return nil
	}
	nodeType := node.Type()

	switch nodeType {
	case "comment", "preproc_arg":
		// Macro bodies are raw text to tree-sitter.
		return nil
	case "sized_type_specifier":
		return w.record(codestats.Type, strings.Join(strings.Fields(w.text(node)), " "))
	}
	if atomicConstants[nodeType] {
		return w.record(codestats.Constant, w.text(node))
	}

	if node.ChildCount() == 0 {
		return w.leaf(node, nodeType, parentType, r)
	}

	var (
		target    *sitter.Node
		childRole role
	)
	switch nodeType {
	case "call_expression":
		target = node.ChildByFieldName("function")
		childRole = role{callee: true}
	case "qualified_identifier":
		target = node.ChildByFieldName("name")
		childRole = role{callee: r.callee, scope: joinScope(r.scope, w.text(node.ChildByFieldName("scope")))}
	case "template_function", "template_method", "template_type":
		target = node.ChildByFieldName("name")
		childRole = r
	case "field_expression":
		target = node.ChildByFieldName("field")
		childRole = role{callee: r.callee}
	}

	for i := range int(node.ChildCount()) {
		child := node.Child(i)
		cr := role{}
		if target != nil && sameNode(child, target) {
			cr = childRole
		}
		if err := w.walk(child, nodeType, cr); err != nil {
			return err
		}
	}
	return nil
}

func (w *walker) leaf(node *sitter.Node, nodeType, parentType string, r role) error {
	text := w.text(node)
	if strings.TrimSpace(text) == "" {
		return nil
	}

	if !node.IsNamed() {
		if isWord(text) {
			return w.keyword(text, parentType)
		}
		return w.operator(node, text)
	}

	switch nodeType {
	case "identifier":
		return w.identifier(text, r)
	case "field_identifier":
		if r.callee {
			return w.call(text, r.scope)
		}
		return w.record(codestats.Identifier, text)
	case "type_identifier":
		p := w.catalog.Lookup(TypeName, text, r.scope)
		return w.record(codestats.WithProvenance(codestats.KindType, p), text)
	case "namespace_identifier", "statement_identifier":
		return w.record(codestats.Identifier, text)
	case "primitive_type", "auto":
		return w.record(codestats.Type, text)
	case "true", "false", "nullptr":
		return w.record(codestats.Constant, text)
	case "null":
		if p, ok := w.catalog.Named(ConstantName, text); ok {
			return w.record(codestats.WithProvenance(codestats.KindConstant, p), text)
		}
		return w.record(codestats.Constant, text)
	case "this", "preproc_directive":
		return w.record(codestats.Keyword, text)
	}

	if isWord(text) {
		return w.keyword(text, parentType)
	}
	return w.operator(node, text)
}

func (w *walker) identifier(text string, r role) error {
	if r.callee {
		return w.call(text, r.scope)
	}
	if p, ok := w.catalog.Named(ConstantName, text); ok {
		return w.record(codestats.WithProvenance(codestats.KindConstant, p), text)
	}
	if isMacroName(text) {
		p := w.catalog.Lookup(ConstantName, text, r.scope)
		return w.record(codestats.WithProvenance(codestats.KindConstant, p), text)
	}
	return w.record(codestats.Identifier, text)
}

func (w *walker) call(name, scope string) error {
	p := w.catalog.Lookup(FunctionName, name, scope)
	return w.record(codestats.WithProvenance(codestats.KindKeyword, p), name)
}

func (w *walker) keyword(text, parentType string) error {
	switch {
	case conditionKeywords[text] && parentType != "default_method_clause":
		if err := w.record(codestats.Keyword, text); err != nil {
			return err
		}
		return w.rec.RecordCondition(text)
	case text == "auto" && parentType != "storage_class_specifier":
		return w.record(codestats.Type, text)
	case specifierKeywords[text] || text == "auto":
		return w.record(codestats.CSpecifier, text)
	}
	return w.record(codestats.Keyword, text)
}

func (w *walker) operator(node *sitter.Node, text string) error {
	if closingBrackets[text] {
		return nil
	}
	if err := w.record(codestats.Operator, text); err != nil {
		return err
	}
	if closer, ok := emptyPairs[text]; ok {
		if next := node.NextSibling(); next != nil && next.Type() == closer {
			return w.rec.DecrementOperator()
		}
	}
	return nil
}

func (w *walker) record(c codestats.Category, text string) error {
	return w.rec.Record(c, text)
}

func (w *walker) text(node *sitter.Node) string {
	return parser.GetNodeText(node, w.source)
}

func sameNode(a, b *sitter.Node) bool {
	return a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func joinScope(outer, inner string) string {
	switch {
	case outer == "":
		return inner
	case inner == "":
		return outer
	}
	return outer + "::" + inner
}

// isWord reports whether an unnamed token is a keyword or directive rather
// than punctuation.
func isWord(text string) bool {
	r := rune(text[0])
	return r == '_' || r == '#' || unicode.IsLetter(r)
}

// isMacroName matches upper-case names such as BUFFER_SIZE. Single letters
// are left to identifiers.
func isMacroName(text string) bool {
	if len(text) < 2 {
		return false
	}
	hasLetter := false
	for _, r := range text {
		switch {
		case r >= 'A' && r <= 'Z':
			hasLetter = true
		case r == '_' || (r >= '0' && r <= '9'):
		default:
			return false
		}
	}
	return hasLetter && !(text[0] >= '0' && text[0] <= '9')
}
