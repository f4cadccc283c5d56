// Package codestats records classified C/C++ tokens per category and derives
// the Halstead operand and operator counts from those tallies.
package codestats

import (
	"errors"
	"fmt"
)

// Category tags a recorded token with its kind and provenance.
type Category uint8

const (
	Type Category = iota
	TypeAPI
	TypeAPILow
	TypeCustom
	Constant
	ConstantAPI
	ConstantAPILow
	ConstantCustom
	Identifier
	CSpecifier
	Keyword
	KeywordAPI
	KeywordAPILow
	KeywordCustom
	Operator
	Condition

	// NumCategories is the number of defined categories. Any Category value
	// at or above it is unknown.
	NumCategories = int(Condition) + 1
)

// Kind is the lexical kind of a category, independent of provenance.
type Kind uint8

const (
	KindType Kind = iota
	KindConstant
	KindIdentifier
	KindCSpecifier
	KindKeyword
	KindOperator
	KindCondition
)

// Provenance says where a token's meaning comes from.
type Provenance uint8

const (
	// Standard tokens belong to the language itself.
	Standard Provenance = iota
	// API tokens come from a known high-level library (std, SYCL, TBB).
	API
	// APILow tokens come from a known low-level library (intrinsics, pthreads).
	APILow
	// Custom tokens are user-defined.
	Custom
)

// ErrUnknownCategory is returned when a Category outside the defined set is used.
var ErrUnknownCategory = errors.New("unknown category")

type categoryInfo struct {
	name       string
	kind       Kind
	provenance Provenance
}

var categoryTable = [NumCategories]categoryInfo{
	Type:           {"type", KindType, Standard},
	TypeAPI:        {"type_api", KindType, API},
	TypeAPILow:     {"type_api_low", KindType, APILow},
	TypeCustom:     {"type_custom", KindType, Custom},
	Constant:       {"constant", KindConstant, Standard},
	ConstantAPI:    {"constant_api", KindConstant, API},
	ConstantAPILow: {"constant_api_low", KindConstant, APILow},
	ConstantCustom: {"constant_custom", KindConstant, Custom},
	Identifier:     {"identifier", KindIdentifier, Standard},
	CSpecifier:     {"cspecifier", KindCSpecifier, Standard},
	Keyword:        {"keyword", KindKeyword, Standard},
	KeywordAPI:     {"keyword_api", KindKeyword, API},
	KeywordAPILow:  {"keyword_api_low", KindKeyword, APILow},
	KeywordCustom:  {"keyword_custom", KindKeyword, Custom},
	Operator:       {"operator", KindOperator, Standard},
	Condition:      {"condition", KindCondition, Standard},
}

var categoryByName = func() map[string]Category {
	m := make(map[string]Category, NumCategories)
	for i, info := range categoryTable {
		m[info.name] = Category(i)
	}
	return m
}()

// Categories returns every defined category in declaration order.
func Categories() []Category {
	out := make([]Category, NumCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Valid reports whether c is a defined category.
func (c Category) Valid() bool {
	return int(c) < NumCategories
}

func (c Category) String() string {
	if !c.Valid() {
		return fmt.Sprintf("category(%d)", uint8(c))
	}
	return categoryTable[c].name
}

// Kind returns the lexical kind of c. Unknown categories report KindType.
func (c Category) Kind() Kind {
	if !c.Valid() {
		return KindType
	}
	return categoryTable[c].kind
}

// Provenance returns the provenance of c.
func (c Category) Provenance() Provenance {
	if !c.Valid() {
		return Standard
	}
	return categoryTable[c].provenance
}

// ParseCategory returns the category with the given name.
func ParseCategory(name string) (Category, error) {
	c, ok := categoryByName[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownCategory, name)
	}
	return c, nil
}

// MarshalText implements encoding.TextMarshaler.
func (c Category) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return []byte(categoryTable[c].name), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Category) UnmarshalText(text []byte) error {
	parsed, err := ParseCategory(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

func (k Kind) String() string {
	switch k {
	case KindType:
		return "type"
	case KindConstant:
		return "constant"
	case KindIdentifier:
		return "identifier"
	case KindCSpecifier:
		return "cspecifier"
	case KindKeyword:
		return "keyword"
	case KindOperator:
		return "operator"
	case KindCondition:
		return "condition"
	default:
		return "unknown"
	}
}

func (p Provenance) String() string {
	switch p {
	case Standard:
		return "standard"
	case API:
		return "api"
	case APILow:
		return "api_low"
	case Custom:
		return "custom"
	default:
		return "unknown"
	}
}

// WithProvenance returns the category of kind k carrying provenance p.
// Kinds that only exist with Standard provenance ignore p.
func WithProvenance(k Kind, p Provenance) Category {
	for i, info := range categoryTable {
		if info.kind == k && info.provenance == p {
			return Category(i)
		}
	}
	for i, info := range categoryTable {
		if info.kind == k && info.provenance == Standard {
			return Category(i)
		}
	}
	return Type
}
