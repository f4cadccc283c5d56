package codestats

// operandCategories and operatorCategories define the Halstead partition.
// Conditions belong to neither side.
var (
	operandCategories = []Category{
		Constant, ConstantAPI, ConstantAPILow, ConstantCustom,
		Identifier,
	}
	operatorCategories = []Category{
		Type, TypeAPI, TypeAPILow, TypeCustom,
		CSpecifier,
		Keyword, KeywordAPI, KeywordAPILow, KeywordCustom,
		Operator,
	}
)

// OperandCategories returns the categories counted as Halstead operands.
func OperandCategories() []Category {
	return append([]Category(nil), operandCategories...)
}

// OperatorCategories returns the categories counted as Halstead operators.
func OperatorCategories() []Category {
	return append([]Category(nil), operatorCategories...)
}

// Counts is an immutable snapshot of a Statistics. Its accessors are
// lenient: an unknown category reads as 0 instead of failing, because a
// snapshot is only ever indexed by categories taken from Categories or the
// partition lists. Use Statistics.Total to have unknown categories rejected.
type Counts struct {
	Totals      [NumCategories]uint64
	Unique      [NumCategories]int
	Corrections uint64
}

// Total returns the total of cat, or 0 for an unknown category.
func (c Counts) Total(cat Category) uint64 {
	if !cat.Valid() {
		return 0
	}
	return c.Totals[cat]
}

// UniqueCount returns the distinct text count of cat, or 0 for an unknown
// category.
func (c Counts) UniqueCount(cat Category) int {
	if !cat.Valid() {
		return 0
	}
	return c.Unique[cat]
}

// OperandsTotal is N2: every operand occurrence.
func (c Counts) OperandsTotal() uint64 {
	return c.sumTotals(operandCategories)
}

// OperatorsTotal is N1: every operator occurrence.
func (c Counts) OperatorsTotal() uint64 {
	return c.sumTotals(operatorCategories)
}

// UniqueOperands is n2: distinct operand texts, counted per category.
func (c Counts) UniqueOperands() int {
	return c.sumUnique(operandCategories)
}

// UniqueOperators is n1: distinct operator texts, counted per category.
func (c Counts) UniqueOperators() int {
	return c.sumUnique(operatorCategories)
}

// Conditions returns the number of recorded branch points.
func (c Counts) Conditions() uint64 {
	return c.Totals[Condition]
}

func (c Counts) sumTotals(cats []Category) uint64 {
	var n uint64
	for _, cat := range cats {
		n += c.Totals[cat]
	}
	return n
}

func (c Counts) sumUnique(cats []Category) int {
	var n int
	for _, cat := range cats {
		n += c.Unique[cat]
	}
	return n
}
