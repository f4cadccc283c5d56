package codestats

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type token struct {
	cat  Category
	text string
}

func build(t *testing.T, tokens ...token) *Statistics {
	t.Helper()
	s := New()
	for _, tok := range tokens {
		require.NoError(t, s.Record(tok.cat, tok.text))
	}
	return s
}

func TestRecord(t *testing.T) {
	s := build(t,
		token{Identifier, "x"},
		token{Identifier, "x"},
		token{Identifier, "y"},
		token{Constant, "x"},
	)

	total, err := s.Total(Identifier)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), total)

	unique, err := s.Unique(Identifier)
	require.NoError(t, err)
	assert.Equal(t, 2, unique)

	// Same text under another category is an independent entry.
	unique, err = s.Unique(Constant)
	require.NoError(t, err)
	assert.Equal(t, 1, unique)

	require.NoError(t, s.Validate())
}

func TestRecordErrors(t *testing.T) {
	s := New()

	err := s.Record(Category(200), "x")
	assert.ErrorIs(t, err, ErrUnknownCategory)

	err = s.Record(Identifier, "")
	assert.ErrorIs(t, err, ErrEmptyToken)

	_, err = s.Total(Category(NumCategories))
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = s.Unique(Category(NumCategories))
	assert.ErrorIs(t, err, ErrUnknownCategory)
	_, err = s.Entries(Category(NumCategories))
	assert.ErrorIs(t, err, ErrUnknownCategory)

	assert.True(t, s.Empty())
}

func TestRecordCondition(t *testing.T) {
	s := New()
	require.NoError(t, s.RecordCondition("if"))
	require.NoError(t, s.RecordCondition("if"))
	require.NoError(t, s.RecordCondition("case"))

	counts := s.Snapshot()
	assert.Equal(t, uint64(3), counts.Conditions())
	assert.Equal(t, 2, counts.UniqueCount(Condition))
	assert.Zero(t, counts.OperatorsTotal())
	assert.Zero(t, counts.OperandsTotal())
}

func TestDecrementOperator(t *testing.T) {
	t.Run("underflow on fresh statistics", func(t *testing.T) {
		s := New()
		err := s.DecrementOperator()
		assert.ErrorIs(t, err, ErrArithmeticUnderflow)

		total, _ := s.Total(Operator)
		assert.Zero(t, total)
		assert.Zero(t, s.Corrections())
	})

	t.Run("total only", func(t *testing.T) {
		s := build(t, token{Operator, "("}, token{Operator, "("})
		require.NoError(t, s.DecrementOperator())

		total, _ := s.Total(Operator)
		assert.Equal(t, uint64(1), total)
		entries, _ := s.Entries(Operator)
		require.Len(t, entries, 1)
		assert.Equal(t, uint64(2), entries[0].Count)
		assert.Equal(t, uint64(1), s.Corrections())
		assert.NoError(t, s.Validate())

		require.NoError(t, s.DecrementOperator())
		assert.ErrorIs(t, s.DecrementOperator(), ErrArithmeticUnderflow)
		total, _ = s.Total(Operator)
		assert.Zero(t, total)
	})
}

func TestEntriesOrdering(t *testing.T) {
	s := build(t,
		token{Operator, "+"},
		token{Operator, "="},
		token{Operator, "="},
		token{Operator, "-"},
	)
	entries, err := s.Entries(Operator)
	require.NoError(t, err)
	texts := make([]string, len(entries))
	for i, e := range entries {
		texts[i] = e.Text
	}
	assert.Equal(t, []string{"=", "+", "-"}, texts)
}

func TestResetIdempotent(t *testing.T) {
	s := build(t, token{Keyword, "if"}, token{Operator, "=="}, token{Identifier, "x"})
	require.NoError(t, s.RecordCondition("if"))
	require.NoError(t, s.DecrementOperator())

	s.Reset()
	once := s.Snapshot()
	s.Reset()
	twice := s.Snapshot()

	assert.Equal(t, once, twice)
	assert.Equal(t, Counts{}, twice)
	assert.True(t, s.Empty())
	for _, c := range Categories() {
		unique, err := s.Unique(c)
		require.NoError(t, err)
		assert.Zero(t, unique)
	}
}

func TestMergeScenario(t *testing.T) {
	scope1 := build(t, token{Identifier, "x"})
	scope2 := build(t, token{Identifier, "x"}, token{Identifier, "x"})

	require.NoError(t, scope1.Merge(scope2))

	total, _ := scope1.Total(Identifier)
	unique, _ := scope1.Unique(Identifier)
	assert.Equal(t, uint64(3), total)
	assert.Equal(t, 1, unique)

	// other is untouched
	total, _ = scope2.Total(Identifier)
	assert.Equal(t, uint64(2), total)
}

func TestMergeSelf(t *testing.T) {
	s := build(t, token{Identifier, "x"})
	assert.ErrorIs(t, s.Merge(s), ErrSelfMerge)
	assert.NoError(t, s.Merge(nil))
}

func TestMergeAssociativeAndCommutative(t *testing.T) {
	a := func() *Statistics {
		return build(t, token{Identifier, "x"}, token{Operator, "+"}, token{TypeAPI, "vector"})
	}
	b := func() *Statistics {
		s := build(t, token{Identifier, "y"}, token{Operator, "("}, token{Constant, "1"})
		require.NoError(t, s.DecrementOperator())
		return s
	}
	c := func() *Statistics {
		s := build(t, token{Keyword, "if"}, token{Identifier, "x"}, token{KeywordCustom, "helper"})
		require.NoError(t, s.RecordCondition("if"))
		return s
	}

	// (A+B)+C
	left := a()
	require.NoError(t, left.Merge(b()))
	require.NoError(t, left.Merge(c()))

	// A+(C+B)
	cb := c()
	require.NoError(t, cb.Merge(b()))
	right := a()
	require.NoError(t, right.Merge(cb))

	// C+A+B
	other := c()
	require.NoError(t, other.Merge(a()))
	require.NoError(t, other.Merge(b()))

	assert.Equal(t, left.Snapshot(), right.Snapshot())
	assert.Equal(t, left.Snapshot(), other.Snapshot())
	for _, cat := range Categories() {
		l, _ := left.Entries(cat)
		r, _ := right.Entries(cat)
		assert.Equal(t, l, r, cat.String())
	}
	assert.NoError(t, left.Validate())
}

func TestMergeAdditivity(t *testing.T) {
	files := []*Statistics{
		build(t, token{Identifier, "a"}, token{Operator, "="}),
		build(t, token{Identifier, "a"}, token{Constant, "0"}),
		build(t, token{Type, "int"}, token{Operator, "="}, token{Operator, ";"}),
	}
	global := New()
	var want [NumCategories]uint64
	for _, f := range files {
		snap := f.Snapshot()
		for i := range want {
			want[i] += snap.Totals[i]
		}
		require.NoError(t, global.Merge(f))
	}
	assert.Equal(t, want, global.Snapshot().Totals)
}

func TestClone(t *testing.T) {
	s := build(t, token{Identifier, "x"})
	c := s.Clone()
	require.NoError(t, c.Record(Identifier, "x"))

	total, _ := s.Total(Identifier)
	assert.Equal(t, uint64(1), total)
	total, _ = c.Total(Identifier)
	assert.Equal(t, uint64(2), total)
}

func TestStatisticsJSON(t *testing.T) {
	s := build(t,
		token{Identifier, "x"},
		token{Identifier, "x"},
		token{Operator, "("},
		token{Operator, "("},
	)
	require.NoError(t, s.DecrementOperator())

	data, err := json.Marshal(s)
	require.NoError(t, err)

	decoded := New()
	require.NoError(t, json.Unmarshal(data, decoded))
	assert.Equal(t, s.Snapshot(), decoded.Snapshot())

	entries, _ := decoded.Entries(Identifier)
	assert.Equal(t, []TokenEntry{{Text: "x", Category: Identifier, Count: 2}}, entries)
}

func TestStatisticsJSONRejectsInconsistentInput(t *testing.T) {
	tests := map[string]string{
		"unknown category": `{"categories":{"function":{"total":1,"tokens":{"f":1}}}}`,
		"bad total":        `{"categories":{"identifier":{"total":3,"tokens":{"x":1}}}}`,
		"empty text":       `{"categories":{"identifier":{"total":1,"tokens":{"":1}}}}`,
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			s := New()
			assert.Error(t, json.Unmarshal([]byte(input), s))
			assert.True(t, s.Empty())
		})
	}
}
