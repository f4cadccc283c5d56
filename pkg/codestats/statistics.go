package codestats

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
)

var (
	// ErrArithmeticUnderflow is returned when a correction would drive the
	// operator total below zero.
	ErrArithmeticUnderflow = errors.New("arithmetic underflow")

	// ErrEmptyToken is returned when an empty token text is recorded.
	ErrEmptyToken = errors.New("empty token text")

	// ErrSelfMerge is returned when a Statistics is merged into itself.
	ErrSelfMerge = errors.New("cannot merge statistics into itself")

	// ErrInconsistent is returned by Validate when a category total does not
	// match the sum of its entries.
	ErrInconsistent = errors.New("inconsistent statistics")
)

// Recorder receives classified tokens. *Statistics implements it.
type Recorder interface {
	Record(c Category, text string) error
	RecordCondition(text string) error
	DecrementOperator() error
}

// TokenEntry is one distinct token text within a category.
type TokenEntry struct {
	Text     string   `json:"text"`
	Category Category `json:"category"`
	Count    uint64   `json:"count"`
}

type bucket struct {
	total   uint64
	entries map[string]uint64
}

// Statistics tallies tokens per category for one scope.
// It is not safe for concurrent mutation.
type Statistics struct {
	buckets     [NumCategories]bucket
	corrections uint64
}

// New returns an empty Statistics.
func New() *Statistics {
	return &Statistics{}
}

// Record counts one occurrence of text under category c.
func (s *Statistics) Record(c Category, text string) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	if text == "" {
		return fmt.Errorf("%w (category %s)", ErrEmptyToken, c)
	}
	s.add(c, text, 1)
	return nil
}

// RecordCondition counts a branch point such as "if" or "case".
func (s *Statistics) RecordCondition(text string) error {
	return s.Record(Condition, text)
}

// DecrementOperator removes one occurrence from the operator total without
// touching the recorded operator entries. It fails on a zero total and
// leaves the state unchanged.
func (s *Statistics) DecrementOperator() error {
	b := &s.buckets[Operator]
	if b.total == 0 {
		return ErrArithmeticUnderflow
	}
	b.total--
	s.corrections++
	return nil
}

func (s *Statistics) add(c Category, text string, n uint64) {
	b := &s.buckets[c]
	if b.entries == nil {
		b.entries = make(map[string]uint64)
	}
	b.total += n
	b.entries[text] += n
}

// Total returns the running total of category c.
func (s *Statistics) Total(c Category) (uint64, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return s.buckets[c].total, nil
}

// Unique returns the number of distinct texts recorded under category c.
func (s *Statistics) Unique(c Category) (int, error) {
	if !c.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	return len(s.buckets[c].entries), nil
}

// Corrections returns the number of accepted DecrementOperator calls since
// the last Reset.
func (s *Statistics) Corrections() uint64 {
	return s.corrections
}

// Entries returns the entries of category c ordered by count descending,
// then by text.
func (s *Statistics) Entries(c Category) ([]TokenEntry, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCategory, uint8(c))
	}
	entries := make([]TokenEntry, 0, len(s.buckets[c].entries))
	for text, count := range s.buckets[c].entries {
		entries = append(entries, TokenEntry{Text: text, Category: c, Count: count})
	}
	slices.SortFunc(entries, func(a, b TokenEntry) int {
		if n := cmp.Compare(b.Count, a.Count); n != 0 {
			return n
		}
		return cmp.Compare(a.Text, b.Text)
	})
	return entries, nil
}

// Empty reports whether nothing has been recorded.
func (s *Statistics) Empty() bool {
	for i := range s.buckets {
		if s.buckets[i].total != 0 || len(s.buckets[i].entries) != 0 {
			return false
		}
	}
	return s.corrections == 0
}

// Reset clears every total, every entry and the correction count.
func (s *Statistics) Reset() {
	for i := range s.buckets {
		s.buckets[i] = bucket{}
	}
	s.corrections = 0
}

// Merge adds every total and entry of other into s. other is not modified.
func (s *Statistics) Merge(other *Statistics) error {
	if other == nil {
		return nil
	}
	if other == s {
		return ErrSelfMerge
	}
	for i := range other.buckets {
		ob := &other.buckets[i]
		if ob.total == 0 && len(ob.entries) == 0 {
			continue
		}
		b := &s.buckets[i]
		if b.entries == nil && len(ob.entries) > 0 {
			b.entries = make(map[string]uint64, len(ob.entries))
		}
		b.total += ob.total
		for text, count := range ob.entries {
			b.entries[text] += count
		}
	}
	s.corrections += other.corrections
	return nil
}

// Clone returns a deep copy of s.
func (s *Statistics) Clone() *Statistics {
	c := New()
	// Merge into a fresh value cannot fail.
	_ = c.Merge(s)
	return c
}

// Validate checks that each category total equals the sum of its entry
// counts. The operator total is compared after adding back corrections.
func (s *Statistics) Validate() error {
	for i := range s.buckets {
		var sum uint64
		for _, count := range s.buckets[i].entries {
			sum += count
		}
		total := s.buckets[i].total
		if Category(i) == Operator {
			total += s.corrections
		}
		if total != sum {
			return fmt.Errorf("%w: %s total %d, entries sum %d", ErrInconsistent, Category(i), total, sum)
		}
	}
	return nil
}

// Snapshot returns the current totals and unique counts.
func (s *Statistics) Snapshot() Counts {
	var c Counts
	for i := range s.buckets {
		c.Totals[i] = s.buckets[i].total
		c.Unique[i] = len(s.buckets[i].entries)
	}
	c.Corrections = s.corrections
	return c
}

type bucketJSON struct {
	Total  uint64            `json:"total"`
	Tokens map[string]uint64 `json:"tokens,omitempty"`
}

type statisticsJSON struct {
	Categories  map[string]bucketJSON `json:"categories"`
	Corrections uint64                `json:"corrections,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s *Statistics) MarshalJSON() ([]byte, error) {
	out := statisticsJSON{
		Categories:  make(map[string]bucketJSON),
		Corrections: s.corrections,
	}
	for i := range s.buckets {
		b := s.buckets[i]
		if b.total == 0 && len(b.entries) == 0 {
			continue
		}
		out.Categories[Category(i).String()] = bucketJSON{Total: b.total, Tokens: b.entries}
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. The decoded value must satisfy
// Validate.
func (s *Statistics) UnmarshalJSON(data []byte) error {
	var in statisticsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	decoded := New()
	for name, b := range in.Categories {
		c, err := ParseCategory(name)
		if err != nil {
			return err
		}
		decoded.buckets[c].total = b.Total
		if len(b.Tokens) > 0 {
			decoded.buckets[c].entries = make(map[string]uint64, len(b.Tokens))
			for text, count := range b.Tokens {
				if text == "" {
					return fmt.Errorf("%w (category %s)", ErrEmptyToken, c)
				}
				decoded.buckets[c].entries[text] = count
			}
		}
	}
	decoded.corrections = in.Corrections
	if err := decoded.Validate(); err != nil {
		return err
	}
	*s = *decoded
	return nil
}
