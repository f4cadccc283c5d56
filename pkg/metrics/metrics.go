// Package metrics derives Halstead, cyclomatic and maintainability figures
// from a codestats snapshot.
package metrics

import (
	"errors"
	"fmt"
	"math"

	"github.com/panbanda/c3ms/pkg/codestats"
)

// ErrDegenerateSample is matched by every *DegenerateError.
var ErrDegenerateSample = errors.New("degenerate sample")

// Reason names the precondition a degenerate sample failed.
type Reason string

const (
	ReasonNoOperators      Reason = "no unique operators"
	ReasonNoOperands       Reason = "no unique operands"
	ReasonNonPositiveLines Reason = "non-positive lines of code"
)

// DegenerateError reports why metrics could not be computed.
type DegenerateError struct {
	Reason Reason
}

func (e *DegenerateError) Error() string {
	return fmt.Sprintf("%s: %s", ErrDegenerateSample, e.Reason)
}

// Is lets errors.Is match ErrDegenerateSample.
func (e *DegenerateError) Is(target error) bool {
	return target == ErrDegenerateSample
}

// Metrics holds the derived figures for one scope together with the counts
// they were computed from.
type Metrics struct {
	OperatorsUnique int     `json:"operators_unique"` // n1
	OperandsUnique  int     `json:"operands_unique"`  // n2
	OperatorsTotal  uint64  `json:"operators_total"`  // N1
	OperandsTotal   uint64  `json:"operands_total"`   // N2
	Vocabulary      int     `json:"vocabulary"`       // n = n1 + n2
	Length          uint64  `json:"length"`           // N = N1 + N2
	Conditions      uint64  `json:"conditions"`
	LinesOfCode     int     `json:"lines_of_code"`
	Volume          float64 `json:"volume"`           // V = N * log2(n)
	Difficulty      float64 `json:"difficulty"`       // D = (n1/2) * (N2/n2)
	Effort          float64 `json:"effort"`           // E = V * D
	Time            float64 `json:"time"`             // T = E / 18 (seconds)
	Bugs            float64 `json:"bugs"`             // B = E^(2/3) / 3000
	Cyclomatic      uint64  `json:"cyclomatic"`       // conditions + 1
	Maintainability float64 `json:"maintainability"`  // 171 - 5.2 ln(V) - 0.23 CC - 16.2 ln(LOC)
}

// Calculate computes the metrics of a scope. It never returns NaN or Inf:
// samples without operators, without operands, or without lines are
// rejected with a *DegenerateError.
func Calculate(counts codestats.Counts, linesOfCode int) (*Metrics, error) {
	m := &Metrics{
		OperatorsUnique: counts.UniqueOperators(),
		OperandsUnique:  counts.UniqueOperands(),
		OperatorsTotal:  counts.OperatorsTotal(),
		OperandsTotal:   counts.OperandsTotal(),
		Conditions:      counts.Conditions(),
		LinesOfCode:     linesOfCode,
	}

	switch {
	case m.OperatorsUnique == 0:
		return nil, &DegenerateError{Reason: ReasonNoOperators}
	case m.OperandsUnique == 0:
		return nil, &DegenerateError{Reason: ReasonNoOperands}
	case linesOfCode <= 0:
		return nil, &DegenerateError{Reason: ReasonNonPositiveLines}
	}

	m.Vocabulary = m.OperatorsUnique + m.OperandsUnique
	m.Length = m.OperatorsTotal + m.OperandsTotal

	n1 := float64(m.OperatorsUnique)
	n2 := float64(m.OperandsUnique)
	N2 := float64(m.OperandsTotal)

	m.Volume = float64(m.Length) * math.Log2(float64(m.Vocabulary))
	m.Difficulty = (n1 / 2.0) * (N2 / n2)
	m.Effort = m.Volume * m.Difficulty
	m.Time = m.Effort / 18.0
	m.Bugs = math.Pow(m.Effort, 2.0/3.0) / 3000.0
	m.Cyclomatic = m.Conditions + 1
	m.Maintainability = 171 -
		5.2*math.Log(m.Volume) -
		0.23*float64(m.Cyclomatic) -
		16.2*math.Log(float64(linesOfCode))

	return m, nil
}

// Rating buckets a maintainability index.
type Rating string

const (
	RatingGood     Rating = "good"
	RatingModerate Rating = "moderate"
	RatingPoor     Rating = "poor"
)

// Rating returns the maintainability bucket of m.
func (m *Metrics) Rating() Rating {
	switch {
	case m.Maintainability >= 85:
		return RatingGood
	case m.Maintainability >= 65:
		return RatingModerate
	default:
		return RatingPoor
	}
}
