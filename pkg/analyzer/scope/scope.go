// Package scope folds token tallies from function to file to global scope
// and computes metrics at each level.
package scope

import (
	"errors"
	"fmt"

	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/panbanda/c3ms/pkg/metrics"
)

var (
	// ErrInvalidTransition is returned when a scope operation is not allowed
	// in the scope's current phase.
	ErrInvalidTransition = errors.New("invalid scope transition")

	// ErrInputUnavailable is returned when a file cannot be read or parsed.
	// The file is skipped and the run continues.
	ErrInputUnavailable = errors.New("input unavailable")
)

// Level is the granularity of a scope.
type Level int

const (
	Function Level = iota
	File
	Global
)

func (l Level) String() string {
	switch l {
	case Function:
		return "function"
	case File:
		return "file"
	case Global:
		return "global"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Phase is the lifecycle state of a scope.
type Phase int

const (
	Idle Phase = iota
	Classifying
	Computed
	FoldedUp
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Classifying:
		return "classifying"
	case Computed:
		return "computed"
	case FoldedUp:
		return "folded_up"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Scope owns the tallies of one function, file or the whole run.
//
// A function or file scope moves Idle -> Classifying -> Computed -> FoldedUp
// and returns to Idle on Reset. The global scope never folds: it accepts
// folds while Classifying or Computed and may be computed repeatedly.
// A Scope is not safe for concurrent use.
type Scope struct {
	level   Level
	name    string
	phase   Phase
	stats   *codestats.Statistics
	metrics *metrics.Metrics
	lines   int
}

// NewScope returns an idle scope.
func NewScope(level Level, name string) *Scope {
	return &Scope{level: level, name: name, stats: codestats.New()}
}

// Level returns the scope's level.
func (s *Scope) Level() Level { return s.level }

// Name returns the name the scope was created with.
func (s *Scope) Name() string { return s.name }

// Phase returns the scope's current lifecycle phase.
func (s *Scope) Phase() Phase { return s.phase }

// Lines returns the line count passed to the last Compute.
func (s *Scope) Lines() int { return s.lines }

// Metrics returns the result of the last successful Compute, or nil.
func (s *Scope) Metrics() *metrics.Metrics { return s.metrics }

// Stats returns a copy of the scope's tallies.
func (s *Scope) Stats() *codestats.Statistics { return s.stats.Clone() }

// Counts returns a snapshot of the scope's totals.
func (s *Scope) Counts() codestats.Counts { return s.stats.Snapshot() }

func (s *Scope) transitionError(op string) error {
	return fmt.Errorf("%w: %s on %s scope %q in phase %s", ErrInvalidTransition, op, s.level, s.name, s.phase)
}

// Begin starts classification and returns the recorder tokens go to.
// The recorder rejects tokens once the scope leaves the Classifying phase.
func (s *Scope) Begin() (codestats.Recorder, error) {
	if s.phase != Idle {
		return nil, s.transitionError("begin")
	}
	s.phase = Classifying
	return recorder{s}, nil
}

// Absorb merges previously computed tallies, such as a cached file, into a
// classifying scope.
func (s *Scope) Absorb(stats *codestats.Statistics) error {
	if s.phase != Classifying {
		return s.transitionError("absorb")
	}
	return s.stats.Merge(stats)
}

// Compute derives metrics from the current tallies. A degenerate sample
// still completes the transition; the returned error matches
// metrics.ErrDegenerateSample and Metrics stays nil.
func (s *Scope) Compute(lines int) (*metrics.Metrics, error) {
	switch {
	case s.phase == Classifying:
	case s.phase == Computed && s.level == Global:
	default:
		return nil, s.transitionError("compute")
	}
	s.phase = Computed
	s.lines = lines
	m, err := metrics.Calculate(s.stats.Snapshot(), lines)
	s.metrics = m
	return m, err
}

// FoldInto adds the scope's tallies to parent, which must be the next level
// up. Folding into a computed global scope returns it to Classifying.
func (s *Scope) FoldInto(parent *Scope) error {
	if s.level == Global || s.phase != Computed {
		return s.transitionError("fold")
	}
	if parent == nil || parent.level != s.level+1 {
		return fmt.Errorf("%w: %s scope %q cannot fold into %v", ErrInvalidTransition, s.level, s.name, parentLevel(parent))
	}
	switch {
	case parent.phase == Classifying:
	case parent.phase == Computed && parent.level == Global:
		parent.phase = Classifying
		parent.metrics = nil
	default:
		return parent.transitionError("accept fold")
	}
	if err := parent.stats.Merge(s.stats); err != nil {
		return err
	}
	s.phase = FoldedUp
	return nil
}

// Reset clears the tallies and returns the scope to Idle.
func (s *Scope) Reset() {
	s.stats.Reset()
	s.metrics = nil
	s.lines = 0
	s.phase = Idle
}

func parentLevel(p *Scope) string {
	if p == nil {
		return "nil"
	}
	return p.level.String() + " scope"
}

type recorder struct{ s *Scope }

func (r recorder) Record(c codestats.Category, text string) error {
	if r.s.phase != Classifying {
		return r.s.transitionError("record")
	}
	return r.s.stats.Record(c, text)
}

func (r recorder) RecordCondition(text string) error {
	if r.s.phase != Classifying {
		return r.s.transitionError("record condition")
	}
	return r.s.stats.RecordCondition(text)
}

func (r recorder) DecrementOperator() error {
	if r.s.phase != Classifying {
		return r.s.transitionError("decrement operator")
	}
	return r.s.stats.DecrementOperator()
}
