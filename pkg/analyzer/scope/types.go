package scope

import (
	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/panbanda/c3ms/pkg/metrics"
	"github.com/panbanda/c3ms/pkg/stats"
)

// FunctionResult represents the measurements of a single function.
type FunctionResult struct {
	Name      string                `json:"name"`
	Address   string                `json:"address"`
	StartLine uint32                `json:"start_line"`
	EndLine   uint32                `json:"end_line"`
	Lines     int                   `json:"lines"`
	Stats     *codestats.Statistics `json:"statistics,omitempty"`
	Metrics   *metrics.Metrics      `json:"metrics,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// FileResult represents the measurements of a single file.
type FileResult struct {
	Path     string `json:"path"`
	Language string `json:"language"`
	Lines    int    `json:"lines"`
	// LinesOutsideFunctions counts lines not covered by any extracted
	// function. Only set in function mode.
	LinesOutsideFunctions int                   `json:"lines_outside_functions,omitempty"`
	Cached                bool                  `json:"cached,omitempty"`
	Stats                 *codestats.Statistics `json:"statistics,omitempty"`
	Metrics               *metrics.Metrics      `json:"metrics,omitempty"`
	Error                 string                `json:"error,omitempty"`
	Functions             []FunctionResult      `json:"functions,omitempty"`
}

// GlobalResult holds the totals of every successfully processed file.
type GlobalResult struct {
	Files   int                   `json:"files"`
	Lines   int                   `json:"lines"`
	Stats   *codestats.Statistics `json:"statistics,omitempty"`
	Metrics *metrics.Metrics      `json:"metrics,omitempty"`
	Error   string                `json:"error,omitempty"`
}

// Skipped records a file that could not be analyzed.
type Skipped struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// Summary provides aggregate statistics. Distributions are taken over
// functions in function mode and over files otherwise.
type Summary struct {
	TotalFiles      int                `json:"total_files"`
	TotalFunctions  int                `json:"total_functions"`
	SkippedFiles    int                `json:"skipped_files"`
	CachedFiles     int                `json:"cached_files"`
	DegenerateUnits int                `json:"degenerate_units"`
	Cyclomatic      stats.Distribution `json:"cyclomatic"`
	Maintainability stats.Distribution `json:"maintainability"`
}

// Analysis represents the result of one run.
type Analysis struct {
	Files   []FileResult `json:"files"`
	Global  GlobalResult `json:"global"`
	Skipped []Skipped    `json:"skipped,omitempty"`
	Summary Summary      `json:"summary"`
}

// Succeeded reports whether at least one file was analyzed.
func (a *Analysis) Succeeded() bool {
	return a != nil && len(a.Files) > 0
}

func (a *Analysis) summarize(functionMode bool) {
	s := Summary{
		TotalFiles:   len(a.Files),
		SkippedFiles: len(a.Skipped),
	}

	var cc, mi []float64
	sample := func(m *metrics.Metrics) {
		if m == nil {
			s.DegenerateUnits++
			return
		}
		cc = append(cc, float64(m.Cyclomatic))
		mi = append(mi, m.Maintainability)
	}

	for i := range a.Files {
		f := &a.Files[i]
		if f.Cached {
			s.CachedFiles++
		}
		s.TotalFunctions += len(f.Functions)
		if !functionMode {
			sample(f.Metrics)
			continue
		}
		for j := range f.Functions {
			sample(f.Functions[j].Metrics)
		}
	}

	s.Cyclomatic = stats.Describe(cc)
	s.Maintainability = stats.Describe(mi)
	a.Summary = s
}
