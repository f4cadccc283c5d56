package main

import (
	"cmp"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/c3ms/internal/output"
	"github.com/panbanda/c3ms/pkg/analyzer/scope"
	"github.com/panbanda/c3ms/pkg/codestats"
	"github.com/panbanda/c3ms/pkg/metrics"
)

// reportView is the structured form of a report. Scopes that were not
// requested are left out.
type reportView struct {
	Functions []scope.FunctionResult `json:"functions,omitempty"`
	Files     []scope.FileResult     `json:"files,omitempty"`
	Global    *scope.GlobalResult    `json:"global,omitempty"`
	Skipped   []scope.Skipped        `json:"skipped,omitempty"`
	Summary   scope.Summary          `json:"summary"`
}

func buildView(a *scope.Analysis, opts runOptions) reportView {
	keepStats := opts.verbosity >= 2
	view := reportView{Skipped: a.Skipped, Summary: a.Summary}

	for _, f := range a.Files {
		if opts.functions {
			for _, fn := range f.Functions {
				if !keepStats {
					fn.Stats = nil
				}
				view.Functions = append(view.Functions, fn)
			}
		}
		if opts.files {
			f.Functions = nil
			if !keepStats {
				f.Stats = nil
			}
			view.Files = append(view.Files, f)
		}
	}
	if opts.global {
		g := a.Global
		if !keepStats {
			g.Stats = nil
		}
		view.Global = &g
	}
	return view
}

func buildReport(a *scope.Analysis, opts runOptions, units *unitSources) *output.Report {
	report := &output.Report{
		Title: "C/C++ Code Complexity",
		Data:  buildView(a, opts),
	}

	for _, f := range a.Files {
		if opts.functions {
			for _, fn := range f.Functions {
				title := fmt.Sprintf("Function %s (%s:%d-%d)", fn.Name, f.Path, fn.StartLine, fn.EndLine)
				s := scopeSection(title, fn.Metrics, fn.Error, fn.Lines, fn.Stats, opts.verbosity)
				if opts.printFunctions && units != nil {
					if src, ok := units.lookup(fn.Address); ok {
						s.Parts = append([]output.Renderable{&codeBlock{
							Language: f.Language,
							Source:   string(src),
						}}, s.Parts...)
					}
				}
				report.Sections = append(report.Sections, s)
			}
		}
		if opts.files {
			s := scopeSection("File "+f.Path, f.Metrics, f.Error, f.Lines, f.Stats, opts.verbosity)
			if opts.functions {
				s.Fields = append(s.Fields,
					output.Field{Label: "Functions", Value: fmt.Sprintf("%d", len(f.Functions))},
					output.Field{Label: "Lines Outside Functions", Value: fmt.Sprintf("%d", f.LinesOutsideFunctions)},
				)
			}
			report.Sections = append(report.Sections, s)
		}
	}

	if opts.global {
		title := fmt.Sprintf("Global (%d files)", a.Global.Files)
		report.Sections = append(report.Sections,
			scopeSection(title, a.Global.Metrics, a.Global.Error, a.Global.Lines, a.Global.Stats, opts.verbosity))
	}

	if opts.verbosity >= 1 && (len(a.Files) > 1 || opts.functions) {
		report.Sections = append(report.Sections, summarySection(a.Summary))
	}

	if len(a.Skipped) > 0 {
		rows := make([][]string, len(a.Skipped))
		for i, s := range a.Skipped {
			rows[i] = []string{s.Path, s.Reason}
		}
		report.Sections = append(report.Sections,
			output.NewTable("Skipped", []string{"Path", "Reason"}, rows, nil, nil))
	}
	return report
}

// scopeSection lays out one scope following the verbosity tiers: basic
// metrics, then per-category statistics, then Halstead counts with the
// occurrence tables.
func scopeSection(title string, m *metrics.Metrics, errMsg string, lines int, st *codestats.Statistics, verbosity int) *output.Section {
	s := &output.Section{Title: title}

	if m == nil {
		s.Fields = append(s.Fields,
			output.Field{Label: "Error", Value: errMsg, Rating: "error"},
			output.Field{Label: "Lines of Code", Value: fmt.Sprintf("%d", lines)},
		)
	} else {
		s.Fields = append(s.Fields, metricFields(m)...)
	}

	if st == nil {
		return s
	}
	counts := st.Snapshot()

	if verbosity >= 3 {
		s.Fields = append(s.Fields,
			output.Field{Label: "n1 (unique operators)", Value: fmt.Sprintf("%d", counts.UniqueOperators())},
			output.Field{Label: "n2 (unique operands)", Value: fmt.Sprintf("%d", counts.UniqueOperands())},
			output.Field{Label: "N1 (total operators)", Value: fmt.Sprintf("%d", counts.OperatorsTotal())},
			output.Field{Label: "N2 (total operands)", Value: fmt.Sprintf("%d", counts.OperandsTotal())},
		)
	}
	if verbosity >= 2 {
		s.Parts = append(s.Parts, categoryTable(counts))
	}
	if verbosity >= 3 {
		s.Parts = append(s.Parts,
			occurrenceTable("Operators", st, codestats.OperatorCategories()),
			occurrenceTable("Operands", st, codestats.OperandCategories()),
		)
	}
	return s
}

func metricFields(m *metrics.Metrics) []output.Field {
	rating := string(m.Rating())
	cyclomaticRating := "good"
	switch {
	case m.Cyclomatic > 20:
		cyclomaticRating = "poor"
	case m.Cyclomatic > 10:
		cyclomaticRating = "moderate"
	}
	return []output.Field{
		{Label: "Effort", Value: fmt.Sprintf("%.2f", m.Effort)},
		{Label: "Volume", Value: fmt.Sprintf("%.2f", m.Volume)},
		{Label: "Conditions", Value: fmt.Sprintf("%d", m.Conditions)},
		{Label: "Cyclomatic Complexity", Value: fmt.Sprintf("%d", m.Cyclomatic), Rating: cyclomaticRating},
		{Label: "Difficulty", Value: fmt.Sprintf("%.2f", m.Difficulty)},
		{Label: "Time Required", Value: fmt.Sprintf("%.2f seconds", m.Time)},
		{Label: "Bugs", Value: fmt.Sprintf("%.4f delivered", m.Bugs)},
		{Label: "Maintainability", Value: fmt.Sprintf("%.2f (%s)", m.Maintainability, rating), Rating: rating},
		{Label: "Lines of Code", Value: fmt.Sprintf("%d", m.LinesOfCode)},
	}
}

func categoryTable(counts codestats.Counts) *output.Table {
	var rows [][]string
	for _, c := range codestats.Categories() {
		total := counts.Total(c)
		if total == 0 {
			continue
		}
		rows = append(rows, []string{
			c.String(),
			c.Kind().String(),
			fmt.Sprintf("%d", total),
			fmt.Sprintf("%d", counts.UniqueCount(c)),
		})
	}
	footer := []string{
		"",
		"operators / operands",
		fmt.Sprintf("%d / %d", counts.OperatorsTotal(), counts.OperandsTotal()),
		fmt.Sprintf("%d / %d", counts.UniqueOperators(), counts.UniqueOperands()),
	}
	return output.NewTable("Statistics", []string{"Category", "Kind", "Total", "Unique"}, rows, footer, nil)
}

func occurrenceTable(title string, st *codestats.Statistics, cats []codestats.Category) *output.Table {
	var entries []codestats.TokenEntry
	for _, c := range cats {
		e, err := st.Entries(c)
		if err != nil {
			continue
		}
		entries = append(entries, e...)
	}
	slices.SortStableFunc(entries, func(a, b codestats.TokenEntry) int {
		return cmp.Compare(b.Count, a.Count)
	})

	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Text, e.Category.String(), fmt.Sprintf("%d", e.Count)}
	}
	return output.NewTable(title, []string{"Token", "Category", "Count"}, rows, nil, nil)
}

func summarySection(sum scope.Summary) *output.Section {
	over := "files"
	if sum.TotalFunctions > 0 {
		over = "functions"
	}
	return &output.Section{
		Title: "Summary",
		Fields: []output.Field{
			{Label: "Files", Value: fmt.Sprintf("%d", sum.TotalFiles)},
			{Label: "Functions", Value: fmt.Sprintf("%d", sum.TotalFunctions)},
			{Label: "Skipped", Value: fmt.Sprintf("%d", sum.SkippedFiles)},
			{Label: "Cached", Value: fmt.Sprintf("%d", sum.CachedFiles)},
			{Label: "Without metrics", Value: fmt.Sprintf("%d", sum.DegenerateUnits)},
			{Label: "Cyclomatic (" + over + ")", Value: fmt.Sprintf("mean %.2f, p50 %.0f, p90 %.0f, max %.0f",
				sum.Cyclomatic.Mean, sum.Cyclomatic.P50, sum.Cyclomatic.P90, sum.Cyclomatic.Max)},
			{Label: "Maintainability (" + over + ")", Value: fmt.Sprintf("mean %.2f, p50 %.2f, p90 %.2f, min %.2f",
				sum.Maintainability.Mean, sum.Maintainability.P50, sum.Maintainability.P90, sum.Maintainability.Min)},
		},
	}
}

// codeBlock renders a function's source.
type codeBlock struct {
	Language string `json:"language"`
	Source   string `json:"source"`
}

func (b *codeBlock) RenderData() any { return b }

func (b *codeBlock) RenderText(w io.Writer, colored bool) error {
	for i, line := range strings.Split(strings.TrimRight(b.Source, "\n"), "\n") {
		gutter := fmt.Sprintf("%4d |", i+1)
		if colored {
			gutter = color.HiBlackString(gutter)
		}
		fmt.Fprintf(w, "  %s %s\n", gutter, line)
	}
	return nil
}

func (b *codeBlock) RenderMarkdown(w io.Writer) error {
	fmt.Fprintf(w, "```%s\n%s\n```\n\n", b.Language, strings.TrimRight(b.Source, "\n"))
	return nil
}
