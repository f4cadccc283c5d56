package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyze() string {
	return `Measures Halstead software-science metrics, cyclomatic complexity and the maintainability index of C and C++ source files.

USE WHEN:
- Deciding which files or functions of a C/C++ code base to refactor first
- Comparing the complexity of two implementations of the same routine
- Checking how much of a file is API calls versus user-defined code

INTERPRETING RESULTS:
- Maintainability >= 85: easy to maintain; 65-85: moderate; < 65: hard to maintain
- Cyclomatic complexity > 10: many branches, consider splitting the function
- Difficulty grows with reuse of operands; effort and time grow with both size and difficulty
- Bugs estimates delivered defects (effort^(2/3) / 3000); compare relatively, not absolutely
- A scope with an error field had no operators, no operands or no lines and carries no metrics
- skipped lists inputs that could not be read or parsed

METRICS RETURNED:
- Per-scope: operators/operands unique and total (n1, n2, N1, N2), vocabulary, length, volume, difficulty, effort, time, bugs, cyclomatic, maintainability, lines_of_code
- Per-file: lines, lines outside functions (function mode), functions
- Global: totals over every analyzed file
- Summary: distributions (mean, stddev, min, max, p50, p90) of cyclomatic and maintainability`
}

func describeMeasureSnippet() string {
	return `Measures a C or C++ snippet passed inline instead of reading files.

USE WHEN:
- Evaluating a function before it is written to disk
- Comparing alternative versions of a routine during a review

INTERPRETING RESULTS:
- Same thresholds as analyze_complexity
- Snippets without complete statements may be degenerate and carry an error instead of metrics

METRICS RETURNED:
- The same per-scope metrics as analyze_complexity for the snippet as one file, plus one entry per function when function_metrics is set`
}
