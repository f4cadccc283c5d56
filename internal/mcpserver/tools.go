package mcpserver

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/c3ms/internal/output"
	"github.com/panbanda/c3ms/internal/scanner"
	"github.com/panbanda/c3ms/pkg/analyzer/scope"
	"github.com/panbanda/c3ms/pkg/source"
)

// DefaultMaxTokens bounds a tool response when the caller sets no budget.
const DefaultMaxTokens = 32000

// AnalyzeInput is the input of the analyze_complexity tool.
type AnalyzeInput struct {
	Paths           []string `json:"paths,omitempty" jsonschema:"Files or directories to analyze. Defaults to the current directory."`
	FunctionMetrics bool     `json:"function_metrics,omitempty" jsonschema:"Measure every function separately in addition to files."`
	IncludeTokens   bool     `json:"include_tokens,omitempty" jsonschema:"Include per-category token tallies for every scope."`
	Format          string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
	MaxTokens       int      `json:"max_tokens,omitempty" jsonschema:"Approximate response budget. Per-function detail is dropped when exceeded. Default 32000."`
}

// SnippetInput is the input of the measure_snippet tool.
type SnippetInput struct {
	Code            string `json:"code" jsonschema:"C or C++ source to measure."`
	Language        string `json:"language,omitempty" jsonschema:"Source language: c or cpp. Default cpp."`
	FunctionMetrics bool   `json:"function_metrics,omitempty" jsonschema:"Measure every function of the snippet separately."`
	IncludeTokens   bool   `json:"include_tokens,omitempty" jsonschema:"Include per-category token tallies."`
	Format          string `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

// analyzeResult is the payload returned by both tools.
type analyzeResult struct {
	Files     []scope.FileResult `json:"files"`
	Global    scope.GlobalResult `json:"global"`
	Skipped   []scope.Skipped    `json:"skipped,omitempty"`
	Summary   scope.Summary      `json:"summary"`
	Truncated bool               `json:"truncated,omitempty"`
}

func getFormat(s string) output.Format {
	switch output.ParseFormat(s) {
	case output.FormatJSON:
		return output.FormatJSON
	case output.FormatYAML:
		return output.FormatYAML
	case output.FormatMarkdown:
		return output.FormatMarkdown
	default:
		return output.FormatTOON
	}
}

func formatOutput(data any, format output.Format) (string, error) {
	if format == output.FormatMarkdown {
		out, err := output.MarshalTOON(data)
		if err != nil {
			return "", err
		}
		return "```\n" + string(out) + "\n```", nil
	}
	var buf bytes.Buffer
	if err := output.NewWriterFormatter(format, &buf, false).Output(data); err != nil {
		return "", err
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// estimateTokens approximates the LLM token count of text at four bytes
// per token.
func estimateTokens(text string) int {
	return (len(text) + 3) / 4
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	text, err := formatOutput(data, format)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) newAnalyzer(functionMetrics bool, opts ...scope.Option) *scope.Analyzer {
	base := []scope.Option{
		scope.WithFunctionMetrics(functionMetrics),
		scope.WithCatalog(s.catalog),
		scope.WithLogger(s.logger),
		scope.WithWorkers(s.config.Analysis.Workers),
		scope.WithMaxFileSize(s.config.Analysis.MaxFileSize),
	}
	return scope.New(append(base, opts...)...)
}

// buildResult copies the analysis into a response payload. Token tallies
// are stripped unless requested.
func buildResult(a *scope.Analysis, includeTokens bool) *analyzeResult {
	res := &analyzeResult{
		Files:   make([]scope.FileResult, len(a.Files)),
		Global:  a.Global,
		Skipped: a.Skipped,
		Summary: a.Summary,
	}
	copy(res.Files, a.Files)
	if includeTokens {
		return res
	}
	res.Global.Stats = nil
	for i := range res.Files {
		f := &res.Files[i]
		f.Stats = nil
		if len(f.Functions) == 0 {
			continue
		}
		fns := make([]scope.FunctionResult, len(f.Functions))
		copy(fns, f.Functions)
		for j := range fns {
			fns[j].Stats = nil
		}
		f.Functions = fns
	}
	return res
}

// fitBudget drops per-function detail, then per-file token tallies, until
// the rendered result fits in maxTokens.
func fitBudget(res *analyzeResult, format output.Format, maxTokens int) (string, error) {
	text, err := formatOutput(res, format)
	if err != nil || estimateTokens(text) <= maxTokens {
		return text, err
	}

	res.Truncated = true
	for i := range res.Files {
		res.Files[i].Functions = nil
	}
	if text, err = formatOutput(res, format); err != nil || estimateTokens(text) <= maxTokens {
		return text, err
	}

	for i := range res.Files {
		res.Files[i].Stats = nil
	}
	return formatOutput(res, format)
}

func (s *Server) handleAnalyze(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	paths := input.Paths
	if len(paths) == 0 {
		paths = []string{"."}
	}
	format := getFormat(input.Format)
	maxTokens := input.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	files, err := scanner.NewScanner(s.config).Expand(paths, true)
	if err != nil {
		return toolError(err.Error())
	}
	if len(files) == 0 {
		return toolError("no source files found")
	}

	a := s.newAnalyzer(input.FunctionMetrics || s.config.Analysis.FunctionMetrics, scope.WithCache(s.cache))
	defer a.Close()

	analysis, err := a.Analyze(ctx, files)
	if err != nil {
		return toolError(err.Error())
	}
	if !analysis.Succeeded() {
		return toolError(fmt.Sprintf("none of the %d input(s) could be analyzed", len(files)))
	}

	text, err := fitBudget(buildResult(analysis, input.IncludeTokens), format, maxTokens)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func (s *Server) handleMeasureSnippet(ctx context.Context, req *mcp.CallToolRequest, input SnippetInput) (*mcp.CallToolResult, any, error) {
	if strings.TrimSpace(input.Code) == "" {
		return toolError("code is required")
	}

	var name string
	switch strings.ToLower(input.Language) {
	case "c":
		name = "snippet.c"
	case "", "cpp", "c++", "cxx":
		name = "snippet.cpp"
	default:
		return toolError(fmt.Sprintf("unsupported language %q", input.Language))
	}

	mem := source.NewMemory()
	mem.Put(name, []byte(input.Code))

	a := s.newAnalyzer(input.FunctionMetrics, scope.WithSource(mem))
	defer a.Close()

	analysis, err := a.Analyze(ctx, []string{name})
	if err != nil {
		return toolError(err.Error())
	}
	if !analysis.Succeeded() {
		return toolError(analysis.Skipped[0].Reason)
	}
	return toolResult(buildResult(analysis, input.IncludeTokens), getFormat(input.Format))
}
