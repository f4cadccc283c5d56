package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input string
		want  Format
	}{
		{"text", FormatText},
		{"TEXT", FormatText},
		{"json", FormatJSON},
		{"markdown", FormatMarkdown},
		{"md", FormatMarkdown},
		{"yaml", FormatYAML},
		{"yml", FormatYAML},
		{"toon", FormatTOON},
		{"", FormatText},
		{"invalid", FormatText},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseFormat(tt.input); got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatStructured(t *testing.T) {
	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOON} {
		if !f.Structured() {
			t.Errorf("%s should be structured", f)
		}
	}
	for _, f := range []Format{FormatText, FormatMarkdown} {
		if f.Structured() {
			t.Errorf("%s should not be structured", f)
		}
	}
}

func TestNewFormatterWithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "report.json")
	f, err := NewFormatter(FormatJSON, path, true)
	if err != nil {
		t.Fatalf("NewFormatter() error: %v", err)
	}
	if f.colored {
		t.Error("file output should never be colored")
	}
	if err := f.Output(map[string]int{"files": 2}); err != nil {
		t.Fatalf("Output() error: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"files": 2`) {
		t.Errorf("file content = %s", data)
	}
}

func TestNewFormatterInvalidPath(t *testing.T) {
	if _, err := NewFormatter(FormatText, "/nonexistent/dir/out.txt", false); err == nil {
		t.Error("NewFormatter() should fail for an invalid path")
	}
}

type sample struct {
	Name   string  `json:"name"`
	Volume float64 `json:"volume"`
	Skip   string  `json:"-"`
}

func TestOutputStructuredFormatsUseJSONNames(t *testing.T) {
	data := sample{Name: "add", Volume: 18.5, Skip: "hidden"}

	var buf bytes.Buffer
	if err := NewWriterFormatter(FormatYAML, &buf, false).Output(data); err != nil {
		t.Fatalf("yaml Output() error: %v", err)
	}
	var decoded map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("invalid yaml: %v\n%s", err, buf.String())
	}
	if decoded["name"] != "add" || decoded["volume"] != 18.5 {
		t.Errorf("yaml = %v", decoded)
	}
	if _, ok := decoded["skip"]; ok {
		t.Error("json-ignored fields should not appear")
	}

	buf.Reset()
	if err := NewWriterFormatter(FormatTOON, &buf, false).Output(data); err != nil {
		t.Fatalf("toon Output() error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "name: add") || !strings.Contains(out, "volume: 18.5") {
		t.Errorf("toon = %s", out)
	}
	if strings.Contains(out, "hidden") {
		t.Error("json-ignored fields should not appear in toon output")
	}

	buf.Reset()
	if err := NewWriterFormatter(FormatJSON, &buf, false).Output(data); err != nil {
		t.Fatalf("json Output() error: %v", err)
	}
	var js map[string]any
	if err := json.Unmarshal(buf.Bytes(), &js); err != nil {
		t.Fatalf("invalid json: %v", err)
	}
	if js["name"] != "add" {
		t.Errorf("json = %v", js)
	}
}

func TestOutputRenderable(t *testing.T) {
	table := NewTable("Operators", []string{"Token", "Count"}, [][]string{{"+", "3"}, {"||", "1"}}, nil, map[string]int{"+": 3})

	var buf bytes.Buffer
	if err := NewWriterFormatter(FormatText, &buf, false).Output(table); err != nil {
		t.Fatalf("text Output() error: %v", err)
	}
	text := buf.String()
	if !strings.Contains(text, "Operators") || !strings.Contains(text, "||") {
		t.Errorf("text = %s", text)
	}

	buf.Reset()
	if err := NewWriterFormatter(FormatMarkdown, &buf, false).Output(table); err != nil {
		t.Fatalf("markdown Output() error: %v", err)
	}
	md := buf.String()
	if !strings.Contains(md, "### Operators") || !strings.Contains(md, `| \|\| | 1 |`) {
		t.Errorf("markdown = %s", md)
	}

	buf.Reset()
	if err := NewWriterFormatter(FormatJSON, &buf, false).Output(table); err != nil {
		t.Fatalf("json Output() error: %v", err)
	}
	if strings.TrimSpace(buf.String()) != "{\n  \"+\": 3\n}" {
		t.Errorf("json should use the table's data, got %s", buf.String())
	}
}

func TestOutputRawMarkdown(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriterFormatter(FormatMarkdown, &buf, false).Output([]int{1, 2}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "```json\n") || !strings.HasSuffix(out, "```\n") {
		t.Errorf("raw markdown should be fenced, got %q", out)
	}
}

func TestTableRenderDataFromRows(t *testing.T) {
	table := NewTable("", []string{"Category", "Total"}, [][]string{{"type", "4"}, {"operator"}}, nil, nil)
	data, ok := table.RenderData().([]map[string]string)
	if !ok || len(data) != 2 {
		t.Fatalf("RenderData() = %#v", table.RenderData())
	}
	if data[0]["Category"] != "type" || data[0]["Total"] != "4" {
		t.Errorf("row 0 = %v", data[0])
	}
	if _, ok := data[1]["Total"]; ok {
		t.Error("short rows should omit missing cells")
	}
}

func TestSectionRender(t *testing.T) {
	s := &Section{
		Title: "Global",
		Fields: []Field{
			{Label: "Volume", Value: "18.09"},
			{Label: "Maintainability", Value: "120.50", Rating: "good"},
		},
		Parts: []Renderable{NewTable("", []string{"A"}, [][]string{{"x"}}, nil, nil)},
	}

	var buf bytes.Buffer
	if err := s.RenderText(&buf, false); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	for _, want := range []string{"Global\n======", "Volume:", "18.09", "Maintainability:  120.50"} {
		if !strings.Contains(text, want) {
			t.Errorf("text missing %q:\n%s", want, text)
		}
	}

	buf.Reset()
	if err := s.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), "## Global") || !strings.Contains(buf.String(), "- **Volume**: 18.09") {
		t.Errorf("markdown = %s", buf.String())
	}
}

func TestReportRender(t *testing.T) {
	r := &Report{
		Title: "c3ms",
		Sections: []Renderable{
			&Section{Title: "One", Fields: []Field{{Label: "a", Value: "1"}}},
			&Section{Title: "Two", Fields: []Field{{Label: "b", Value: "2"}}},
		},
	}

	var buf bytes.Buffer
	if err := r.RenderText(&buf, false); err != nil {
		t.Fatal(err)
	}
	text := buf.String()
	if strings.Index(text, "One") > strings.Index(text, "Two") {
		t.Error("sections should render in order")
	}

	buf.Reset()
	if err := r.RenderMarkdown(&buf); err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(buf.String(), "# c3ms\n") {
		t.Errorf("markdown = %s", buf.String())
	}

	data, ok := r.RenderData().(map[string]any)
	if !ok || data["title"] != "c3ms" || len(data["sections"].([]any)) != 2 {
		t.Errorf("RenderData() = %#v", r.RenderData())
	}
}

func TestFormatterMessages(t *testing.T) {
	var buf bytes.Buffer
	f := NewWriterFormatter(FormatText, &buf, false)
	f.Message(SeverityWarning, "skipped %s", "a.c")
	f.Message(SeverityError, "failed %d", 2)
	f.Message(SeverityInfo, "done")

	out := buf.String()
	for _, want := range []string{"warning: skipped a.c\n", "error: failed 2\n", "done\n"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q: %q", want, out)
		}
	}
}

func TestRatingColor(t *testing.T) {
	for _, rating := range []string{"good", "moderate", "poor", "other"} {
		if got := RatingColor(rating, "42"); !strings.Contains(got, "42") {
			t.Errorf("RatingColor(%q) = %q", rating, got)
		}
	}
}
