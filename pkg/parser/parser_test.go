package parser

import (
	"testing"

	sitter "github.com/smacker/go-tree-sitter"
)

func TestNew(t *testing.T) {
	p := New()
	if p == nil {
		t.Fatal("New() returned nil")
	}
	if p.parser == nil {
		t.Error("parser field is nil")
	}
	p.Close()
}

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path string
		want Language
	}{
		// C
		{"main.c", LangC},
		{"include/header.h", LangC},

		// C++
		{"main.cpp", LangCPP},
		{"main.cc", LangCPP},
		{"main.cxx", LangCPP},
		{"main.c++", LangCPP},
		{"header.hpp", LangCPP},
		{"header.hxx", LangCPP},
		{"header.hh", LangCPP},
		{"impl.ipp", LangCPP},
		{"kernel.cu", LangCPP},

		// Unknown
		{"file.txt", LangUnknown},
		{"main.go", LangUnknown},
		{"file", LangUnknown},

		// Case insensitivity
		{"MAIN.C", LangC},
		{"Widget.CPP", LangCPP},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got := DetectLanguage(tt.path)
			if got != tt.want {
				t.Errorf("DetectLanguage(%q) = %v, want %v", tt.path, got, tt.want)
			}
			if IsSourceFile(tt.path) != (tt.want != LangUnknown) {
				t.Errorf("IsSourceFile(%q) disagrees with DetectLanguage", tt.path)
			}
		})
	}
}

func TestGetTreeSitterLanguage(t *testing.T) {
	for _, lang := range []Language{LangC, LangCPP} {
		t.Run(string(lang), func(t *testing.T) {
			tsLang, err := GetTreeSitterLanguage(lang)
			if err != nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned error: %v", lang, err)
			}
			if tsLang == nil {
				t.Errorf("GetTreeSitterLanguage(%v) returned nil", lang)
			}
		})
	}

	t.Run("unknown", func(t *testing.T) {
		_, err := GetTreeSitterLanguage(LangUnknown)
		if err == nil {
			t.Error("GetTreeSitterLanguage(LangUnknown) should return error")
		}
	})
}

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		source string
		lang   Language
	}{
		{
			name:   "c function",
			source: "#include <stdio.h>\n\nint main(void) {\n\tprintf(\"hello\\n\");\n\treturn 0;\n}\n",
			lang:   LangC,
		},
		{
			name:   "cpp class",
			source: "class Widget {\npublic:\n  int size() const { return n_; }\nprivate:\n  int n_;\n};\n",
			lang:   LangCPP,
		},
	}

	p := New()
	defer p.Close()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := p.Parse([]byte(tt.source), tt.lang, "test.file")
			if err != nil {
				t.Fatalf("Parse() error: %v", err)
			}
			defer result.Close()

			if result.Tree == nil {
				t.Fatal("result.Tree is nil")
			}
			if result.Language != tt.lang {
				t.Errorf("result.Language = %v, want %v", result.Language, tt.lang)
			}
			if string(result.Source) != tt.source {
				t.Error("result.Source doesn't match input")
			}
			if result.Path != "test.file" {
				t.Errorf("result.Path = %v, want test.file", result.Path)
			}
			if result.Tree.RootNode().ChildCount() == 0 {
				t.Error("root node has no children")
			}
		})
	}
}

func TestWalkTyped(t *testing.T) {
	p := New()
	defer p.Close()

	result, err := p.Parse([]byte("int main() {\n\tint x = 1;\n}\n"), LangC, "test.c")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	defer result.Close()

	found := make(map[string]bool)
	WalkTyped(result.Tree.RootNode(), result.Source, func(node *sitter.Node, nodeType string, source []byte) bool {
		found[nodeType] = true
		return true
	})
	for _, expected := range []string{"translation_unit", "function_definition", "primitive_type", "number_literal"} {
		if !found[expected] {
			t.Errorf("Expected node type %q not found", expected)
		}
	}
}

func TestGetNodeText(t *testing.T) {
	if got := GetNodeText(nil, []byte("x")); got != "" {
		t.Errorf("GetNodeText(nil) = %q, want empty", got)
	}
}
