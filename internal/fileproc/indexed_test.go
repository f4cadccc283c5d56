package fileproc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/panbanda/c3ms/pkg/analyzer"
	"github.com/panbanda/c3ms/pkg/parser"
)

func createTestFile(t testing.TB, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to create test file: %v", err)
	}
	return path
}

// TestMapFilesIndexed verifies that indexed result collection preserves order.
func TestMapFilesIndexed(t *testing.T) {
	tmpDir := t.TempDir()

	files := make([]string, 100)
	for i := 0; i < 100; i++ {
		files[i] = createTestFile(t, tmpDir, fmt.Sprintf("file%d.c", i), "int main(void) { return 0; }")
	}

	ctx := context.Background()
	results, errs := MapFilesIndexed(ctx, files, func(p *parser.Parser, path string) (string, error) {
		return filepath.Base(path), nil
	})

	if errs.HasErrors() {
		t.Errorf("Unexpected errors: %v", errs)
	}

	if len(results) != len(files) {
		t.Errorf("Expected %d results, got %d", len(files), len(results))
	}

	for i, r := range results {
		expected := fmt.Sprintf("file%d.c", i)
		if r != expected {
			t.Errorf("Result[%d] = %q, want %q", i, r, expected)
		}
	}
}

func TestMapFilesIndexed_Empty(t *testing.T) {
	results, errs := MapFilesIndexed(context.Background(), nil, func(p *parser.Parser, path string) (int, error) {
		return 1, nil
	})
	if results != nil || errs != nil {
		t.Errorf("expected nil results and errors, got %v, %v", results, errs)
	}
}

// TestMapFilesIndexed_WithErrors verifies error handling preserves valid results
func TestMapFilesIndexed_WithErrors(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "file0.c", "int a;"),
		filepath.Join(tmpDir, "missing.c"),
		createTestFile(t, tmpDir, "file2.c", "int c;"),
		filepath.Join(tmpDir, "missing2.c"),
	}

	ctx := context.Background()
	results, errs := MapFilesIndexedN(ctx, files, 2, func(p *parser.Parser, path string) (string, error) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return filepath.Base(path), nil
	})

	if len(results) != len(files) {
		t.Fatalf("Expected %d results slots, got %d", len(files), len(results))
	}
	if results[1] != "" || results[3] != "" {
		t.Errorf("Error results should be empty, got %q and %q", results[1], results[3])
	}
	if results[0] != "file0.c" || results[2] != "file2.c" {
		t.Errorf("Valid results misplaced: %v", results)
	}

	if errs == nil || len(errs.Errors) != 2 {
		t.Fatalf("Expected 2 errors, got %v", errs)
	}
	if errs.Errors[0].Index != 1 || errs.Errors[1].Index != 3 {
		t.Errorf("Errors should be sorted by index: %+v", errs.Errors)
	}
	if !errors.Is(errs.Errors[0], os.ErrNotExist) {
		t.Errorf("ProcessingError should unwrap to the cause, got %v", errs.Errors[0].Err)
	}
}

func TestMapFilesIndexed_ParserAvailable(t *testing.T) {
	tmpDir := t.TempDir()
	files := []string{
		createTestFile(t, tmpDir, "a.c", "int add(int a, int b) { return a + b; }"),
		createTestFile(t, tmpDir, "b.cpp", "namespace n { int f() { return 1; } }"),
	}

	results, errs := MapFilesIndexed(context.Background(), files, func(p *parser.Parser, path string) (int, error) {
		content, err := os.ReadFile(path)
		if err != nil {
			return 0, err
		}
		result, err := p.Parse(content, parser.DetectLanguage(path), path)
		if err != nil {
			return 0, err
		}
		defer result.Close()
		return len(parser.ExtractUnits(result)), nil
	})
	if errs.HasErrors() {
		t.Fatalf("Unexpected errors: %v", errs)
	}
	if results[0] != 1 || results[1] != 1 {
		t.Errorf("results = %v, want [1 1]", results)
	}
}

// TestMapFilesIndexed_Progress verifies progress tracking with indexed results
func TestMapFilesIndexed_Progress(t *testing.T) {
	tmpDir := t.TempDir()

	files := []string{
		createTestFile(t, tmpDir, "a.c", "int a;"),
		createTestFile(t, tmpDir, "b.c", "int b;"),
		filepath.Join(tmpDir, "missing.c"),
	}

	progressCount := atomic.Int32{}
	tracker := analyzer.NewTracker(func(current, total int, path string) {
		progressCount.Add(1)
	})
	tracker.SetTotal(len(files))

	ctx := analyzer.WithTracker(context.Background(), tracker)
	_, _ = MapFilesIndexed(ctx, files, func(p *parser.Parser, path string) (string, error) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return filepath.Base(path), nil
	})

	// Failed files still count as processed
	if int(progressCount.Load()) != 3 {
		t.Errorf("Expected 3 progress callbacks, got %d", progressCount.Load())
	}
	if tracker.Current() != 3 {
		t.Errorf("tracker.Current() = %d, want 3", tracker.Current())
	}
	if tracker.Failed() != 1 {
		t.Errorf("tracker.Failed() = %d, want 1", tracker.Failed())
	}
}

func TestMapFilesIndexed_Cancellation(t *testing.T) {
	tmpDir := t.TempDir()
	files := make([]string, 20)
	for i := range files {
		files[i] = createTestFile(t, tmpDir, fmt.Sprintf("f%d.c", i), "int x;")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	_, errs := MapFilesIndexedN(ctx, files, 1, func(p *parser.Parser, path string) (int, error) {
		calls.Add(1)
		return 1, nil
	})

	if calls.Load() != 0 {
		t.Errorf("fn should not run after cancellation, ran %d times", calls.Load())
	}
	if errs == nil || len(errs.Errors) != len(files) {
		t.Fatalf("expected %d cancellation errors, got %v", len(files), errs)
	}
	for _, e := range errs.Errors {
		if !errors.Is(e, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", e.Err)
		}
	}
}

func TestProcessingErrors(t *testing.T) {
	var nilErrs *ProcessingErrors
	if nilErrs.HasErrors() {
		t.Error("nil ProcessingErrors should report no errors")
	}

	errs := &ProcessingErrors{}
	if errs.Error() != "no errors" {
		t.Errorf("Error() = %q", errs.Error())
	}

	errs.Add(0, "a.c", errors.New("boom"))
	if errs.Error() != "a.c: boom" {
		t.Errorf("Error() = %q", errs.Error())
	}

	errs.Add(1, "b.c", errors.New("bang"))
	if errs.Error() != "2 files failed to process (first: a.c: boom)" {
		t.Errorf("Error() = %q", errs.Error())
	}
}

func BenchmarkMapFilesIndexed(b *testing.B) {
	tmpDir := b.TempDir()

	fileCount := 100
	files := make([]string, fileCount)
	for i := 0; i < fileCount; i++ {
		files[i] = createTestFile(b, tmpDir, fmt.Sprintf("file%d.c", i), "int main(void) { return 0; }")
	}

	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		results, _ := MapFilesIndexed(ctx, files, func(p *parser.Parser, path string) (int, error) {
			return 1, nil
		})
		if len(results) != fileCount {
			b.Fatalf("Expected %d results, got %d", fileCount, len(results))
		}
	}
}
