// Package fileproc provides concurrent file processing utilities.
package fileproc

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"
	"sync"

	"github.com/panbanda/c3ms/pkg/analyzer"
	"github.com/panbanda/c3ms/pkg/parser"
	"github.com/sourcegraph/conc/pool"
)

// ProcessingError represents an error that occurred while processing a file.
type ProcessingError struct {
	Index int
	Path  string
	Err   error
}

func (e ProcessingError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e ProcessingError) Unwrap() error {
	return e.Err
}

// ProcessingErrors collects multiple file processing errors.
type ProcessingErrors struct {
	Errors []ProcessingError
	mu     sync.Mutex
}

// Add appends an error to the collection (thread-safe).
func (e *ProcessingErrors) Add(index int, path string, err error) {
	e.mu.Lock()
	e.Errors = append(e.Errors, ProcessingError{Index: index, Path: path, Err: err})
	e.mu.Unlock()
}

// HasErrors returns true if any errors were collected.
func (e *ProcessingErrors) HasErrors() bool {
	if e == nil {
		return false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.Errors) > 0
}

// Error implements the error interface.
func (e *ProcessingErrors) Error() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d files failed to process (first: %v)", len(e.Errors), e.Errors[0])
}

func (e *ProcessingErrors) sort() {
	e.mu.Lock()
	defer e.mu.Unlock()
	slices.SortFunc(e.Errors, func(a, b ProcessingError) int {
		return cmp.Compare(a.Index, b.Index)
	})
}

// DefaultWorkerMultiplier is the multiplier applied to NumCPU for worker count.
// 2x is optimal for mixed I/O and CGO workloads.
const DefaultWorkerMultiplier = 2

// MapFilesIndexed processes files in parallel with a dedicated parser per
// call and returns results in input order. A failed file leaves the zero
// value at its index and is reported in the returned errors, sorted by index.
// Progress is tracked via the context's analyzer.Tracker.
func MapFilesIndexed[T any](ctx context.Context, files []string, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	return MapFilesIndexedN(ctx, files, 0, fn)
}

// MapFilesIndexedN is MapFilesIndexed with a configurable worker count.
// If maxWorkers is <= 0, defaults to 2x NumCPU. Files not started before
// the context is canceled are reported with the context error.
func MapFilesIndexedN[T any](ctx context.Context, files []string, maxWorkers int, fn func(*parser.Parser, string) (T, error)) ([]T, *ProcessingErrors) {
	if len(files) == 0 {
		return nil, nil
	}

	if maxWorkers <= 0 {
		maxWorkers = runtime.NumCPU() * DefaultWorkerMultiplier
	}

	tracker := analyzer.TrackerFromContext(ctx)
	results := make([]T, len(files))
	errs := &ProcessingErrors{}

	p := pool.New().WithMaxGoroutines(maxWorkers).WithContext(ctx)
	fail := func(i int, path string, err error) {
		errs.Add(i, path, err)
		if tracker != nil {
			tracker.Fail(path)
		}
	}

	for i, path := range files {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				fail(i, path, err)
				return nil
			}

			psr := parser.New()
			defer psr.Close()

			result, err := fn(psr, path)
			if err != nil {
				fail(i, path, err)
				return nil // Don't stop pool on individual file errors
			}
			results[i] = result
			if tracker != nil {
				tracker.Tick(path)
			}
			return nil
		})
	}
	_ = p.Wait() // Errors are already captured in errs

	if !errs.HasErrors() {
		return results, nil
	}
	errs.sort()
	return results, errs
}
