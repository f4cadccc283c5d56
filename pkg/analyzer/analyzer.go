// Package analyzer defines the contract shared by file analyzers and the
// progress tracker they report through.
package analyzer

import "context"

// FileAnalyzer measures a set of source files.
type FileAnalyzer[T any] interface {
	// Analyze processes files and returns the combined result. Progress is
	// reported through a Tracker carried by ctx, if any.
	Analyze(ctx context.Context, files []string) (T, error)

	// Close releases any resources held by the analyzer.
	Close()
}
