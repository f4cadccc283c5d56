// Package testutil provides C/C++ fixtures and filesystem helpers shared by
// package tests.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// ClampC is a 13-line C file with two functions: add (lines 3-5, no
// branches) and clamp (lines 7-13, one if and one printf call).
const ClampC = `#include <stdio.h>

static int add(int a, int b) {
	return a + b;
}

int clamp(int v, int hi) {
	if (v > hi) {
		printf("clamped\n");
		return hi;
	}
	return v;
}
`

// VectorCPP uses standard-library types and calls from namespace std.
const VectorCPP = `#include <vector>
#include <algorithm>

int largest(const std::vector<int>& v) {
	if (v.empty()) {
		return 0;
	}
	return *std::max_element(v.begin(), v.end());
}
`

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("MkdirAll(%s) error: %v", dir, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error: %v", path, err)
	}
}

// WriteTemp writes content to name inside a fresh temporary directory and
// returns the file's path.
func WriteTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	WriteFile(t, path, content)
	return path
}

// CreateFileTree creates multiple files under root from a map of relative
// path to content.
func CreateFileTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		WriteFile(t, filepath.Join(root, name), content)
	}
}
