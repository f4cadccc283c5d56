// Package source provides file content to the analyzers.
package source

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
)

// ErrNotFound is returned by MemorySource for unknown addresses.
var ErrNotFound = errors.New("source not found")

// ContentSource provides file content from a specific source.
type ContentSource interface {
	// Read returns the content of the file at path.
	Read(path string) ([]byte, error)
}

// FilesystemSource reads files from the local filesystem.
type FilesystemSource struct {
	// MaxSize rejects files larger than this many bytes. Zero means no limit.
	MaxSize int64
}

// NewFilesystem creates a source that reads from the filesystem.
func NewFilesystem() *FilesystemSource {
	return &FilesystemSource{}
}

// Read implements ContentSource. Directories and files above MaxSize are
// rejected before any content is read.
func (f *FilesystemSource) Read(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, &fs.PathError{Op: "read", Path: path, Err: errors.New("is a directory")}
	}
	if f.MaxSize > 0 && info.Size() > f.MaxSize {
		return nil, &fs.PathError{Op: "read", Path: path, Err: fmt.Errorf("file size %d exceeds limit %d", info.Size(), f.MaxSize)}
	}
	return os.ReadFile(path)
}

// MemorySource holds transient content addressed by name.
// It is safe for concurrent use by multiple goroutines.
type MemorySource struct {
	mu      sync.RWMutex
	content map[string][]byte
}

// NewMemory creates an empty in-memory source.
func NewMemory() *MemorySource {
	return &MemorySource{content: make(map[string][]byte)}
}

// Put stores a copy of content under address.
func (m *MemorySource) Put(address string, content []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.content[address] = bytes.Clone(content)
}

// Read implements ContentSource.
func (m *MemorySource) Read(address string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	content, ok := m.content[address]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address)
	}
	return content, nil
}

// Remove deletes address. Removing an unknown address is a no-op.
func (m *MemorySource) Remove(address string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.content, address)
}

// Len returns the number of stored addresses.
func (m *MemorySource) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.content)
}

// Addresses returns the stored addresses in sorted order.
func (m *MemorySource) Addresses() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.content))
	for a := range m.content {
		out = append(out, a)
	}
	sort.Strings(out)
	return out
}

// UnitAddress builds the address of a function extracted from path. The
// column keeps overloads declared on the same line apart.
func UnitAddress(path, name string, line, column uint32) string {
	return fmt.Sprintf("%s#%s@%d:%d", path, name, line, column)
}

// CountLines returns the number of newline-delimited lines in content.
// A final line without a trailing newline still counts.
func CountLines(content []byte) int {
	n := bytes.Count(content, []byte{'\n'})
	if len(content) > 0 && content[len(content)-1] != '\n' {
		n++
	}
	return n
}
