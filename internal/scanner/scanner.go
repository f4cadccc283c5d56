// Package scanner expands command-line inputs into C/C++ source files.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
	"github.com/panbanda/c3ms/pkg/config"
	"github.com/panbanda/c3ms/pkg/parser"
)

// Scanner finds source files in a directory.
type Scanner struct {
	config  *config.Config
	matcher gitignore.Matcher
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg}
}

// Expand turns inputs into the list of files to analyze, in input order and
// without duplicates. Directories are walked when recursive is set and kept
// as-is otherwise, so the analyzer reports them as unavailable. Explicitly
// named files are never filtered.
func (s *Scanner) Expand(inputs []string, recursive bool) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) {
		key := filepath.Clean(path)
		if !seen[key] {
			seen[key] = true
			files = append(files, path)
		}
	}

	for _, in := range inputs {
		info, err := os.Stat(in)
		if err != nil || !info.IsDir() || !recursive {
			add(in)
			continue
		}
		found, err := s.ScanDir(in)
		if err != nil {
			return nil, err
		}
		for _, f := range found {
			add(f)
		}
	}
	return files, nil
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir, err := filepath.Abs(start)
	if err != nil {
		return ""
	}
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// loadExcludePatterns builds one matcher from the configured patterns and
// directories plus, when enabled, every .gitignore of the enclosing
// repository.
func (s *Scanner) loadExcludePatterns(root string) {
	var patterns []gitignore.Pattern

	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}
	for _, dir := range s.config.Exclude.Dirs {
		patterns = append(patterns, gitignore.ParsePattern(strings.TrimSuffix(dir, "/")+"/", nil))
	}

	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			if gitPatterns, err := gitignore.ReadPatterns(osfs.New(gitRoot), nil); err == nil {
				// Repository patterns are relative to the git root; rebase
				// them onto the scanned directory.
				prefix := relParts(gitRoot, root)
				for _, p := range gitPatterns {
					patterns = append(patterns, rebased{Pattern: p, prefix: prefix})
				}
			}
		}
	}

	s.matcher = nil
	if len(patterns) > 0 {
		s.matcher = gitignore.NewMatcher(patterns)
	}
}

// rebased evaluates a repository pattern against paths relative to a
// subdirectory of the repository.
type rebased struct {
	gitignore.Pattern
	prefix []string
}

func (r rebased) Match(path []string, isDir bool) gitignore.MatchResult {
	return r.Pattern.Match(append(slices.Clone(r.prefix), path...), isDir)
}

func relParts(base, target string) []string {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return nil
	}
	rel, err := filepath.Rel(base, absTarget)
	if err != nil || rel == "." {
		return nil
	}
	return strings.Split(rel, string(filepath.Separator))
}

// isExcluded checks if a path matches any exclusion pattern.
func (s *Scanner) isExcluded(relPath string, isDir bool) bool {
	if !isDir && s.config.ShouldExclude(relPath) {
		return true
	}
	if s.matcher == nil {
		return false
	}
	return s.matcher.Match(strings.Split(relPath, string(filepath.Separator)), isDir)
}

// ScanDir recursively scans a directory for C/C++ source files.
// Symlinks resolving outside root are skipped; paths that cannot be read are
// returned so they surface as skipped inputs.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	s.loadExcludePatterns(root)

	walkErr := filepath.WalkDir(root, s.visit(root, absRoot, &files))
	return files, walkErr
}

// visit returns the walk callback collecting source files under root.
// Paths the walk cannot read are collected as-is so the analyzer reports
// them as unavailable instead of dropping them.
func (s *Scanner) visit(root, absRoot string, files *[]string) fs.WalkDirFunc {
	return func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			*files = append(*files, path)
			return nil
		}

		relPath, _ := filepath.Rel(root, path)
		if relPath == "." {
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
		}

		if d.IsDir() {
			if s.isExcluded(relPath, true) {
				return filepath.SkipDir
			}
			return nil
		}

		if !s.isExcluded(relPath, false) && parser.IsSourceFile(path) {
			*files = append(*files, path)
		}
		return nil
	}
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)

	// Add separator to prevent "/root2" matching "/root"
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}
