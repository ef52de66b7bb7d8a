// Package sandbox confines file actions to a set of granted directories.
package sandbox

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrDenied is returned for paths outside every granted root.
var ErrDenied = errors.New("path outside allowed directories")

// Scope is a grow-only set of canonical root directories. It is safe for
// concurrent use.
type Scope struct {
	mu    sync.RWMutex
	roots []string
}

// New creates a scope with no roots; nothing is allowed until Grant.
func New() *Scope {
	return &Scope{}
}

// NewWithRoots grants every dir, stopping at the first failure.
func NewWithRoots(dirs ...string) (*Scope, error) {
	s := New()
	for _, d := range dirs {
		if err := s.Grant(d); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Grant adds dir as a root. dir must exist and be a directory. Granting an
// existing root is a no-op.
func (s *Scope) Grant(dir string) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("grant %s: %w", dir, err)
	}
	real, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("grant %s: %w", dir, err)
	}
	info, err := os.Stat(real)
	if err != nil {
		return fmt.Errorf("grant %s: %w", dir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("grant %s: not a directory", dir)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range s.roots {
		if r == real {
			return nil
		}
	}
	s.roots = append(s.roots, real)
	return nil
}

// Roots returns a copy of the granted roots in grant order.
func (s *Scope) Roots() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.roots))
	copy(out, s.roots)
	return out
}

// Allowed reports whether path resolves under a granted root.
func (s *Scope) Allowed(path string) bool {
	return s.Check(path) == nil
}

// Check returns nil when path resolves under a granted root and an error
// wrapping ErrDenied otherwise. Any failure to resolve the path denies.
func (s *Scope) Check(path string) error {
	resolved, err := Resolve(path)
	if err != nil {
		return fmt.Errorf("%w: %s (%v)", ErrDenied, path, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, root := range s.roots {
		if within(root, resolved) {
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrDenied, path)
}

// Resolve returns the canonical absolute form of path. Relative paths are
// taken from the working directory. When path does not exist, the deepest
// existing ancestor is canonicalised and the remaining components are
// appended; if nothing resolves the cleaned absolute path is returned.
func Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("empty path")
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		return real, nil
	}

	dir := abs
	var rest []string
	for {
		parent := filepath.Dir(dir)
		if parent == dir {
			return abs, nil
		}
		rest = append([]string{filepath.Base(dir)}, rest...)
		dir = parent
		if real, err := filepath.EvalSymlinks(dir); err == nil {
			return filepath.Join(append([]string{real}, rest...)...), nil
		}
	}
}

// within compares whole path components, so /a/bc is not under /a/b.
func within(root, path string) bool {
	if path == root {
		return true
	}
	prefix := root
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return strings.HasPrefix(path, prefix)
}
