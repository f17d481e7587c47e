// Package scanner walks a project tree and extracts rule references from
// every source file matching a spec's include/exclude globs.
//
// An in-memory overlay (unsaved editor buffers) takes precedence over disk
// content for matching paths, and overlay-only paths that match the globs are
// scanned even when no file exists on disk yet.
package scanner

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/c360studio/spectrace/extract"
	"github.com/c360studio/spectrace/rule"
)

// Result is the merged extraction output for one scan pass.
type Result struct {
	// References from all scanned files, in file order.
	References []rule.Reference
	// Warnings from all scanned files.
	Warnings []rule.ParseWarning
	// Files lists the scanned paths, relative to the root, sorted.
	Files []string
}

// Scanner walks one project root.
type Scanner struct {
	root    string
	logger  *slog.Logger
	ignores []string // compiled from .gitignore, applied on every scan
}

// New creates a scanner for the given root. The root's .gitignore, when
// present, contributes exclude patterns to every scan.
func New(root string, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{root: root, logger: logger}
	s.ignores = loadGitignore(filepath.Join(root, ".gitignore"))
	return s
}

// Scan walks the tree, applies the globs and the overlay, and extracts
// references from every matching file. Overlay keys are absolute paths.
func (s *Scanner) Scan(include, exclude []string, overlay map[string]string) (*Result, error) {
	exclude = append(append([]string{}, exclude...), s.ignores...)

	res := &Result{}
	seen := make(map[string]bool)

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(s.root, path)
		if relErr != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if excludedDir(rel, exclude) {
				return fs.SkipDir
			}
			return nil
		}
		if !matchAny(include, rel) || matchAny(exclude, rel) {
			return nil
		}

		content, ok := overlay[path]
		if !ok {
			data, readErr := os.ReadFile(path)
			if readErr != nil {
				return fmt.Errorf("read %s: %w", path, readErr)
			}
			content = string(data)
		}
		seen[rel] = true
		res.Files = append(res.Files, rel)

		out := extract.Extract(rel, content)
		res.References = append(res.References, out.References...)
		res.Warnings = append(res.Warnings, out.Warnings...)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Overlay entries for paths not on disk still participate when they
	// match the globs.
	s.scanOverlayOnly(include, exclude, overlay, seen, res)

	sort.Strings(res.Files)
	return res, nil
}

func (s *Scanner) scanOverlayOnly(include, exclude []string, overlay map[string]string, seen map[string]bool, res *Result) {
	paths := make([]string, 0, len(overlay))
	for path := range overlay {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		rel, err := filepath.Rel(s.root, path)
		if err != nil || strings.HasPrefix(rel, "..") {
			continue
		}
		rel = filepath.ToSlash(rel)
		if seen[rel] || !matchAny(include, rel) || matchAny(exclude, rel) {
			continue
		}
		seen[rel] = true
		res.Files = append(res.Files, rel)

		out := extract.Extract(rel, overlay[path])
		res.References = append(res.References, out.References...)
		res.Warnings = append(res.Warnings, out.Warnings...)
	}
}

// matchAny reports whether rel matches any of the doublestar patterns.
// An empty pattern list matches nothing for include and nothing for exclude,
// so callers pass explicit defaults.
func matchAny(patterns []string, rel string) bool {
	for _, p := range patterns {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// excludedDir reports whether a directory should be pruned. A "dir/**"
// pattern prunes "dir" itself.
func excludedDir(rel string, exclude []string) bool {
	for _, p := range exclude {
		if ok, err := doublestar.Match(p, rel); err == nil && ok {
			return true
		}
		if trimmed, found := strings.CutSuffix(p, "/**"); found {
			if ok, err := doublestar.Match(trimmed, rel); err == nil && ok {
				return true
			}
		}
	}
	return false
}

// loadGitignore translates the root .gitignore into exclude globs. Only the
// common line forms are handled: comments and blank lines are skipped,
// unanchored names match at any depth, trailing slashes mark directories.
// Negations are not supported.
func loadGitignore(path string) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var patterns []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") || strings.HasPrefix(line, "!") {
			continue
		}
		line = strings.TrimSuffix(line, "/")
		if strings.HasPrefix(line, "/") {
			line = strings.TrimPrefix(line, "/")
			patterns = append(patterns, line, line+"/**")
			continue
		}
		if strings.Contains(line, "/") {
			patterns = append(patterns, line, line+"/**")
			continue
		}
		patterns = append(patterns, "**/"+line, "**/"+line+"/**", line, line+"/**")
	}
	return patterns
}
