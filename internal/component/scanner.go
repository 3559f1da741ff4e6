package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	ignore "github.com/sabhiram/go-gitignore"
	"golang.org/x/sync/errgroup"

	pkgerrors "github.com/vampirenirmal/docagent/pkg/docagent/errors"
)

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"venv":          {},
	".venv":         {},
	"env":           {},
	"build":         {},
	"dist":          {},
	".tox":          {},
	".mypy_cache":   {},
	".ruff_cache":   {},
	".pytest_cache": {},
	"egg-info":      {},
}

// Snapshot is one consistent parse of the repository. Lookups by qualified
// name survive re-parses; byte offsets and line numbers do not, which is why
// mutation always goes through the latest snapshot.
type Snapshot struct {
	Root       string
	Files      map[string]*FileInfo  // repo-relative path -> parse result
	Components map[string]*Component // qualified name -> component
}

// Scanner discovers and parses the Python files of one repository.
type Scanner struct {
	logger  *slog.Logger
	workers int
}

func NewScanner(logger *slog.Logger) *Scanner {
	return &Scanner{
		logger:  logger.With("component", "scanner"),
		workers: runtime.GOMAXPROCS(0),
	}
}

// Scan parses every discoverable Python file under root. Files that fail to
// parse are logged and skipped; the scan only fails when the root itself is
// unusable.
func (s *Scanner) Scan(ctx context.Context, root string) (*Snapshot, error) {
	paths, err := discover(root)
	if err != nil {
		return nil, fmt.Errorf("discovering files: %w", err)
	}

	s.logger.Info("repository scan started",
		"root", root,
		"file_count", len(paths),
		"workers", s.workers)

	snap := &Snapshot{
		Root:       root,
		Files:      make(map[string]*FileInfo, len(paths)),
		Components: map[string]*Component{},
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, s.workers)

	for _, rel := range paths {
		rel := rel
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return ctx.Err()
			}

			info, err := parsePath(root, rel)
			if err != nil {
				if errors.Is(err, pkgerrors.ErrParse) {
					s.logger.Warn("skipping unparseable file",
						"file", rel,
						"error", err)
					return nil
				}
				return err
			}

			mu.Lock()
			snap.Files[rel] = info
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.reindex()

	s.logger.Info("repository scan completed",
		"parsed_files", len(snap.Files),
		"components", len(snap.Components))

	return snap, nil
}

// Reparse re-reads and re-parses a single file, replacing its components in
// the snapshot. Components that disappeared stay gone; the caller remaps any
// pending work by qualified name.
func (s *Snapshot) Reparse(rel string) error {
	info, err := parsePath(s.Root, rel)
	if err != nil {
		return err
	}
	s.Files[rel] = info
	s.reindex()
	return nil
}

// Lookup returns the component with the given qualified name from the
// latest parse.
func (s *Snapshot) Lookup(id string) (*Component, bool) {
	c, ok := s.Components[id]
	return c, ok
}

// SortedIDs returns all component ids ordered by file path then start line,
// the canonical tie-break order.
func (s *Snapshot) SortedIDs() []string {
	ids := make([]string, 0, len(s.Components))
	for id := range s.Components {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, b := s.Components[ids[i]], s.Components[ids[j]]
		if a.File != b.File {
			return a.File < b.File
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return ids[i] < ids[j]
	})
	return ids
}

func (s *Snapshot) reindex() {
	s.Components = map[string]*Component{}
	for _, info := range s.Files {
		for _, c := range info.Components {
			s.Components[c.ID] = c
		}
	}
}

func parsePath(root, rel string) (*FileInfo, error) {
	data, err := os.ReadFile(filepath.Join(root, rel))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}
	return ParseFile(rel, data)
}

func discover(root string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	gi := loadGitignore(root)

	var results []string
	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}

		name := d.Name()
		if d.IsDir() {
			if path == root {
				return nil
			}
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") || filepath.Ext(name) != ".py" {
			return nil
		}
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		results = append(results, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(results)
	return results, nil
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}
