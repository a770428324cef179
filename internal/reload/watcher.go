// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Crossweb Contributors

package reload

import (
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gobwas/glob"

	cwerr "github.com/crossweb-dev/crossweb/pkg/errors"
)

// DefaultIgnore skips VCS metadata, editor droppings and build output.
var DefaultIgnore = []string{".git", "**/.git", "*.swp", "*~", "**/node_modules", "*.so"}

type ignoreRule struct {
	pattern string
	glob    glob.Glob
}

// Watcher detects source changes by polling modification times.
//
// Ignore patterns use gobwas/glob with '/' as the segment separator and are
// matched against the slash-separated path relative to its root and
// against the base name: '*' stays within one segment, '**' crosses them.
// An ignored directory is not descended into.
type Watcher struct {
	roots  []string
	ignore []ignoreRule

	mu       sync.Mutex
	baseline time.Time
	primed   bool
}

// NewWatcher compiles the ignore patterns. Empty patterns are skipped.
func NewWatcher(roots []string, ignore []string) (*Watcher, error) {
	w := &Watcher{roots: append([]string(nil), roots...)}
	for i, pattern := range ignore {
		if pattern == "" {
			continue
		}
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, cwerr.Wrapf(err, cwerr.CodeReloadWatchFailure, "ignore pattern %d (%q)", i, pattern)
		}
		w.ignore = append(w.ignore, ignoreRule{pattern: pattern, glob: g})
	}
	return w, nil
}

// Roots returns the watched roots.
func (w *Watcher) Roots() []string { return append([]string(nil), w.roots...) }

func (w *Watcher) ignored(rel string) bool {
	base := filepath.Base(rel)
	for _, rule := range w.ignore {
		if rule.glob.Match(rel) || rule.glob.Match(base) {
			return true
		}
	}
	return false
}

// Latest returns the newest modification time under all roots. Missing
// roots are skipped; other walk errors are returned.
func (w *Watcher) Latest() (time.Time, error) {
	var latest time.Time
	for _, root := range w.roots {
		err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if path != root {
				rel, relErr := filepath.Rel(root, path)
				if relErr == nil && w.ignored(filepath.ToSlash(rel)) {
					if d.IsDir() {
						return filepath.SkipDir
					}
					return nil
				}
			}
			info, err := d.Info()
			if err != nil {
				if os.IsNotExist(err) {
					return nil
				}
				return err
			}
			if mt := info.ModTime(); mt.After(latest) {
				latest = mt
			}
			return nil
		})
		if err != nil {
			return time.Time{}, cwerr.Wrap(err, cwerr.CodeReloadWatchFailure, "scanning sources", cwerr.FieldPath(root))
		}
	}
	return latest, nil
}

// Changed reports whether anything changed since the previous call. The
// first call only records the baseline. Scan errors report no change.
func (w *Watcher) Changed() bool {
	latest, err := w.Latest()
	if err != nil {
		return false
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.primed {
		w.primed = true
		w.baseline = latest
		return false
	}
	if latest.After(w.baseline) {
		w.baseline = latest
		return true
	}
	return false
}

// Reset forgets the baseline so the next Changed call primes again.
func (w *Watcher) Reset() {
	w.mu.Lock()
	w.primed = false
	w.baseline = time.Time{}
	w.mu.Unlock()
}
