// Package walker recursively enumerates regular files under a directory tree,
// canonicalizing paths and never following symlinks, fanned out across
// goroutines bounded by runtime.NumCPU. Grounded on the original migration
// tool's files()/identify_files() walkdir+rayon pass, expressed with
// filepath.WalkDir and golang.org/x/sync/errgroup.
package walker

import (
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/progress"
)

// Files returns the canonical paths of every regular file found recursively
// under root, reporting one Tick per discovered file. Symlinks are never
// followed. A filesystem error during the walk is fatal and returned.
func Files(root string, reporter progress.Reporter) ([]string, error) {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var (
		mu      sync.Mutex
		results []string
	)

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())

	for _, entry := range entries {
		entry := entry
		g.Go(func() error {
			found, err := walkOne(filepath.Join(root, entry.Name()), reporter)
			if err != nil {
				return err
			}
			mu.Lock()
			results = append(results, found...)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	reporter.Done("file walk complete")
	return results, nil
}

func walkOne(start string, reporter progress.Reporter) ([]string, error) {
	var found []string
	err := filepath.WalkDir(start, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type()&os.ModeSymlink != 0 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		resolved, err := filepath.EvalSymlinks(path)
		if err != nil {
			return err
		}
		found = append(found, resolved)
		reporter.Tick()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return found, nil
}
