package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/csvproj"
	"github.com/ndlib/fedora3-migrate/internal/object"
	"github.com/ndlib/fedora3-migrate/internal/progress"
	"github.com/ndlib/fedora3-migrate/internal/script"
)

// CSVOptions configures the fixed CSV projection (stage 2).
type CSVOptions struct {
	Staged string
	Output string
	PIDs   []string
}

// RunCSV parses the staged tree into an object graph and writes the four
// fixed CSV files, one per projector, concurrently.
func RunCSV(opts CSVOptions, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	objectsDir := filepath.Join(opts.Staged, "objects")
	datastreamsDir := filepath.Join(opts.Staged, "datastreams")
	object.SetDirectories(objectsDir, datastreamsDir)

	m, err := object.BuildMap(objectsDir, datastreamsDir, opts.PIDs, reporter)
	if err != nil {
		return fmt.Errorf("failed to build object graph: %w", err)
	}

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", opts.Output, err)
	}

	projectors := map[string]func(*object.Map, *os.File) error{
		"nodes.csv":           func(m *object.Map, f *os.File) error { return csvproj.WriteNodes(m, f) },
		"media.csv":           func(m *object.Map, f *os.File) error { return csvproj.WriteMedia(m, f) },
		"media_revisions.csv": func(m *object.Map, f *os.File) error { return csvproj.WriteMediaRevisions(m, f) },
		"files.csv":           func(m *object.Map, f *os.File) error { return csvproj.WriteFiles(m, f) },
	}

	names := make([]string, 0, len(projectors))
	for name := range projectors {
		names = append(names, name)
	}

	// Each projector writes to its own temp file first; only once every
	// projector has succeeded are the temp files renamed into place, so a
	// fatal error from one projector (e.g. WriteNodes hitting an unknown
	// content model) never leaves a partial or stale file at a fixed CSV's
	// final path.
	var tmpMu sync.Mutex
	tmpPaths := make(map[string]string, len(projectors))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, name := range names {
		name := name
		write := projectors[name]
		g.Go(func() error {
			dest := filepath.Join(opts.Output, name)
			tmp := dest + "." + uuid.New().String() + ".tmp"
			f, err := os.Create(tmp)
			if err != nil {
				return fmt.Errorf("failed to create %s: %w", tmp, err)
			}
			err = write(m, f)
			closeErr := f.Close()
			if err != nil {
				os.Remove(tmp)
				return fmt.Errorf("failed to write %s: %w", dest, err)
			}
			if closeErr != nil {
				os.Remove(tmp)
				return closeErr
			}
			tmpMu.Lock()
			tmpPaths[dest] = tmp
			tmpMu.Unlock()
			reporter.Tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		tmpMu.Lock()
		for _, tmp := range tmpPaths {
			os.Remove(tmp)
		}
		tmpMu.Unlock()
		return err
	}

	for dest, tmp := range tmpPaths {
		if err := os.Rename(tmp, dest); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", dest, err)
		}
	}
	reporter.Done("wrote nodes.csv, media.csv, media_revisions.csv, files.csv")
	return nil
}

// ScriptsOptions configures the user-script CSV projection (stage 2).
type ScriptsOptions struct {
	Staged  string
	Output  string
	Scripts string
	Modules string
	PIDs    []string
}

// RunScripts parses the staged tree into an object graph and runs every
// script under opts.Scripts against it, writing one CSV per script.
func RunScripts(opts ScriptsOptions, reporter progress.Reporter) error {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	objectsDir := filepath.Join(opts.Staged, "objects")
	datastreamsDir := filepath.Join(opts.Staged, "datastreams")
	object.SetDirectories(objectsDir, datastreamsDir)

	m, err := object.BuildMap(objectsDir, datastreamsDir, opts.PIDs, reporter)
	if err != nil {
		return fmt.Errorf("failed to build object graph: %w", err)
	}

	results, err := script.RunAll(m, opts.Scripts, opts.Modules, reporter)
	if err != nil {
		return fmt.Errorf("failed to run scripts: %w", err)
	}

	if err := os.MkdirAll(opts.Output, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", opts.Output, err)
	}

	return script.WriteResultsToDir(results, opts.Output)
}
