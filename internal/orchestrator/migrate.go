// Package orchestrator wires the leaf packages (walker, identifier codec,
// mover, foxml/inline parsers, object graph, CSV projectors, script engine)
// into the three top-level operations the CLI exposes, grounded on the
// original migration tool's migrate/lib.rs (migrate_data_from_fedora) and
// csv/lib.rs (generate_csvs/execute_scripts).
package orchestrator

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/foxml"
	"github.com/ndlib/fedora3-migrate/internal/identifier"
	"github.com/ndlib/fedora3-migrate/internal/inline"
	"github.com/ndlib/fedora3-migrate/internal/mover"
	"github.com/ndlib/fedora3-migrate/internal/progress"
	"github.com/ndlib/fedora3-migrate/internal/walker"
)

const (
	objectStoreDir     = "data/objectStore"
	datastreamStoreDir = "data/datastreamStore"
)

// MigrateOptions configures stage 1: reorganizing a Fedora 3 home directory
// into the staged objects/datastreams tree stage 2 reads.
type MigrateOptions struct {
	FedoraHome string
	Output     string
	Move       bool
	Checksum   bool
}

// MigrateResult reports what each of stage 1's three phases did.
type MigrateResult struct {
	Objects     mover.Results
	Datastreams mover.Results
	Inline      mover.Results
	// Orphaned lists managed-datastream source files present in the Fedora
	// datastream store but referenced by no migrated object's FOXML.
	Orphaned []string
}

// RunMigrate performs stage 1 in the original's three-phase order: object
// files, then managed datastreams, then inline datastreams.
func RunMigrate(opts MigrateOptions, reporter progress.Reporter) (*MigrateResult, error) {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	objectsDir := filepath.Join(opts.Output, "objects")
	datastreamsDir := filepath.Join(opts.Output, "datastreams")
	moverOpts := mover.Options{Move: opts.Move, Checksum: opts.Checksum}

	objResults, err := migrateObjectFiles(
		filepath.Join(opts.FedoraHome, objectStoreDir), objectsDir, moverOpts, reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate object files: %w", err)
	}

	objects, err := parseMigratedObjects(objectsDir, reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to parse migrated object files: %w", err)
	}

	dsResults, orphaned, err := migrateManagedDatastreams(
		objects, filepath.Join(opts.FedoraHome, datastreamStoreDir), datastreamsDir, moverOpts, reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate managed datastreams: %w", err)
	}

	inlineResults, err := migrateInlineDatastreams(objects, datastreamsDir, moverOpts.Checksum, reporter)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate inline datastreams: %w", err)
	}

	return &MigrateResult{
		Objects:     objResults,
		Datastreams: dsResults,
		Inline:      inlineResults,
		Orphaned:    orphaned,
	}, nil
}

// migrateObjectFiles finds every object file under srcDir, decodes its PID
// from its Fedora-encoded filename, and migrates it to <destDir>/<pid>.xml.
// Files whose names don't match the expected pattern are skipped and
// reported, never fatal for the batch.
func migrateObjectFiles(srcDir, destDir string, opts mover.Options, reporter progress.Reporter) (mover.Results, error) {
	files, err := walker.Files(srcDir, reporter)
	if err != nil {
		return mover.Results{}, err
	}

	paths := make(mover.PathMap, len(files))
	var unidentified []string
	for _, f := range files {
		id, ok := identifier.ObjectFromFilename(filepath.Base(f))
		if !ok {
			unidentified = append(unidentified, f)
			continue
		}
		paths[f] = filepath.Join(destDir, id.PID+".xml")
	}
	if len(unidentified) > 0 {
		slog.Warn("found object store files that could not be identified", "count", len(unidentified), "files", strings.Join(unidentified, ", "))
	}

	return mover.MigrateFiles(paths, opts, reporter)
}

// parsedObject pairs a migrated object's deserialized FOXML with the path it
// was read from, since inline extraction needs to reopen the raw file.
type parsedObject struct {
	Foxml *foxml.Foxml
	Path  string
}

// parseMigratedObjects re-reads every just-migrated object file, keyed by
// PID, so managed/inline datastream migration can consult each object's
// declared datastreams. Parse failures are collected and logged, never
// fatal for the rest of the batch.
func parseMigratedObjects(objectsDir string, reporter progress.Reporter) (map[string]parsedObject, error) {
	paths, err := walker.Files(objectsDir, reporter)
	if err != nil {
		return nil, err
	}

	results := make([]*foxml.Foxml, len(paths))
	failures := make([]string, len(paths))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			f, err := foxml.FromPath(p)
			if err != nil {
				failures[i] = fmt.Sprintf("%s: %v", p, err)
				return nil
			}
			results[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	objects := make(map[string]parsedObject, len(paths))
	var failed []string
	for i, f := range results {
		if f != nil {
			objects[f.PID] = parsedObject{Foxml: f, Path: paths[i]}
		} else if failures[i] != "" {
			failed = append(failed, failures[i])
		}
	}
	if len(failed) > 0 {
		slog.Warn("some migrated object files could not be parsed", "count", len(failed), "errors", strings.Join(failed, "; "))
	}
	return objects, nil
}

// migrateManagedDatastreams migrates every CONTROL_GROUP="M" datastream
// version referenced by objects, reporting (but not migrating) any
// datastream-store file with no corresponding FOXML reference.
func migrateManagedDatastreams(
	objects map[string]parsedObject,
	srcDir, destDir string,
	opts mover.Options,
	reporter progress.Reporter,
) (mover.Results, []string, error) {
	srcFiles, err := walker.Files(srcDir, reporter)
	if err != nil {
		return mover.Results{}, nil, err
	}

	srcByID := make(map[identifier.Datastream]string, len(srcFiles))
	var unidentified []string
	for _, f := range srcFiles {
		id, ok := identifier.DatastreamFromFilename(filepath.Base(f))
		if !ok {
			unidentified = append(unidentified, f)
			continue
		}
		srcByID[id] = f
	}
	if len(unidentified) > 0 {
		slog.Warn("found datastream store files that could not be identified", "count", len(unidentified), "files", strings.Join(unidentified, ", "))
	}

	expected := managedDatastreamDestinations(objects, destDir)

	paths := make(mover.PathMap, len(expected))
	for id, dest := range expected {
		if src, ok := srcByID[id]; ok {
			paths[src] = dest
		}
	}

	var orphaned []string
	for id, src := range srcByID {
		if _, ok := expected[id]; !ok {
			orphaned = append(orphaned, fmt.Sprintf("%s %s %s (%s)", id.PID, id.DSID, id.Version, src))
		}
	}
	sort.Strings(orphaned)
	if len(orphaned) > 0 {
		slog.Warn("found orphaned managed datastreams with no referencing object", "count", len(orphaned), "datastreams", strings.Join(orphaned, "; "))
	}

	results, err := mover.MigrateFiles(paths, opts, reporter)
	return results, orphaned, err
}

// managedDatastreamDestinations computes the staged destination path for
// every CONTROL_GROUP="M" version across every object, keyed by the
// datastream identifier the source Fedora filename decodes to.
func managedDatastreamDestinations(objects map[string]parsedObject, destDir string) map[identifier.Datastream]string {
	dest := make(map[identifier.Datastream]string)
	for pid, obj := range objects {
		for _, ds := range obj.Foxml.Datastreams {
			if ds.ControlGroup != foxml.ControlGroupManaged {
				continue
			}
			for _, v := range ds.Versions {
				id := identifier.Datastream{PID: pid, DSID: ds.ID, Version: v.ID}
				fileName := identifier.VersionFileName(pid, ds.ID, v.ID, v.Label, v.MimeType)
				dest[id] = filepath.Join(destDir, id.Path(), fileName)
			}
		}
	}
	return dest
}

// migrateInlineDatastreams re-reads each migrated object file's FOXML and
// extracts every CONTROL_GROUP="X" version's inline content, writing it to
// the staged tree as its own file.
func migrateInlineDatastreams(objects map[string]parsedObject, destDir string, checksum bool, reporter progress.Reporter) (mover.Results, error) {
	contents := make(map[string][]byte)
	var mu sync.Mutex

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for pid, obj := range objects {
		pid, obj := pid, obj
		g.Go(func() error {
			versions, err := extractInlineVersions(obj.Path)
			if err != nil {
				return fmt.Errorf("failed to extract inline content for object %s: %w", pid, err)
			}
			mu.Lock()
			for _, v := range versions {
				fileName := identifier.VersionFileName(v.PID, v.DSID, v.Version, "", "application/xml")
				dest := filepath.Join(destDir, v.Path(), fileName)
				contents[dest] = v.Content
			}
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return mover.Results{}, err
	}

	return mover.MigrateContentBatch(contents, mover.Options{Checksum: checksum}, reporter)
}

// extractInlineVersions re-reads the object's migrated FOXML file and pulls
// out every inline ("X" control group) datastream version's serialized
// content. inline.Extract streams the document token by token, so it needs
// the raw file reopened rather than the already-parsed *foxml.Foxml.
func extractInlineVersions(path string) ([]inline.Version, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return inline.Extract(f)
}
