// Package mover implements the idempotent copy/move/checksum-gated file
// migration primitive used by stage 1, grounded on the original migration
// tool's migrate/migrate.rs (should_migrate_file, migrate_by_copy,
// migrate_by_move, migrate_content).
package mover

import (
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/progress"
)

// Options controls how a migration pass moves files.
type Options struct {
	// Move deletes the source after migrating (by rename, falling back to
	// copy+remove across filesystems). The zero value copies, preserving the
	// source's mtime on the destination.
	Move bool
	// Checksum switches the should-migrate predicate from size/mtime
	// comparison to a CRC32 content comparison.
	Checksum bool
}

// outcome classifies what a single migration did, mirroring the original's
// MigrationResult enum.
type outcome int

const (
	outcomeMigrated outcome = iota
	outcomeUpdated
	outcomeSkipped
)

// Results tallies a batch migration, with a Stringer matching the original's
// "Total: N (Migrated: N, Updated: N, Skipped: N)" summary line.
type Results struct {
	Total    int
	Migrated int
	Updated  int
	Skipped  int
}

func (r Results) String() string {
	return fmt.Sprintf("Total: %d (Migrated: %d, Updated: %d, Skipped: %d)", r.Total, r.Migrated, r.Updated, r.Skipped)
}

func (r *Results) add(o outcome) {
	r.Total++
	switch o {
	case outcomeMigrated:
		r.Migrated++
	case outcomeUpdated:
		r.Updated++
	case outcomeSkipped:
		r.Skipped++
	}
}

// PathMap maps source file paths to destination file paths.
type PathMap map[string]string

// MigrateFiles migrates every (src, dest) pair in paths, in parallel bounded
// by runtime.NumCPU, reporting one Tick per pair processed.
func MigrateFiles(paths PathMap, opts Options, reporter progress.Reporter) (Results, error) {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	type pair struct{ src, dest string }
	pairs := make([]pair, 0, len(paths))
	for src, dest := range paths {
		pairs = append(pairs, pair{src, dest})
	}

	outcomes := make([]outcome, len(pairs))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, p := range pairs {
		i, p := i, p
		g.Go(func() error {
			var (
				o   outcome
				err error
			)
			if opts.Move {
				o, err = migrateByMove(p.src, p.dest, opts.Checksum)
			} else {
				o, err = migrateByCopy(p.src, p.dest, opts.Checksum)
			}
			if err != nil {
				return err
			}
			outcomes[i] = o
			reporter.Tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Results{}, err
	}

	var results Results
	for _, o := range outcomes {
		results.add(o)
	}
	reporter.Done(results.String())
	return results, nil
}

// MigrateContent applies the same should-migrate predicate against an
// in-memory buffer rather than a source file on disk — used for extracted
// inline-XML content, which has no source mtime. Non-checksum mode compares
// only byte length against the destination.
func MigrateContent(content []byte, dest string, opts Options) (Results, error) {
	existed := fileExists(dest)
	migrate, err := shouldMigrateContent(content, dest, opts.Checksum)
	if err != nil {
		return Results{}, err
	}
	var results Results
	if !migrate {
		results.add(outcomeSkipped)
		return results, nil
	}
	if err := createParentDirs(dest); err != nil {
		return Results{}, err
	}
	tmp := tempName(dest)
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return Results{}, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return Results{}, fmt.Errorf("failed to write %s: %w", dest, err)
	}
	if existed {
		results.add(outcomeUpdated)
	} else {
		results.add(outcomeMigrated)
	}
	return results, nil
}

// MigrateContentBatch applies MigrateContent to every (dest -> content) entry
// in contents, in parallel, reporting one Tick per entry.
func MigrateContentBatch(contents map[string][]byte, opts Options, reporter progress.Reporter) (Results, error) {
	if reporter == nil {
		reporter = progress.Noop{}
	}
	type entry struct {
		dest    string
		content []byte
	}
	entries := make([]entry, 0, len(contents))
	for dest, content := range contents {
		entries = append(entries, entry{dest, content})
	}

	var mu sync.Mutex
	var total Results
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for _, e := range entries {
		e := e
		g.Go(func() error {
			r, err := MigrateContent(e.content, e.dest, opts)
			if err != nil {
				return err
			}
			mu.Lock()
			total.Total += r.Total
			total.Migrated += r.Migrated
			total.Updated += r.Updated
			total.Skipped += r.Skipped
			mu.Unlock()
			reporter.Tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Results{}, err
	}
	reporter.Done(total.String())
	return total, nil
}

func migrateByCopy(src, dest string, checksum bool) (outcome, error) {
	existed := fileExists(dest)
	migrate, err := shouldMigrateFile(src, dest, checksum)
	if err != nil {
		return 0, err
	}
	if !migrate {
		return outcomeSkipped, nil
	}
	if err := createParentDirs(dest); err != nil {
		return 0, err
	}
	if err := copyFile(src, dest); err != nil {
		return 0, fmt.Errorf("failed to copy %s to %s: %w", src, dest, err)
	}
	info, err := os.Stat(src)
	if err != nil {
		return 0, err
	}
	if err := os.Chtimes(dest, info.ModTime(), info.ModTime()); err != nil {
		return 0, fmt.Errorf("failed to preserve mtime on %s: %w", dest, err)
	}
	if existed {
		return outcomeUpdated, nil
	}
	return outcomeMigrated, nil
}

func migrateByMove(src, dest string, checksum bool) (outcome, error) {
	existed := fileExists(dest)
	migrate, err := shouldMigrateFile(src, dest, checksum)
	if err != nil {
		return 0, err
	}
	if !migrate {
		return outcomeSkipped, nil
	}
	if err := createParentDirs(dest); err != nil {
		return 0, err
	}
	if err := os.Rename(src, dest); err != nil {
		var linkErr *os.LinkError
		if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
			if copyErr := copyFile(src, dest); copyErr != nil {
				return 0, fmt.Errorf("failed to move/copy %s to %s: %w", src, dest, copyErr)
			}
			if rmErr := os.Remove(src); rmErr != nil {
				return 0, fmt.Errorf("failed to remove source %s after cross-device copy: %w", src, rmErr)
			}
		} else {
			return 0, fmt.Errorf("failed to move %s to %s: %w", src, dest, err)
		}
	}
	if existed {
		return outcomeUpdated, nil
	}
	return outcomeMigrated, nil
}

func shouldMigrateFile(src, dest string, checksum bool) (bool, error) {
	if !fileExists(dest) {
		return true, nil
	}
	if checksum {
		srcSum, err := crc32File(src)
		if err != nil {
			return false, err
		}
		destSum, err := crc32File(dest)
		if err != nil {
			return false, err
		}
		return srcSum != destSum, nil
	}
	srcInfo, err := os.Stat(src)
	if err != nil {
		return false, err
	}
	destInfo, err := os.Stat(dest)
	if err != nil {
		return false, err
	}
	return srcInfo.Size() != destInfo.Size() || !srcInfo.ModTime().Equal(destInfo.ModTime()), nil
}

func shouldMigrateContent(content []byte, dest string, checksum bool) (bool, error) {
	if !fileExists(dest) {
		return true, nil
	}
	if checksum {
		destSum, err := crc32File(dest)
		if err != nil {
			return false, err
		}
		return crc32.ChecksumIEEE(content) != destSum, nil
	}
	destInfo, err := os.Stat(dest)
	if err != nil {
		return false, err
	}
	return int64(len(content)) != destInfo.Size(), nil
}

func crc32File(path string) (uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	h := crc32.NewIEEE()
	if _, err := io.Copy(h, f); err != nil {
		return 0, err
	}
	return h.Sum32(), nil
}

// copyFile copies src to dest via a uuid-suffixed temp file in dest's
// directory, then renames it into place, so a crash or interrupted copy
// never leaves a partially-written dest behind.
func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	tmp := tempName(dest)
	out, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(tmp)
		return err
	}
	if err := out.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func tempName(dest string) string {
	return dest + "." + uuid.New().String() + ".tmp"
}

func createParentDirs(dest string) error {
	return os.MkdirAll(filepath.Dir(dest), 0o755)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
