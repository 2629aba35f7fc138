package mover

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/fedora3-migrate/internal/progress"
)

func setupSrcDest(t *testing.T) (src, dest string) {
	t.Helper()
	root := t.TempDir()
	src = filepath.Join(root, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("hello world"), 0o644))
	dest = filepath.Join(root, "nested", "dest.txt")
	return src, dest
}

func TestMigrateByCopyFirstRunMigrates(t *testing.T) {
	src, dest := setupSrcDest(t)
	results, err := MigrateFiles(PathMap{src: dest}, Options{}, progress.Noop{})
	require.NoError(t, err)
	assert.Equal(t, 1, results.Migrated)
	assert.FileExists(t, dest)
	assert.FileExists(t, src) // copy, not move: source remains.
}

func TestIdempotentMigrationSkipsSecondRun(t *testing.T) {
	src, dest := setupSrcDest(t)
	_, err := MigrateFiles(PathMap{src: dest}, Options{}, progress.Noop{})
	require.NoError(t, err)

	before, err := os.Stat(dest)
	require.NoError(t, err)

	results, err := MigrateFiles(PathMap{src: dest}, Options{}, progress.Noop{})
	require.NoError(t, err)
	assert.Equal(t, results.Skipped, results.Total)

	after, err := os.Stat(dest)
	require.NoError(t, err)
	assert.Equal(t, before.ModTime(), after.ModTime())
	assert.Equal(t, before.Size(), after.Size())
}

func TestChecksumModeEquivalence(t *testing.T) {
	src, dest := setupSrcDest(t)
	_, err := MigrateFiles(PathMap{src: dest}, Options{}, progress.Noop{})
	require.NoError(t, err)

	results, err := MigrateFiles(PathMap{src: dest}, Options{Checksum: true}, progress.Noop{})
	require.NoError(t, err)
	assert.Equal(t, results.Skipped, results.Total)

	srcBytes, err := os.ReadFile(src)
	require.NoError(t, err)
	destBytes, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, srcBytes, destBytes)
}

func TestMigrateByMoveRemovesSource(t *testing.T) {
	src, dest := setupSrcDest(t)
	_, err := MigrateFiles(PathMap{src: dest}, Options{Move: true}, progress.Noop{})
	require.NoError(t, err)
	assert.FileExists(t, dest)
	assert.NoFileExists(t, src)
}

func TestMigrateContentByteLengthComparison(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "inline.xml")
	results, err := MigrateContent([]byte("<x/>"), dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, results.Migrated)

	results, err = MigrateContent([]byte("<x/>"), dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, results.Skipped)

	results, err = MigrateContent([]byte("<x>longer</x>"), dest, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, results.Updated)
}
