// Package cliutil holds the directory-existence validators shared by the CLI
// layer and the orchestrator, grounded on the original program's
// valid_fedora_directory / valid_source_directory checks.
package cliutil

import (
	"os"
	"path/filepath"

	"github.com/ndlib/fedora3-migrate/internal/errs"
)

// RequireDir returns a PathInvalid error unless path exists and is a directory.
func RequireDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &errs.PathInvalid{Path: path, Reason: "does not exist"}
	}
	if !info.IsDir() {
		return &errs.PathInvalid{Path: path, Reason: "is not a directory"}
	}
	return nil
}

// RequireFedoraHome validates that path looks like a Fedora 3 home directory:
// it and its data/objectStore, data/datastreamStore subdirectories must exist.
func RequireFedoraHome(path string) error {
	if err := RequireDir(path); err != nil {
		return err
	}
	if err := RequireDir(filepath.Join(path, "data", "objectStore")); err != nil {
		return err
	}
	return RequireDir(filepath.Join(path, "data", "datastreamStore"))
}

// RequireStagedHome validates that path looks like a stage-1 output
// directory: it and its objects, datastreams subdirectories must exist.
// Returns the two resolved subdirectories on success.
func RequireStagedHome(path string) (objectsDir, datastreamsDir string, err error) {
	if err = RequireDir(path); err != nil {
		return "", "", err
	}
	objectsDir = filepath.Join(path, "objects")
	if err = RequireDir(objectsDir); err != nil {
		return "", "", err
	}
	datastreamsDir = filepath.Join(path, "datastreams")
	if err = RequireDir(datastreamsDir); err != nil {
		return "", "", err
	}
	return objectsDir, datastreamsDir, nil
}
