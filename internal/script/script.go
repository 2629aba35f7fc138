// Package script embeds a per-object scripting layer on top of goja, an
// ECMAScript 5.1+ VM for Go, so operators can project CSVs the four fixed
// projectors in internal/csvproj don't cover. Grounded on the original
// migration tool's csv/scripts.rs (create_engine, parse_scripts,
// call_headers/call_rows/aggregate_rows, run_scripts), translated from
// Rhai's host-function registration to goja's Runtime.Set/ToValue API.
// goja itself is not grounded in any pack repo (none embed a scripting
// VM); it is the ecosystem's standard embeddable-JS choice and is adopted
// directly per spec §4.10's explicit requirement for a host-integrated
// script language — see DESIGN.md.
package script

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ndlib/fedora3-migrate/internal/walker"
)

func readFile(path string) (string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

const (
	scriptSuffix = ".script.js"
	moduleSuffix = ".module.js"
)

// IsScript reports whether path names a top-level script (defines headers()
// and rows(pid)), as opposed to an importable module.
func IsScript(path string) bool {
	return strings.HasSuffix(path, scriptSuffix)
}

// IsModule reports whether path names an importable module, resolved via
// require() from a script or another module.
func IsModule(path string) bool {
	return strings.HasSuffix(path, moduleSuffix)
}

// File is one script's source, read from disk but not yet compiled.
type File struct {
	Path   string
	Source string
}

// Stem returns the script's CSV output file stem: its base name with the
// ".script.js" suffix removed.
func (f File) Stem() string {
	return strings.TrimSuffix(filepath.Base(f.Path), scriptSuffix)
}

// LoadScripts walks dir and returns the source of every script file found,
// in path order. Module files are not included; load them separately with
// LoadModules for the require() resolver.
func LoadScripts(dir string) ([]File, error) {
	return loadFiles(dir, IsScript)
}

// LoadModules walks dir and returns the source of every module file found.
func LoadModules(dir string) ([]File, error) {
	return loadFiles(dir, IsModule)
}

func loadFiles(dir string, match func(string) bool) ([]File, error) {
	paths, err := walker.Files(dir, nil)
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)
	var files []File
	for _, p := range paths {
		if !match(p) {
			continue
		}
		src, err := readFile(p)
		if err != nil {
			return nil, err
		}
		files = append(files, File{Path: p, Source: src})
	}
	return files, nil
}
