package script

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/dop251/goja"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/errs"
	"github.com/ndlib/fedora3-migrate/internal/identifier"
	"github.com/ndlib/fedora3-migrate/internal/object"
	"github.com/ndlib/fedora3-migrate/internal/progress"
)

// Headers is a script's declared header row plus the column its rows should
// be sorted by.
type Headers struct {
	Columns []string
	SortBy  string
}

func (h Headers) sortIndex() int {
	for i, c := range h.Columns {
		if c == h.SortBy {
			return i
		}
	}
	return 0
}

// Result is one script's computed output, ready to be written to CSV.
type Result struct {
	Stem    string
	Headers []string
	Rows    [][]string
}

// RunAll compiles and executes every script under scriptsDir against m,
// loading modules (if any) from modulesDir, and returns one Result per
// script. Scripts run concurrently with one another (bounded by
// runtime.NumCPU), each serially against every object in m in PID order,
// matching spec §4.10/§5 and the original's run_scripts/execute_script.
func RunAll(m *object.Map, scriptsDir, modulesDir string, reporter progress.Reporter) ([]Result, error) {
	if reporter == nil {
		reporter = progress.Noop{}
	}

	scripts, err := LoadScripts(scriptsDir)
	if err != nil {
		return nil, err
	}

	var modules []File
	if modulesDir != "" {
		modules, err = LoadModules(modulesDir)
		if err != nil {
			return nil, err
		}
	}

	programs := make([]*goja.Program, len(scripts))
	for i, f := range scripts {
		prog, err := goja.Compile(f.Path, f.Source, false)
		if err != nil {
			return nil, &errs.ScriptCompile{Path: f.Path, Err: err}
		}
		programs[i] = prog
	}

	results := make([]Result, len(scripts))
	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i := range scripts {
		i := i
		g.Go(func() error {
			res, err := executeScript(scripts[i], programs[i], m, newModuleCache(modules))
			if err != nil {
				return err
			}
			results[i] = res
			reporter.Tick()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	reporter.Done(fmt.Sprintf("executed %d scripts", len(scripts)))
	return results, nil
}

func executeScript(f File, prog *goja.Program, m *object.Map, mc *moduleCache) (Result, error) {
	rt := newRuntime(m, mc)
	if _, err := rt.RunProgram(prog); err != nil {
		return Result{}, &errs.ScriptRuntime{Path: f.Path, Err: err}
	}

	headers, err := callHeaders(rt, f.Path)
	if err != nil {
		return Result{}, err
	}

	rows, err := aggregateRows(rt, f.Path, m)
	if err != nil {
		return Result{}, err
	}

	idx := headers.sortIndex()
	sort.Slice(rows, func(i, j int) bool {
		return identifier.Less(rows[i][idx], rows[j][idx])
	})

	return Result{Stem: f.Stem(), Headers: headers.Columns, Rows: rows}, nil
}

func callHeaders(rt *goja.Runtime, path string) (Headers, error) {
	fn, ok := goja.AssertFunction(rt.Get("headers"))
	if !ok {
		return Headers{}, &errs.ScriptRuntime{Path: path, Err: fmt.Errorf("script does not define headers()")}
	}
	v, err := fn(goja.Undefined())
	if err != nil {
		return Headers{}, &errs.ScriptRuntime{Path: path, Err: err}
	}
	exported := v.Export()
	asMap, ok := exported.(map[string]any)
	if !ok {
		return Headers{}, &errs.ScriptRuntime{Path: path, Err: fmt.Errorf("headers() must return {columns, sort_by}")}
	}
	columns, err := stringSlice(asMap["columns"])
	if err != nil {
		return Headers{}, &errs.ScriptRuntime{Path: path, Err: err}
	}
	sortBy, _ := asMap["sort_by"].(string)
	if sortBy == "" && len(columns) > 0 {
		sortBy = columns[0]
	}
	return Headers{Columns: columns, SortBy: sortBy}, nil
}

func stringSlice(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected an array of column names")
	}
	out := make([]string, len(items))
	for i, item := range items {
		out[i] = fmt.Sprintf("%v", item)
	}
	return out, nil
}

// aggregateRows calls rows(pid) for every object in m, in PID order,
// dropping blank rows (the Go-native expression of the original's
// overloaded "+=" operator), de-duplicating identical rows, matching the
// original's aggregate_rows.
func aggregateRows(rt *goja.Runtime, path string, m *object.Map) ([][]string, error) {
	fn, ok := goja.AssertFunction(rt.Get("rows"))
	if !ok {
		return nil, &errs.ScriptRuntime{Path: path, Err: fmt.Errorf("script does not define rows(pid)")}
	}

	seen := make(map[string]struct{})
	var out [][]string
	for _, pid := range m.PIDs() {
		v, err := fn(goja.Undefined(), rt.ToValue(pid))
		if err != nil {
			return nil, &errs.ScriptRuntime{Path: path, Err: err}
		}
		exportedRows, ok := v.Export().([]any)
		if !ok {
			continue
		}
		for _, r := range exportedRows {
			row, err := toRow(r)
			if err != nil {
				return nil, &errs.ScriptRuntime{Path: path, Err: err}
			}
			if isBlankRow(row) {
				continue
			}
			key := strings.Join(row, "\x1f")
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, row)
		}
	}
	return out, nil
}

func toRow(v any) ([]string, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("each row must be an array of values")
	}
	row := make([]string, len(items))
	for i, item := range items {
		if item == nil {
			continue
		}
		row[i] = strings.TrimSpace(fmt.Sprintf("%v", item))
	}
	return row, nil
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if cell != "" {
			return false
		}
	}
	return true
}

// WriteResult writes a script Result as CSV to w.
func WriteResult(res Result, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write(res.Headers); err != nil {
		return err
	}
	for _, row := range res.Rows {
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteResultsToDir writes every Result to <dir>/<stem>.csv. Each result is
// written to its own temp file first; only once every result has been
// written successfully are the temp files renamed into place, so a failure
// partway through leaves none of this batch's CSVs at their final path.
func WriteResultsToDir(results []Result, dir string) error {
	tmpPaths := make(map[string]string, len(results))
	for _, res := range results {
		dest := filepath.Join(dir, res.Stem+".csv")
		tmp := dest + "." + uuid.New().String() + ".tmp"
		f, err := os.Create(tmp)
		if err != nil {
			removeAll(tmpPaths)
			return err
		}
		err = WriteResult(res, f)
		closeErr := f.Close()
		if err != nil {
			os.Remove(tmp)
			removeAll(tmpPaths)
			return err
		}
		if closeErr != nil {
			os.Remove(tmp)
			removeAll(tmpPaths)
			return closeErr
		}
		tmpPaths[dest] = tmp
	}

	for dest, tmp := range tmpPaths {
		if err := os.Rename(tmp, dest); err != nil {
			return fmt.Errorf("failed to finalize %s: %w", dest, err)
		}
	}
	return nil
}

func removeAll(tmpPaths map[string]string) {
	for _, tmp := range tmpPaths {
		os.Remove(tmp)
	}
}
