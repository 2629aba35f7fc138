// Package object assembles the object graph a staged tree encodes: for
// every object file under <root>/objects, its properties, its RELS-EXT
// derived content model / parents / weight, and its datastream versions
// resolved to the staged file each one lives at. Grounded on the original
// migration tool's csv/object.rs (Object::new, ObjectMap::from_path and its
// objects()/versions()/latest_versions()/previous_versions() iterators).
package object

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ndlib/fedora3-migrate/internal/errs"
	"github.com/ndlib/fedora3-migrate/internal/foxml"
	"github.com/ndlib/fedora3-migrate/internal/identifier"
	"github.com/ndlib/fedora3-migrate/internal/progress"
	"github.com/ndlib/fedora3-migrate/internal/relsext"
	"github.com/ndlib/fedora3-migrate/internal/walker"
)

// userMap translates specific Fedora owner ids to the target system's user
// accounts; unmapped owners pass through unchanged.
var userMap = map[string]string{
	"fedoraAdmin": "admin",
}

// contentModelModel is the well-known model identifying a Fedora content
// model object itself (as opposed to an instance of one).
const contentModelModel = "fedora-system:ContentModel-3.0"

// DatastreamVersion is one version of a datastream, resolved to its staged
// file path when that file was found under the datastreams root.
type DatastreamVersion struct {
	ID       string
	Label    string
	Created  time.Time
	MimeType string
	Size     *int64
	Path     string // "" if no staged file matched this version.
}

// Datastream is a named content stream with its versions sorted oldest to
// newest (alphanumerically by version id).
type Datastream struct {
	ID       string
	State    foxml.DatastreamState
	Versions []DatastreamVersion
}

// Latest returns the most recent version (last after sorting), or the zero
// value and false if the datastream has no versions.
func (d Datastream) Latest() (DatastreamVersion, bool) {
	if len(d.Versions) == 0 {
		return DatastreamVersion{}, false
	}
	return d.Versions[len(d.Versions)-1], true
}

// Previous returns every version except the latest.
func (d Datastream) Previous() []DatastreamVersion {
	if len(d.Versions) < 2 {
		return nil
	}
	return d.Versions[:len(d.Versions)-1]
}

// Object is one Fedora digital object, reduced to what the CSV projectors
// and script engine need: its properties, its RELS-EXT derived model,
// parents and weight, and its datastreams.
type Object struct {
	PID          string
	State        foxml.ObjectState
	Owner        string
	Label        string
	Model        string
	Parents      []string
	Weight       *int
	CreatedDate  time.Time
	ModifiedDate time.Time
	Datastreams  []Datastream
}

// Datastream looks up a datastream by id.
func (o Object) Datastream(dsid string) (Datastream, bool) {
	for _, d := range o.Datastreams {
		if d.ID == dsid {
			return d, true
		}
	}
	return Datastream{}, false
}

func (o Object) isSystemObject() bool {
	return strings.HasPrefix(o.PID, "fedora-system:")
}

func (o Object) isContentModel() bool {
	return o.Model == contentModelModel
}

// Map is a read-only, sorted view of every object survived from a staged
// tree. Built once by BuildMap and never mutated afterward, so a pointer to
// it can be shared across goroutines without a mutex (spec's read-only
// Arc<RwLock<ObjectMap>> expressed as an immutable Go value).
type Map struct {
	pids    []string
	objects map[string]*Object
}

// PIDs returns every surviving object's PID in alphanumeric order.
func (m *Map) PIDs() []string { return m.pids }

// Get looks up an object by PID.
func (m *Map) Get(pid string) (*Object, bool) {
	o, ok := m.objects[pid]
	return o, ok
}

// Objects returns every surviving object, in PID order.
func (m *Map) Objects() []*Object {
	out := make([]*Object, 0, len(m.pids))
	for _, pid := range m.pids {
		out = append(out, m.objects[pid])
	}
	return out
}

// VersionRef pairs a version with its owning object and datastream.
type VersionRef struct {
	Object     *Object
	Datastream Datastream
	Version    DatastreamVersion
}

// Versions returns every (object, datastream, version) triple, in PID then
// datastream-id then version-id order.
func (m *Map) Versions() []VersionRef {
	var out []VersionRef
	for _, o := range m.Objects() {
		for _, d := range o.Datastreams {
			for _, v := range d.Versions {
				out = append(out, VersionRef{Object: o, Datastream: d, Version: v})
			}
		}
	}
	return out
}

// LatestVersions returns one (object, datastream, latest version) triple per
// datastream.
func (m *Map) LatestVersions() []VersionRef {
	var out []VersionRef
	for _, o := range m.Objects() {
		for _, d := range o.Datastreams {
			v, ok := d.Latest()
			if !ok {
				continue
			}
			out = append(out, VersionRef{Object: o, Datastream: d, Version: v})
		}
	}
	return out
}

// PreviousVersions returns every version that is not its datastream's
// latest, one triple per superseded version.
func (m *Map) PreviousVersions() []VersionRef {
	var out []VersionRef
	for _, o := range m.Objects() {
		for _, d := range o.Datastreams {
			for _, v := range d.Previous() {
				out = append(out, VersionRef{Object: o, Datastream: d, Version: v})
			}
		}
	}
	return out
}

// datastreamIndex maps a (pid, dsid, version) triple to the staged file
// path a walk of the datastreams root found for it.
type datastreamIndex map[identifier.Datastream]string

func buildDatastreamIndex(datastreamsDir string, reporter progress.Reporter) (datastreamIndex, error) {
	paths, err := walker.Files(datastreamsDir, reporter)
	if err != nil {
		return nil, err
	}
	idx := make(datastreamIndex, len(paths))
	for _, p := range paths {
		idx[identifier.FromStagedPath(p)] = p
	}
	return idx, nil
}

// BuildMap reads every object file under objectsDir, resolves each
// datastream version against the files found under datastreamsDir, applies
// the system-object / content-model / missing-model filters, and returns
// the resulting read-only Map. If pids is non-empty, only objects whose PID
// appears in pids are parsed at all.
func BuildMap(objectsDir, datastreamsDir string, pids []string, reporter progress.Reporter) (*Map, error) {
	objectPaths, err := walker.Files(objectsDir, reporter)
	if err != nil {
		return nil, err
	}
	objectPaths = filterObjectPaths(objectPaths, pids)

	dsIndex, err := buildDatastreamIndex(datastreamsDir, reporter)
	if err != nil {
		return nil, err
	}

	results := make([]*Object, len(objectPaths))
	warnings := make([]string, len(objectPaths))

	g := new(errgroup.Group)
	g.SetLimit(runtime.NumCPU())
	for i, path := range objectPaths {
		i, path := i, path
		g.Go(func() error {
			f, err := foxml.FromPath(path)
			if err != nil {
				warnings[i] = fmt.Sprintf("%s: %v", path, &errs.FoxmlParse{Path: path, Err: err})
				return nil
			}
			obj, err := newObject(f, dsIndex)
			if err != nil {
				var unsupported *errs.UnknownControlGroup
				if errors.As(err, &unsupported) {
					// Unlike RelsExtParse (scoped to the individual object),
					// an E/R control group aborts the whole run: fedora3
					// doesn't support externally referenced or redirected
					// content, so the run cannot proceed as if nothing
					// happened.
					return err
				}
				warnings[i] = fmt.Sprintf("%s: %v", path, err)
				return nil
			}
			results[i] = obj
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	for _, w := range warnings {
		if w != "" {
			slog.Warn("skipped object", "reason", w)
		}
	}

	objects := make(map[string]*Object)
	for _, obj := range results {
		if obj == nil {
			continue
		}
		if obj.isSystemObject() || obj.isContentModel() || obj.Model == "" {
			continue
		}
		objects[obj.PID] = obj
	}

	pidList := make([]string, 0, len(objects))
	for pid := range objects {
		pidList = append(pidList, pid)
	}
	sort.Slice(pidList, func(i, j int) bool { return identifier.Less(pidList[i], pidList[j]) })

	if reporter != nil {
		reporter.Done(fmt.Sprintf("parsed %d objects (%d warnings)", len(objects), countNonEmpty(warnings)))
	}

	return &Map{pids: pidList, objects: objects}, nil
}

func countNonEmpty(ss []string) int {
	n := 0
	for _, s := range ss {
		if s != "" {
			n++
		}
	}
	return n
}

func filterObjectPaths(paths []string, pids []string) []string {
	if len(pids) == 0 {
		return paths
	}
	want := make(map[string]struct{}, len(pids))
	for _, p := range pids {
		want[p] = struct{}{}
	}
	var out []string
	for _, p := range paths {
		stem := strings.TrimSuffix(filepath.Base(p), filepath.Ext(p))
		if _, ok := want[stem]; ok {
			out = append(out, p)
		}
	}
	return out
}

func newObject(f *foxml.Foxml, dsIndex datastreamIndex) (*Object, error) {
	state, err := f.Properties.State()
	if err != nil {
		return nil, err
	}
	label, err := f.Properties.Label()
	if err != nil {
		return nil, err
	}
	ownerID, err := f.Properties.OwnerID()
	if err != nil {
		return nil, err
	}
	created, err := f.Properties.CreatedDate()
	if err != nil {
		return nil, err
	}
	modified, err := f.Properties.ModifiedDate()
	if err != nil {
		return nil, err
	}

	owner := ownerID
	if mapped, ok := userMap[ownerID]; ok {
		owner = mapped
	}

	datastreams := make([]Datastream, 0, len(f.Datastreams))
	var rels *relsext.RelsExt
	for _, ds := range f.Datastreams {
		if ds.ControlGroup == foxml.ControlGroupExternal || ds.ControlGroup == foxml.ControlGroupRedirect {
			return nil, &errs.UnknownControlGroup{PID: f.PID, DSID: ds.ID, Group: string(ds.ControlGroup)}
		}
		versions := make([]DatastreamVersion, 0, len(ds.Versions))
		for _, v := range ds.Versions {
			id := identifier.Datastream{PID: f.PID, DSID: ds.ID, Version: v.ID}
			versions = append(versions, DatastreamVersion{
				ID:       v.ID,
				Label:    v.Label,
				Created:  v.Created,
				MimeType: v.MimeType,
				Size:     v.Size,
				Path:     dsIndex[id],
			})
		}
		sort.Slice(versions, func(i, j int) bool { return identifier.Less(versions[i].ID, versions[j].ID) })

		if ds.ID == "RELS-EXT" && len(versions) > 0 {
			latest := versions[len(versions)-1]
			if latest.Path != "" {
				r, err := relsext.FromPath(latest.Path)
				if err != nil {
					return nil, &errs.RelsExtParse{PID: f.PID, Err: err}
				}
				rels = r
			}
		}

		datastreams = append(datastreams, Datastream{ID: ds.ID, State: ds.State, Versions: versions})
	}
	sort.Slice(datastreams, func(i, j int) bool { return identifier.Less(datastreams[i].ID, datastreams[j].ID) })

	obj := &Object{
		PID:          f.PID,
		State:        state,
		Owner:        owner,
		Label:        label,
		CreatedDate:  created,
		ModifiedDate: modified,
		Datastreams:  datastreams,
	}
	if rels != nil {
		obj.Model = rels.Model()
		obj.Parents = rels.Parents()
		obj.Weight = rels.Weight()
	}
	return obj, nil
}

// directories is the process-wide pair of staged-tree roots other packages
// (script host, csv projectors) resolve relative storage paths against,
// mirroring the original's one-shot lazy_static roots. Set once; later
// calls with the same values are no-ops, calls with different values panic.
var (
	dirsMu               sync.Mutex
	dirsSet              bool
	objectsDirectory     string
	datastreamsDirectory string
)

// SetDirectories records the staged tree's roots for later path resolution.
// Safe to call more than once with identical arguments (idempotent); calling
// it again with different arguments panics, since the roots must never move
// mid-run.
func SetDirectories(objectsDir, datastreamsDir string) {
	dirsMu.Lock()
	defer dirsMu.Unlock()
	if dirsSet {
		if objectsDirectory != objectsDir || datastreamsDirectory != datastreamsDir {
			panic("object: SetDirectories called again with different roots")
		}
		return
	}
	objectsDirectory = objectsDir
	datastreamsDirectory = datastreamsDir
	dirsSet = true
}

// ObjectsDirectory returns the staged objects root set by SetDirectories.
func ObjectsDirectory() string { return objectsDirectory }

// DatastreamsDirectory returns the staged datastreams root set by SetDirectories.
func DatastreamsDirectory() string { return datastreamsDirectory }
