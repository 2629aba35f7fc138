package script

import (
	"fmt"
	"hash/fnv"
	"regexp"
	"strings"
	"time"

	"github.com/dop251/goja"

	"github.com/ndlib/fedora3-migrate/internal/object"
	"github.com/ndlib/fedora3-migrate/internal/xmlmap"
)

// modules caches compiled require()'d module exports per Runtime, since
// each script gets its own Runtime and modules are evaluated once per
// Runtime (matching the original's FileModuleResolver, which caches per
// Engine — here "per Engine" becomes "per Runtime" since a Runtime is not
// safe for concurrent use).
type moduleCache struct {
	sources map[string]string // name (without .module.js) -> source
	exports map[string]goja.Value
}

func newModuleCache(modules []File) *moduleCache {
	mc := &moduleCache{
		sources: make(map[string]string, len(modules)),
		exports: make(map[string]goja.Value),
	}
	for _, m := range modules {
		name := strings.TrimSuffix(filepathBase(m.Path), moduleSuffix)
		mc.sources[name] = m.Source
	}
	return mc
}

func filepathBase(path string) string {
	i := strings.LastIndexAny(path, `/\`)
	if i < 0 {
		return path
	}
	return path[i+1:]
}

func (mc *moduleCache) require(rt *goja.Runtime, name string) (goja.Value, error) {
	if v, ok := mc.exports[name]; ok {
		return v, nil
	}
	src, ok := mc.sources[name]
	if !ok {
		return nil, fmt.Errorf("no such module: %s", name)
	}
	moduleObj := rt.NewObject()
	_ = moduleObj.Set("exports", rt.NewObject())
	rt.Set("module", moduleObj)
	if _, err := rt.RunString(src); err != nil {
		return nil, fmt.Errorf("failed to evaluate module %s: %w", name, err)
	}
	exportsVal := moduleObj.Get("exports")
	mc.exports[name] = exportsVal
	return exportsVal, nil
}

// newRuntime builds a goja.Runtime with the host bindings object, hash,
// join and edtf, plus require when modules is non-nil, bound against m
// (never mutated once BuildMap returns, so safe to share a pointer across
// every script's own Runtime). Parsed XML maps are exposed through a
// read-only indexer that also lists their keys. No print, debug, push,
// find or elements function is registered.
func newRuntime(m *object.Map, modules *moduleCache) *goja.Runtime {
	rt := goja.New()

	rt.Set("object", func(call goja.FunctionCall) goja.Value {
		pid := call.Argument(0).String()
		obj, ok := m.Get(pid)
		if !ok {
			panic(rt.NewTypeError("failed to find object: %s", pid))
		}
		return wrapObject(rt, obj)
	})

	rt.Set("hash", func(call goja.FunctionCall) goja.Value {
		s := call.Argument(0).String()
		h := fnv.New64a()
		_, _ = h.Write([]byte(s))
		return rt.ToValue(fmt.Sprintf("%X", h.Sum64()))
	})

	rt.Set("join", func(call goja.FunctionCall) goja.Value {
		arr := call.Argument(0).Export()
		delim := call.Argument(1).String()
		items, _ := arr.([]any)
		var parts []string
		for _, item := range items {
			if item == nil {
				continue
			}
			s := strings.TrimSpace(fmt.Sprintf("%v", item))
			if s != "" {
				parts = append(parts, s)
			}
		}
		return rt.ToValue(strings.Join(parts, delim))
	})

	rt.Set("edtf", func(call goja.FunctionCall) goja.Value {
		return rt.ToValue(normalizeDate(call.Argument(0).String()))
	})

	if modules != nil {
		rt.Set("require", func(call goja.FunctionCall) goja.Value {
			name := call.Argument(0).String()
			v, err := modules.require(rt, name)
			if err != nil {
				panic(rt.NewGoError(err))
			}
			return v
		})
	}

	return rt
}

// wrapObject builds the JS-visible view of a migrated object: data
// properties (pid/state/label/model/parents) plus a datastream(dsid)
// method, matching the original's register_get calls and the
// xml::parse-backed "datastream" function.
func wrapObject(rt *goja.Runtime, obj *object.Object) goja.Value {
	o := rt.NewObject()
	_ = o.Set("pid", obj.PID)
	_ = o.Set("state", string(obj.State))
	_ = o.Set("label", obj.Label)
	_ = o.Set("model", obj.Model)
	_ = o.Set("parents", obj.Parents)
	_ = o.Set("datastream", func(call goja.FunctionCall) goja.Value {
		dsid := call.Argument(0).String()
		ds, ok := obj.Datastream(dsid)
		if !ok {
			return goja.Null()
		}
		latest, ok := ds.Latest()
		if !ok || latest.Path == "" {
			return goja.Null()
		}
		if !xmlmap.IsParseable(latest.MimeType) {
			return goja.Null()
		}
		m, err := xmlmap.FromPath(latest.Path)
		if err != nil {
			panic(rt.NewGoError(err))
		}
		return wrapMap(rt, m)
	})
	return o
}

// wrapMap exposes an xmlmap.Map to scripts as a goja dynamic object, so
// indexing for a missing child name returns an empty array instead of
// undefined, matching the original's custom CustomMap indexer.
func wrapMap(rt *goja.Runtime, m xmlmap.Map) goja.Value {
	return rt.NewDynamicObject(&dynamicMap{rt: rt, m: m})
}

type dynamicMap struct {
	rt *goja.Runtime
	m  xmlmap.Map
}

func (d *dynamicMap) Get(key string) goja.Value {
	v, ok := d.m[key]
	if !ok {
		return d.rt.ToValue([]any{})
	}
	switch val := v.(type) {
	case string:
		return d.rt.ToValue(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			if cm, ok := item.(xmlmap.Map); ok {
				out[i] = wrapMap(d.rt, cm)
			} else {
				out[i] = item
			}
		}
		return d.rt.ToValue(out)
	default:
		return d.rt.ToValue(val)
	}
}

func (d *dynamicMap) Set(key string, val goja.Value) bool { return false }
func (d *dynamicMap) Has(key string) bool {
	_, ok := d.m[key]
	return ok
}
func (d *dynamicMap) Delete(key string) bool { return false }
func (d *dynamicMap) Keys() []string         { return d.m.Keys() }

var dateOnlyPattern = regexp.MustCompile(`\d{4}-\d{2}-\d{2}`)

// normalizeDate best-effort normalizes a free-text date into EDTF-shaped
// output: a full timestamp if one parses, else a bare YYYY-MM-DD if one can
// be found in the text, else "".
func normalizeDate(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	layouts := []string{time.RFC3339, time.RFC1123Z, time.RFC1123, "2006-01-02T15:04:05", "2006-01-02"}
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			if layout == "2006-01-02" {
				return t.Format("2006-01-02")
			}
			return t.Format(time.RFC3339)
		}
	}
	if m := dateOnlyPattern.FindString(s); m != "" {
		return m
	}
	return ""
}
