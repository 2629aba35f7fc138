package script

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ndlib/fedora3-migrate/internal/object"
)

func buildTestMap(t *testing.T) *object.Map {
	t.Helper()
	root := t.TempDir()
	objectsDir := filepath.Join(root, "objects")
	datastreamsDir := filepath.Join(root, "datastreams")

	write := func(pid, label, model, relsExtra string) {
		foxmlDoc := `<?xml version="1.0" encoding="UTF-8"?>
<foxml:digitalObject PID="` + pid + `" xmlns:foxml="info:fedora/fedora-system:def/foxml#">
  <foxml:objectProperties>
    <foxml:property NAME="info:fedora/fedora-system:def/model#state" VALUE="Active"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#label" VALUE="` + label + `"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#ownerId" VALUE="fedoraAdmin"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#createdDate" VALUE="2020-01-01T00:00:00.000Z"/>
    <foxml:property NAME="info:fedora/fedora-system:def/view#lastModifiedDate" VALUE="2020-02-02T00:00:00.000Z"/>
  </foxml:objectProperties>
  <foxml:datastream ID="RELS-EXT" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
    <foxml:datastreamVersion ID="RELS-EXT.0" LABEL="" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/rdf+xml">
      <foxml:xmlContent/>
    </foxml:datastreamVersion>
  </foxml:datastream>
  <foxml:datastream ID="DC" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
    <foxml:datastreamVersion ID="DC.0" LABEL="" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/xml">
      <foxml:xmlContent/>
    </foxml:datastreamVersion>
  </foxml:datastream>
</foxml:digitalObject>`

		relsExtDoc := `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:fedora-model="info:fedora/fedora-system:def/model#">
  <rdf:Description rdf:about="info:fedora/` + pid + `">
    <fedora-model:hasModel rdf:resource="info:fedora/` + model + `"/>` + relsExtra + `
  </rdf:Description>
</rdf:RDF>`

		dcDoc := `<?xml version="1.0"?>
<oai_dc:dc xmlns:oai_dc="http://www.openarchives.org/OAI/2.0/oai_dc/" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <dc:title>` + label + `</dc:title>
</oai_dc:dc>`

		require.NoError(t, os.MkdirAll(objectsDir, 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(objectsDir, pid+".xml"), []byte(foxmlDoc), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(datastreamsDir, pid, "RELS-EXT", "RELS-EXT.0"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(datastreamsDir, pid, "RELS-EXT", "RELS-EXT.0", pid+"_RELS-EXT_RELS-EXT.0.xml"), []byte(relsExtDoc), 0o644))
		require.NoError(t, os.MkdirAll(filepath.Join(datastreamsDir, pid, "DC", "DC.0"), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(datastreamsDir, pid, "DC", "DC.0", pid+"_DC_DC.0.xml"), []byte(dcDoc), 0o644))
	}

	write("test:1", "Banana object", "islandora:sp_pdf", "")
	write("test:2", "Apple object", "islandora:sp_pdf", "")

	m, err := object.BuildMap(objectsDir, datastreamsDir, nil, nil)
	require.NoError(t, err)
	return m
}

func writeScript(t *testing.T, dir, name, src string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(src), 0o644))
}

func TestRunAllSortsRowsByDeclaredColumn(t *testing.T) {
	m := buildTestMap(t)
	scriptsDir := t.TempDir()
	writeScript(t, scriptsDir, "titles.script.js", `
function headers() {
  return {columns: ["pid", "title"], sort_by: "title"};
}
function rows(pid) {
  var o = object(pid);
  var dc = o.datastream("DC");
  return [[o.pid, dc["title"][0]["#text"]]];
}
`)

	results, err := RunAll(m, scriptsDir, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	res := results[0]
	assert.Equal(t, "titles", res.Stem)
	assert.Equal(t, []string{"pid", "title"}, res.Headers)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "Apple object", res.Rows[0][1])
	assert.Equal(t, "Banana object", res.Rows[1][1])
}

func TestRunAllDropsBlankRowsAndDeduplicates(t *testing.T) {
	m := buildTestMap(t)
	scriptsDir := t.TempDir()
	writeScript(t, scriptsDir, "constant.script.js", `
function headers() {
  return {columns: ["pid", "value"], sort_by: "pid"};
}
function rows(pid) {
  return [["same", "row"], ["same", "row"], ["", ""]];
}
`)

	results, err := RunAll(m, scriptsDir, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Rows, 1)
}

func TestRunAllSupportsRequireForModules(t *testing.T) {
	m := buildTestMap(t)
	scriptsDir := t.TempDir()
	modulesDir := t.TempDir()
	writeScript(t, modulesDir, "shout.module.js", `
module.exports.shout = function(s) { return s.toUpperCase(); };
`)
	writeScript(t, scriptsDir, "shout.script.js", `
var shout = require("shout").shout;
function headers() { return {columns: ["pid", "loud"], sort_by: "pid"}; }
function rows(pid) {
  var o = object(pid);
  return [[o.pid, shout(o.label)]];
}
`)

	results, err := RunAll(m, scriptsDir, modulesDir, nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	for _, row := range results[0].Rows {
		assert.Regexp(t, "^[A-Z0-9: ]+$", row[1])
	}
}

func TestRunAllJoinHashEdtfHelpers(t *testing.T) {
	m := buildTestMap(t)
	scriptsDir := t.TempDir()
	writeScript(t, scriptsDir, "helpers.script.js", `
function headers() { return {columns: ["pid", "joined", "hashed", "date"], sort_by: "pid"}; }
function rows(pid) {
  var j = join(["a", "", " b ", null], "|");
  var h = hash("abc");
  var d = edtf("Published on 2021-05-06 in spring");
  return [[pid, j, h, d]];
}
`)

	results, err := RunAll(m, scriptsDir, "", nil)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Rows, 2)
	row := results[0].Rows[0]
	assert.Equal(t, "a|b", row[1])
	assert.NotEmpty(t, row[2])
	assert.Equal(t, "2021-05-06", row[3])
}

func TestRunAllMissingObjectThrows(t *testing.T) {
	m := buildTestMap(t)
	scriptsDir := t.TempDir()
	writeScript(t, scriptsDir, "bad.script.js", `
function headers() { return {columns: ["pid"], sort_by: "pid"}; }
function rows(pid) {
  var o = object("does-not-exist:1");
  return [[o.pid]];
}
`)

	_, err := RunAll(m, scriptsDir, "", nil)
	assert.Error(t, err)
}

func TestWriteResultsToDirWritesCSVPerScript(t *testing.T) {
	res := Result{
		Stem:    "example",
		Headers: []string{"pid", "value"},
		Rows:    [][]string{{"test:1", "a"}, {"test:2", "b"}},
	}
	dir := t.TempDir()
	require.NoError(t, WriteResultsToDir([]Result{res}, dir))
	b, err := os.ReadFile(filepath.Join(dir, "example.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(b), "pid,value")
	assert.Contains(t, string(b), "test:1,a")
}
