package orchestrator

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sharedStagedRoot is written once and reused by every test in this file:
// internal/object.SetDirectories forbids re-initialization with different
// roots within a process, matching one staged tree per `csv`/`scripts`
// invocation — exactly what a real process does, so tests share one root
// rather than fighting that contract with a reset hook.
var (
	sharedStagedRootOnce sync.Once
	sharedStagedRootPath string
)

func stagedTreeRoot(t *testing.T) string {
	t.Helper()
	sharedStagedRootOnce.Do(func() {
		sharedStagedRootPath = writeStagedTree(t)
	})
	return sharedStagedRootPath
}

func writeStagedTree(t *testing.T) string {
	t.Helper()
	// Not t.TempDir(): this root is shared (via sharedStagedRootOnce) across
	// every test in this file, so it must outlive any single test's cleanup.
	root, err := os.MkdirTemp("", "fedora3-migrate-csv-test-*")
	require.NoError(t, err)
	objectsDir := filepath.Join(root, "objects")
	datastreamsDir := filepath.Join(root, "datastreams")

	const foxmlDoc = `<?xml version="1.0" encoding="UTF-8"?>
<foxml:digitalObject PID="test:1" xmlns:foxml="info:fedora/fedora-system:def/foxml#">
  <foxml:objectProperties>
    <foxml:property NAME="info:fedora/fedora-system:def/model#state" VALUE="Active"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#label" VALUE="A label"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#ownerId" VALUE="fedoraAdmin"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#createdDate" VALUE="2020-01-01T00:00:00.000Z"/>
    <foxml:property NAME="info:fedora/fedora-system:def/view#lastModifiedDate" VALUE="2020-02-02T00:00:00.000Z"/>
  </foxml:objectProperties>
  <foxml:datastream ID="RELS-EXT" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
    <foxml:datastreamVersion ID="RELS-EXT.0" LABEL="" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/rdf+xml">
      <foxml:xmlContent/>
    </foxml:datastreamVersion>
  </foxml:datastream>
  <foxml:datastream ID="OBJ" STATE="A" CONTROL_GROUP="M" VERSIONABLE="true">
    <foxml:datastreamVersion ID="OBJ.0" LABEL="v0" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/pdf" SIZE="12">
      <foxml:contentLocation TYPE="INTERNAL_ID" REF="x"/>
    </foxml:datastreamVersion>
  </foxml:datastream>
</foxml:digitalObject>`

	const relsExtDoc = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:fedora-model="info:fedora/fedora-system:def/model#">
  <rdf:Description rdf:about="info:fedora/test:1">
    <fedora-model:hasModel rdf:resource="info:fedora/islandora:sp_pdf"/>
  </rdf:Description>
</rdf:RDF>`

	// test:bad carries a content model absent from the fixed model table, so
	// any run over the whole tree (no PID filter) exercises WriteNodes'
	// UnknownContentModel abort path.
	const badFoxmlDoc = `<?xml version="1.0" encoding="UTF-8"?>
<foxml:digitalObject PID="test:bad" xmlns:foxml="info:fedora/fedora-system:def/foxml#">
  <foxml:objectProperties>
    <foxml:property NAME="info:fedora/fedora-system:def/model#state" VALUE="Active"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#label" VALUE="Bad model object"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#ownerId" VALUE="fedoraAdmin"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#createdDate" VALUE="2020-01-01T00:00:00.000Z"/>
    <foxml:property NAME="info:fedora/fedora-system:def/view#lastModifiedDate" VALUE="2020-02-02T00:00:00.000Z"/>
  </foxml:objectProperties>
  <foxml:datastream ID="RELS-EXT" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
    <foxml:datastreamVersion ID="RELS-EXT.0" LABEL="" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/rdf+xml">
      <foxml:xmlContent/>
    </foxml:datastreamVersion>
  </foxml:datastream>
</foxml:digitalObject>`

	const badRelsExtDoc = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:fedora-model="info:fedora/fedora-system:def/model#">
  <rdf:Description rdf:about="info:fedora/test:bad">
    <fedora-model:hasModel rdf:resource="info:fedora/islandora:notARealModel"/>
  </rdf:Description>
</rdf:RDF>`

	require.NoError(t, os.MkdirAll(objectsDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "test:1.xml"), []byte(foxmlDoc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(datastreamsDir, "test:1", "RELS-EXT", "RELS-EXT.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(datastreamsDir, "test:1", "RELS-EXT", "RELS-EXT.0", "test:1_RELS-EXT_RELS-EXT.0.xml"), []byte(relsExtDoc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(datastreamsDir, "test:1", "OBJ", "OBJ.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(datastreamsDir, "test:1", "OBJ", "OBJ.0", "test:1_OBJ_OBJ.0.pdf"), []byte("pdf-bytes"), 0o644))

	require.NoError(t, os.WriteFile(filepath.Join(objectsDir, "test:bad.xml"), []byte(badFoxmlDoc), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(datastreamsDir, "test:bad", "RELS-EXT", "RELS-EXT.0"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(datastreamsDir, "test:bad", "RELS-EXT", "RELS-EXT.0", "test:bad_RELS-EXT_RELS-EXT.0.xml"), []byte(badRelsExtDoc), 0o644))

	return root
}

func TestRunCSVWritesAllFourFixedFiles(t *testing.T) {
	staged := stagedTreeRoot(t)
	output := t.TempDir()

	err := RunCSV(CSVOptions{Staged: staged, Output: output, PIDs: []string{"test:1"}}, nil)
	require.NoError(t, err)

	for _, name := range []string{"nodes.csv", "media.csv", "media_revisions.csv", "files.csv"} {
		assert.FileExists(t, filepath.Join(output, name))
	}

	nodes, err := os.ReadFile(filepath.Join(output, "nodes.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(nodes), "test:1")
}

func TestRunCSVAbortsAllFourFilesOnUnknownModel(t *testing.T) {
	staged := stagedTreeRoot(t)
	output := t.TempDir()

	err := RunCSV(CSVOptions{Staged: staged, Output: output}, nil)
	require.Error(t, err)

	// Per spec scenario S5: a fatal error from one projector (here
	// WriteNodes, on test:bad's unknown model) must leave none of the four
	// fixed CSVs behind, not just nodes.csv.
	entries, readErr := os.ReadDir(output)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestRunScriptsWritesPerScriptCSV(t *testing.T) {
	staged := stagedTreeRoot(t)
	output := t.TempDir()
	scriptsDir := t.TempDir()

	require.NoError(t, os.WriteFile(filepath.Join(scriptsDir, "titles.script.js"), []byte(`
function headers() { return {columns: ["pid", "label"], sort_by: "pid"}; }
function rows(pid) {
  var o = object(pid);
  return [[o.pid, o.label]];
}
`), 0o644))

	err := RunScripts(ScriptsOptions{Staged: staged, Output: output, PIDs: []string{"test:1"}, Scripts: scriptsDir}, nil)
	require.NoError(t, err)

	out, err := os.ReadFile(filepath.Join(output, "titles.csv"))
	require.NoError(t, err)
	assert.Contains(t, string(out), "test:1,A label")
}
