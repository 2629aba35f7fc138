package identifier

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObjectFromFilename(t *testing.T) {
	id, ok := ObjectFromFilename("info%3Afedora%2Farchden%3A13")
	require.True(t, ok)
	assert.Equal(t, "archden:13", id.PID)
}

func TestObjectFromFilenameUnderscore(t *testing.T) {
	id, ok := ObjectFromFilename("info%3Afedora%2Farch%5Fden%3A13")
	require.True(t, ok)
	assert.Equal(t, "arch_den:13", id.PID)
}

func TestObjectFromFilenameInvalid(t *testing.T) {
	_, ok := ObjectFromFilename("not-a-fedora-filename")
	assert.False(t, ok)
}

func TestDatastreamFromFilename(t *testing.T) {
	id, ok := DatastreamFromFilename("info%3Afedora%2Farchden%3A13%2FTECHMD%2FTECHMD.0")
	require.True(t, ok)
	assert.Equal(t, "archden:13", id.PID)
	assert.Equal(t, "TECHMD", id.DSID)
	assert.Equal(t, "TECHMD.0", id.Version)
}

func TestFromStagedPath(t *testing.T) {
	id := FromStagedPath("/root/datastreams/archden:13/TECHMD/TECHMD.0/archden_13_TECHMD.0.xml")
	assert.Equal(t, Datastream{PID: "archden:13", DSID: "TECHMD", Version: "TECHMD.0"}, id)
}

func TestCompareAlphanumeric(t *testing.T) {
	assert.True(t, Less("item:2", "item:10"))
	assert.False(t, Less("item:10", "item:2"))
	assert.True(t, Less("a", "b"))
	assert.Equal(t, 0, Compare("item:5", "item:5"))
}

func TestCompareSortsNaturally(t *testing.T) {
	pids := []string{"item:10", "item:2", "item:1", "item:20"}
	sort.Slice(pids, func(i, j int) bool { return Less(pids[i], pids[j]) })
	assert.Equal(t, []string{"item:1", "item:2", "item:10", "item:20"}, pids)
}

func TestVersionFileNameUsesLabelWhenExtensionMatches(t *testing.T) {
	name := VersionFileName("archden:13", "OBJ", "OBJ.0", "01-01-1942_web.pdf", "application/pdf")
	assert.Equal(t, "01-01-1942_web.pdf", name)
}

func TestVersionFileNameSynthesizesWhenLabelLacksExtension(t *testing.T) {
	name := VersionFileName("archden:13", "MODS", "MODS.0", "MODS Record", "text/xml")
	assert.Equal(t, "archden:13_MODS_MODS.0.xml", name)
}

func TestVersionFileNameUnknownMimeTypeOmitsExtension(t *testing.T) {
	name := VersionFileName("archden:13", "WEIRD", "WEIRD.0", "", "application/x-unknown")
	assert.Equal(t, "archden:13_WEIRD_WEIRD.0", name)
}

func TestRoundTripIdentifier(t *testing.T) {
	cases := []string{"namespace:123", "archden:13"}
	for _, pid := range cases {
		var ns, local string
		for i := 0; i < len(pid); i++ {
			if pid[i] == ':' {
				ns, local = pid[:i], pid[i+1:]
				break
			}
		}
		filename := "info%3Afedora%2F" + ns + "%3A" + local
		got, ok := ObjectFromFilename(filename)
		require.True(t, ok)
		assert.Equal(t, pid, got.PID)
	}
}
