package foxml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validFoxml = `<?xml version="1.0" encoding="UTF-8"?>
<foxml:digitalObject VERSION="1.1" PID="namespace:1"
  xmlns:foxml="info:fedora/fedora-system:def/foxml#">
  <foxml:objectProperties>
    <foxml:property NAME="info:fedora/fedora-system:def/model#state" VALUE="Active"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#label" VALUE="DC"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#ownerId" VALUE="fedoraAdmin"/>
    <foxml:property NAME="info:fedora/fedora-system:def/model#createdDate" VALUE="2020-01-01T00:00:00.000Z"/>
    <foxml:property NAME="info:fedora/fedora-system:def/view#lastModifiedDate" VALUE="2020-02-02T00:00:00.000Z"/>
  </foxml:objectProperties>
  <foxml:datastream ID="DC" STATE="A" CONTROL_GROUP="X" VERSIONABLE="true">
    <foxml:datastreamVersion ID="DC1.0" LABEL="DC" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="text/xml">
      <foxml:xmlContent/>
    </foxml:datastreamVersion>
  </foxml:datastream>
  <foxml:datastream ID="OBJ" STATE="A" CONTROL_GROUP="M" VERSIONABLE="true">
    <foxml:datastreamVersion ID="OBJ.0" LABEL="" CREATED="2020-01-01T00:00:00.000Z" MIMETYPE="application/pdf" SIZE="12">
      <foxml:contentLocation TYPE="INTERNAL_ID" REF="namespace+OBJ+OBJ.0"/>
    </foxml:datastreamVersion>
  </foxml:datastream>
</foxml:digitalObject>
`

func TestParseValidFoxml(t *testing.T) {
	f, err := Parse([]byte(validFoxml))
	require.NoError(t, err)
	assert.Equal(t, "namespace:1", f.PID)

	state, err := f.Properties.State()
	require.NoError(t, err)
	assert.Equal(t, StateActive, state)

	label, err := f.Properties.Label()
	require.NoError(t, err)
	assert.Equal(t, "DC", label)

	require.Len(t, f.Datastreams, 2)
	assert.Equal(t, ControlGroupInline, f.Datastreams[0].ControlGroup)
	require.Len(t, f.Datastreams[0].Versions, 1)
	assert.True(t, f.Datastreams[0].Versions[0].IsXMLContent)

	assert.Equal(t, ControlGroupManaged, f.Datastreams[1].ControlGroup)
	require.NotNil(t, f.Datastreams[1].Versions[0].ContentLocation)
	assert.Equal(t, "namespace+OBJ+OBJ.0", f.Datastreams[1].Versions[0].ContentLocation.Ref)
}

func TestParseMissingRequiredProperty(t *testing.T) {
	f, err := Parse([]byte(`<?xml version="1.0"?>
<foxml:digitalObject PID="namespace:2" xmlns:foxml="info:fedora/fedora-system:def/foxml#">
  <foxml:objectProperties></foxml:objectProperties>
</foxml:digitalObject>`))
	require.NoError(t, err)
	_, err = f.Properties.State()
	assert.Error(t, err)
}

func TestParseInvalidXMLReturnsError(t *testing.T) {
	_, err := Parse([]byte("not xml at all"))
	assert.Error(t, err)
}
