package relsext

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validRelsExt mirrors the original migration tool's valid_rels_ext fixture:
// a compound object's RELS-EXT with a model, several relation predicates,
// Islandora processing flags, and a compound isSequenceNumberOf predicate.
const validRelsExt = `<?xml version="1.0" encoding="UTF-8"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:fedora-model="info:fedora/fedora-system:def/model#"
  xmlns:fedora="info:fedora/fedora-system:def/relations-external#"
  xmlns:islandora="http://islandora.ca/ontology/relsext#">
  <rdf:Description rdf:about="info:fedora/test:2">
    <fedora-model:hasModel rdf:resource="info:fedora/islandora:compoundCModel"/>
    <fedora:isMemberOfCollection rdf:resource="info:fedora/test:1"/>
    <fedora:isConstituentOf rdf:resource="info:fedora/test:1"/>
    <islandora:isSequenceNumberOftest_1>3</islandora:isSequenceNumberOftest_1>
    <islandora:isPageNumber>3</islandora:isPageNumber>
    <islandora:generate_ocr>TRUE</islandora:generate_ocr>
    <islandora:deferDerivatives>false</islandora:deferDerivatives>
  </rdf:Description>
</rdf:RDF>
`

func TestValidRelsExt(t *testing.T) {
	rels, err := Parse(strings.NewReader(validRelsExt))
	require.NoError(t, err)

	assert.Equal(t, "test:2", rels.About)
	assert.Equal(t, []string{"islandora:compoundCModel"}, rels.HasModel)
	assert.Equal(t, "islandora:compoundCModel", rels.Model())
	assert.Equal(t, []string{"test:1"}, rels.IsMemberOfCollection)
	assert.Equal(t, []string{"test:1"}, rels.IsConstituentOf)

	require.Len(t, rels.IsSequenceNumberOf, 1)
	assert.Equal(t, "test:1", rels.IsSequenceNumberOf[0].PID)
	assert.Equal(t, 3, rels.IsSequenceNumberOf[0].N)

	require.NotNil(t, rels.IsPageNumber)
	assert.Equal(t, 3, *rels.IsPageNumber)

	require.NotNil(t, rels.GenerateOCR)
	assert.True(t, *rels.GenerateOCR)

	require.NotNil(t, rels.DeferDerivatives)
	assert.False(t, *rels.DeferDerivatives)

	parents := rels.Parents()
	assert.Equal(t, []string{"test:1", "test:1"}, parents)

	require.NotNil(t, rels.Weight())
	assert.Equal(t, 3, *rels.Weight())
}

func TestRelsExtLenientIntegerParsing(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#"
  xmlns:islandora="http://islandora.ca/ontology/relsext#">
  <rdf:Description rdf:about="info:fedora/test:9">
    <islandora:isPageNumber>007</islandora:isPageNumber>
  </rdf:Description>
</rdf:RDF>`
	rels, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.NotNil(t, rels.IsPageNumber)
	assert.Equal(t, 7, *rels.IsPageNumber)
}

func TestRelsExtNoParentsReturnsEmpty(t *testing.T) {
	const doc = `<?xml version="1.0"?>
<rdf:RDF xmlns:rdf="http://www.w3.org/1999/02/22-rdf-syntax-ns#">
  <rdf:Description rdf:about="info:fedora/test:1"></rdf:Description>
</rdf:RDF>`
	rels, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Empty(t, rels.Parents())
}
