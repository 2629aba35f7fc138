// Package foxml deserializes Fedora Object XML (FOXML) documents, grounded
// on the original program's foxml/lib.rs serde model, translated from an
// attribute/element serde mapping to encoding/xml struct tags.
//
// @see https://wiki.lyrasis.org/display/FEDORA35/FOXML+Reference+Example
package foxml

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"
)

// ObjectState is the well-known fedora-system object state.
type ObjectState string

const (
	StateActive   ObjectState = "Active"
	StateInactive ObjectState = "Inactive"
	StateDeleted  ObjectState = "Deleted"
)

// DatastreamState is the single-letter datastream state code.
type DatastreamState string

const (
	DSStateActive   DatastreamState = "A"
	DSStateInactive DatastreamState = "I"
	DSStateDeleted  DatastreamState = "D"
)

// ControlGroup identifies how a datastream's content is stored.
type ControlGroup string

const (
	ControlGroupExternal ControlGroup = "E"
	ControlGroupRedirect ControlGroup = "R"
	ControlGroupManaged  ControlGroup = "M"
	ControlGroupInline   ControlGroup = "X"
)

// Property is a single name/value pair from objectProperties.
type Property struct {
	Name  string `xml:"NAME,attr"`
	Value string `xml:"VALUE,attr"`
}

// ObjectProperties holds the flat property list FOXML stores object-level
// metadata in, looked up by well-known fedora-system URIs.
type ObjectProperties struct {
	Properties []Property `xml:"property"`
}

const (
	propertyState    = "info:fedora/fedora-system:def/model#state"
	propertyLabel    = "info:fedora/fedora-system:def/model#label"
	propertyOwnerID  = "info:fedora/fedora-system:def/model#ownerId"
	propertyCreated  = "info:fedora/fedora-system:def/model#createdDate"
	propertyModified = "info:fedora/fedora-system:def/view#lastModifiedDate"
)

// Property looks up a single named property. ok is false if absent.
func (p ObjectProperties) Property(name string) (string, bool) {
	for _, prop := range p.Properties {
		if prop.Name == name {
			return prop.Value, true
		}
	}
	return "", false
}

func (p ObjectProperties) required(name string) (string, error) {
	v, ok := p.Property(name)
	if !ok {
		return "", fmt.Errorf("failed to find required property: %s", name)
	}
	return v, nil
}

// State returns the object's state property.
func (p ObjectProperties) State() (ObjectState, error) {
	v, err := p.required(propertyState)
	if err != nil {
		return "", err
	}
	switch v {
	case "Active", "Inactive", "Deleted":
		return ObjectState(v), nil
	default:
		return "", fmt.Errorf("unrecognized object state: %s", v)
	}
}

// Label returns the object's label property.
func (p ObjectProperties) Label() (string, error) { return p.required(propertyLabel) }

// OwnerID returns the object's ownerId property.
func (p ObjectProperties) OwnerID() (string, error) { return p.required(propertyOwnerID) }

// CreatedDate returns the object's createdDate property, parsed as RFC3339.
func (p ObjectProperties) CreatedDate() (time.Time, error) { return p.dateProperty(propertyCreated) }

// ModifiedDate returns the object's lastModifiedDate property, parsed as RFC3339.
func (p ObjectProperties) ModifiedDate() (time.Time, error) { return p.dateProperty(propertyModified) }

func (p ObjectProperties) dateProperty(name string) (time.Time, error) {
	v, err := p.required(name)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse date property %s=%q: %w", name, v, err)
	}
	return t, nil
}

// ContentLocation describes externally-referenced or redirected content.
type ContentLocation struct {
	Type string `xml:"TYPE,attr"`
	Ref  string `xml:"REF,attr"`
}

// ContentDigest describes a managed datastream version's checksum.
type ContentDigest struct {
	Type   string `xml:"TYPE,attr"`
	Digest string `xml:"DIGEST,attr"`
}

// DatastreamVersion is a single version of a datastream.
type DatastreamVersion struct {
	ID              string
	Label           string
	Created         time.Time
	MimeType        string
	Size            *int64
	FormatURI       *string
	ContentLocation *ContentLocation
	ContentDigest   *ContentDigest
	IsXMLContent    bool
}

// datastreamVersionXML is the raw decode target; each possible content child
// (contentLocation, contentDigest, xmlContent) has its own field, which is
// how the polymorphic content union the original's serde "$value" enum
// models is discriminated here (Go's encoding/xml has no native tagged-union
// unmarshal).
type datastreamVersionXML struct {
	ID        string  `xml:"ID,attr"`
	Label     string  `xml:"LABEL,attr"`
	Created   string  `xml:"CREATED,attr"`
	MimeType  string  `xml:"MIMETYPE,attr"`
	Size      *int64  `xml:"SIZE,attr"`
	FormatURI *string `xml:"FORMAT_URI,attr"`

	ContentLocation *ContentLocation `xml:"contentLocation"`
	ContentDigest   *ContentDigest   `xml:"contentDigest"`
	XMLContent      *struct{}        `xml:"xmlContent"`
}

func (v *DatastreamVersion) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var raw datastreamVersionXML
	if err := d.DecodeElement(&raw, &start); err != nil {
		return err
	}
	created, err := time.Parse(time.RFC3339, raw.Created)
	if err != nil {
		return fmt.Errorf("failed to parse datastream version CREATED=%q: %w", raw.Created, err)
	}
	v.ID = raw.ID
	v.Label = raw.Label
	v.Created = created
	v.MimeType = raw.MimeType
	v.Size = raw.Size
	v.FormatURI = raw.FormatURI
	v.ContentLocation = raw.ContentLocation
	v.ContentDigest = raw.ContentDigest
	v.IsXMLContent = raw.XMLContent != nil
	return nil
}

// Datastream is a named content stream attached to an object.
type Datastream struct {
	ID           string              `xml:"ID,attr"`
	State        DatastreamState     `xml:"STATE,attr"`
	ControlGroup ControlGroup        `xml:"CONTROL_GROUP,attr"`
	Versionable  bool                `xml:"VERSIONABLE,attr"`
	Versions     []DatastreamVersion `xml:"datastreamVersion"`
}

// Foxml is the top-level deserialized document.
type Foxml struct {
	XMLName    xml.Name         `xml:"digitalObject"`
	PID        string           `xml:"PID,attr"`
	Properties ObjectProperties `xml:"objectProperties"`
	Datastreams []Datastream    `xml:"datastream"`
}

// Parse deserializes FOXML content into a Foxml value.
func Parse(content []byte) (*Foxml, error) {
	var f Foxml
	if err := xml.Unmarshal(content, &f); err != nil {
		return nil, err
	}
	return &f, nil
}

// FromPath reads and deserializes a FOXML file from disk.
func FromPath(path string) (*Foxml, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(content)
}
