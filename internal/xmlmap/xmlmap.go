// Package xmlmap converts an arbitrary XML document into a generic nested
// map, the representation user scripts traverse to read datastream content
// whose shape isn't known ahead of time (MODS, OAI DC, EAD, etc). Grounded
// on the original migration tool's csv/xml.rs element()/map() functions and
// csv/map.rs's CustomMap, translated from quick_xml's push-style Reader
// loop to encoding/xml's Decoder token stream.
package xmlmap

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"
)

// Map is a single XML element's generic representation: attributes are
// keyed "@name", the element's own namespace URI (not its literal prefix,
// which is not kept) is keyed "#namespace",
// its directly-contained text is keyed "#text", and every distinct child
// local name is keyed by that name mapped to a slice of child Maps (even
// when only one child of that name exists), mirroring the original's
// group-children-by-name-into-arrays behavior.
type Map map[string]any

// ValidMimeTypes lists the datastream MIME types xmlmap will parse; any
// other MIME type means the datastream isn't generic structured content and
// scripts should treat it as opaque.
var ValidMimeTypes = []string{"application/rdf+xml", "application/xml", "text/xml"}

// IsParseable reports whether mimeType is one xmlmap will parse.
func IsParseable(mimeType string) bool {
	for _, m := range ValidMimeTypes {
		if m == mimeType {
			return true
		}
	}
	return false
}

// Parse converts r's XML document into a Map of its root element.
func Parse(r io.Reader) (Map, error) {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return nil, fmt.Errorf("unexpected end of file: no root element found")
		}
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			_, m, err := element(d, se)
			if err != nil {
				return nil, err
			}
			return m, nil
		}
	}
}

// FromPath reads and parses an XML file from disk.
func FromPath(path string) (Map, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

type childElement struct {
	localName string
	m         Map
}

func element(d *xml.Decoder, start xml.StartElement) (localName string, m Map, err error) {
	m = Map{}
	for _, a := range start.Attr {
		m["@"+qualifiedName(a.Name)] = a.Value
	}

	var children []childElement
	var text string

	for {
		tok, err := d.Token()
		if err != nil {
			return "", nil, fmt.Errorf("reached end of file inside element %q: %w", start.Name.Local, err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			name, child, err := element(d, t.Copy())
			if err != nil {
				return "", nil, err
			}
			children = append(children, childElement{localName: name, m: child})
		case xml.EndElement:
			goto done
		case xml.CharData:
			s := string(t)
			if strings.TrimSpace(s) != "" {
				text = s
			}
		default:
			// Comments, processing instructions, directives, CDATA are ignored.
		}
	}
done:
	grouped := map[string][]Map{}
	var order []string
	for _, c := range children {
		if _, seen := grouped[c.localName]; !seen {
			order = append(order, c.localName)
		}
		grouped[c.localName] = append(grouped[c.localName], c.m)
	}
	for _, name := range order {
		list := make([]any, len(grouped[name]))
		for i, cm := range grouped[name] {
			list[i] = cm
		}
		m[name] = list
	}

	m["#namespace"] = namespacePrefix(start.Name)
	m["#text"] = text
	return start.Name.Local, m, nil
}

// qualifiedName formats a resolved xml.Name as an attribute key. Since
// encoding/xml resolves prefixes to namespace URIs rather than preserving
// the document's literal prefix, a prefixed attribute is keyed
// "<namespace URI>:local" (xml: attributes get the XML namespace URI).
// Namespace declarations are keyed "xmlns:prefix", a default namespace
// declaration "xmlns", and unprefixed attributes keep their bare local name.
func qualifiedName(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

// namespacePrefix returns the namespace portion of a resolved element name,
// or "" when the element carries no prefix. encoding/xml resolves prefixes
// to their full namespace URI, so the original's literal "dc"/"oai_dc"
// prefix is not directly recoverable here; callers wanting the declared
// prefix must inspect #namespace accordingly (the URI, not the prefix
// string) — documented as a deliberate simplification in SPEC_FULL.md §4.8.
func namespacePrefix(name xml.Name) string {
	return name.Space
}

// Keys returns m's own keys (attributes, #namespace, #text, and child-group
// names), matching the original CustomMap::keys() script binding.
func (m Map) Keys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// Elements returns the child Maps grouped under name, or an empty slice if
// name is absent — scripts index a map for a child name and always get
// back an iterable, never a missing-key error, matching the original's
// custom indexer behavior.
func (m Map) Elements(name string) []Map {
	v, ok := m[name]
	if !ok {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]Map, 0, len(list))
	for _, item := range list {
		if cm, ok := item.(Map); ok {
			out = append(out, cm)
		}
	}
	return out
}

// Text returns the element's own directly-contained text.
func (m Map) Text() string {
	v, _ := m["#text"].(string)
	return v
}

// Attr returns the named attribute's value, or "" if absent.
func (m Map) Attr(name string) string {
	v, _ := m["@"+name].(string)
	return v
}

// Find returns the first element of Elements(name), and false if there is
// none — a convenience the original's script layer builds from keys()
// combined with array indexing.
func (m Map) Find(name string) (Map, bool) {
	els := m.Elements(name)
	if len(els) == 0 {
		return nil, false
	}
	return els[0], true
}
