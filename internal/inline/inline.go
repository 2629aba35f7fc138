// Package inline streams a FOXML document looking for CONTROL_GROUP="X"
// datastream versions and re-serializes each one's inline body as an
// independent XML document. Grounded on the original migration tool's
// migrate/inline.rs state machine, translated from quick_xml's push-style
// Reader/Writer to encoding/xml's Decoder/Encoder token streams.
package inline

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"strings"

	"github.com/ndlib/fedora3-migrate/internal/identifier"
)

// Version identifies one extracted inline datastream version and its
// serialized XML content.
type Version struct {
	identifier.Datastream
	Content []byte
}

// Extract streams r (a FOXML document) and returns the serialized content of
// every CONTROL_GROUP="X" datastream version found. Memory is bounded to one
// version's content at a time: the decoder never builds a DOM of the whole
// document.
func Extract(r io.Reader) ([]Version, error) {
	decoder := xml.NewDecoder(r)

	pid, err := seekPID(decoder)
	if err != nil {
		return nil, err
	}

	var results []Version
	for {
		dsid, ok, err := nextInlineDatastream(decoder)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for {
			versionID, ok, err := nextDatastreamVersion(decoder)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			content, err := extractVersionContent(decoder)
			if err != nil {
				return nil, err
			}
			results = append(results, Version{
				Datastream: identifier.Datastream{PID: pid, DSID: dsid, Version: versionID},
				Content:    content,
			})
		}
	}
	return results, nil
}

func seekPID(d *xml.Decoder) (string, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("reached end of file before finding foxml:digitalObject: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && localNameIs(se.Name, "digitalObject") {
			for _, attr := range se.Attr {
				if attr.Name.Local == "PID" {
					return attr.Value, nil
				}
			}
			return "", fmt.Errorf("foxml:digitalObject has no PID attribute")
		}
	}
}

// nextInlineDatastream scans forward for the next foxml:datastream start
// element whose CONTROL_GROUP attribute is "X", returning its ID. ok is
// false once the document is exhausted.
func nextInlineDatastream(d *xml.Decoder) (dsid string, ok bool, err error) {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		se, isStart := tok.(xml.StartElement)
		if !isStart || !localNameIs(se.Name, "datastream") {
			continue
		}
		group, id := "", ""
		for _, attr := range se.Attr {
			switch attr.Name.Local {
			case "CONTROL_GROUP":
				group = attr.Value
			case "ID":
				id = attr.Value
			}
		}
		if group == "X" {
			return id, true, nil
		}
	}
}

// nextDatastreamVersion scans forward for the next foxml:datastreamVersion
// start element within the current datastream, returning its ID. ok is false
// once the enclosing datastream's end tag is reached.
func nextDatastreamVersion(d *xml.Decoder) (versionID string, ok bool, err error) {
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return "", false, nil
		}
		if err != nil {
			return "", false, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if localNameIs(t.Name, "datastreamVersion") {
				for _, attr := range t.Attr {
					if attr.Name.Local == "ID" {
						return attr.Value, true, nil
					}
				}
				return "", true, nil
			}
		case xml.EndElement:
			if localNameIs(t.Name, "datastream") {
				return "", false, nil
			}
		}
	}
}

// extractVersionContent copies every token inside the current
// foxml:xmlContent wrapper element, verbatim, until its matching end tag,
// stripping whitespace-only text nodes and namespace declarations carried by
// the wrapper itself. A UTF-8 XML declaration is prepended.
func extractVersionContent(d *xml.Decoder) ([]byte, error) {
	// Seek the wrapper element itself first.
	var wrapperStart xml.StartElement
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("reached end of file seeking foxml:xmlContent: %w", err)
		}
		if se, ok := tok.(xml.StartElement); ok && localNameIs(se.Name, "xmlContent") {
			wrapperStart = se.Copy()
			break
		}
	}

	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	enc := xml.NewEncoder(&buf)

	depth := 0
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, fmt.Errorf("reached end of file inside foxml:xmlContent: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			depth++
			if err := enc.EncodeToken(t.Copy()); err != nil {
				return nil, err
			}
		case xml.EndElement:
			if depth == 0 && localNameIs(t.Name, wrapperStart.Name.Local) {
				if err := enc.Flush(); err != nil {
					return nil, err
				}
				return buf.Bytes(), nil
			}
			depth--
			if err := enc.EncodeToken(t); err != nil {
				return nil, err
			}
		case xml.CharData:
			if strings.TrimSpace(string(t)) == "" {
				continue
			}
			if err := enc.EncodeToken(t.Copy()); err != nil {
				return nil, err
			}
		default:
			// Comments, processing instructions, directives: copy as-is.
			if err := enc.EncodeToken(xml.CopyToken(tok)); err != nil {
				return nil, err
			}
		}
	}
}

func localNameIs(name xml.Name, local string) bool {
	return name.Local == local
}
