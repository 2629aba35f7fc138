// Package relsext streams a single object's RELS-EXT RDF/XML datastream over
// a closed predicate vocabulary. Grounded predicate-for-predicate on the
// original migration tool's csv/object.rs RelsExt::process_element match
// arms, translated from quick_xml's qualified byte-string element names to
// encoding/xml's resolved xml.Name.
package relsext

import (
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"unicode"

	"github.com/ndlib/fedora3-migrate/internal/identifier"
)

const infoFedoraPrefix = "info:fedora/"

// SequenceNumberOf is one isSequenceNumberOf<pid> compound predicate: the
// Islandora sequence-number-within-parent relation.
type SequenceNumberOf struct {
	PID string
	N   int
}

// RelsExt is the parsed view of one object's RELS-EXT datastream.
type RelsExt struct {
	About string

	// Fedora Model Rels-Ext Ontology.
	HasModel []string

	// Fedora Rels-Ext Ontology.
	FedoraRelationship []string
	HasAnnotation      []string
	HasCollectionMember []string
	HasConstituent      []string
	HasDependent        []string
	HasDerivation       []string
	HasDescription      []string
	HasEquivalent       []string
	HasMember           []string
	HasMetadata         []string
	HasPart             []string
	HasSubset           []string
	IsAnnotationOf      []string
	IsConstituentOf     []string
	IsDependentOf       []string
	IsDerivationOf      []string
	IsDescriptionOf     []string
	IsMemberOf          []string
	IsMemberOfCollection []string
	IsMetadataFor       []string
	IsPartOf            []string
	IsSubsetOf          []string

	// Islandora Rels-Ext Ontology.
	DeferDerivatives *bool
	GenerateHOCR     *bool
	GenerateOCR      *bool
	IsPageNumber     *int
	IsPageOf         *string
	IsSection        *int
	IsSequenceNumber *int
	IsSequenceNumberOf []SequenceNumberOf
}

// Parse streams r and returns the parsed RELS-EXT document.
func Parse(r io.Reader) (*RelsExt, error) {
	d := xml.NewDecoder(r)
	rels := &RelsExt{}
	for {
		tok, err := d.Token()
		if err == io.EOF {
			return rels, nil
		}
		if err != nil {
			return nil, err
		}
		se, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if err := processElement(rels, d, se); err != nil {
			return nil, err
		}
	}
}

// FromPath reads and parses a RELS-EXT file from disk.
func FromPath(path string) (*RelsExt, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f)
}

func processElement(rels *RelsExt, d *xml.Decoder, se xml.StartElement) error {
	local := se.Name.Local
	switch local {
	case "Description":
		about, ok := attr(se, "about")
		if ok {
			rels.About = stripPrefix(about)
		}
		return nil
	case "hasModel":
		rels.HasModel = append(rels.HasModel, resource(se))
		return nil
	case "fedoraRelationship":
		rels.FedoraRelationship = append(rels.FedoraRelationship, resource(se))
		return nil
	case "isPartOf":
		rels.IsPartOf = append(rels.IsPartOf, resource(se))
		return nil
	case "hasPart":
		rels.HasPart = append(rels.HasPart, resource(se))
		return nil
	case "isConstituentOf":
		rels.IsConstituentOf = append(rels.IsConstituentOf, resource(se))
		return nil
	case "hasConstituent":
		rels.HasConstituent = append(rels.HasConstituent, resource(se))
		return nil
	case "isMemberOf":
		rels.IsMemberOf = append(rels.IsMemberOf, resource(se))
		return nil
	case "hasMember":
		rels.HasMember = append(rels.HasMember, resource(se))
		return nil
	case "isSubsetOf":
		rels.IsSubsetOf = append(rels.IsSubsetOf, resource(se))
		return nil
	case "hasSubset":
		rels.HasSubset = append(rels.HasSubset, resource(se))
		return nil
	case "isMemberOfCollection":
		rels.IsMemberOfCollection = append(rels.IsMemberOfCollection, resource(se))
		return nil
	case "hasCollectionMember":
		rels.HasCollectionMember = append(rels.HasCollectionMember, resource(se))
		return nil
	case "isDerivationOf":
		rels.IsDerivationOf = append(rels.IsDerivationOf, resource(se))
		return nil
	case "hasDerivation":
		rels.HasDerivation = append(rels.HasDerivation, resource(se))
		return nil
	case "isDependentOf":
		rels.IsDependentOf = append(rels.IsDependentOf, resource(se))
		return nil
	case "hasDependent":
		rels.HasDependent = append(rels.HasDependent, resource(se))
		return nil
	case "isDescriptionOf":
		rels.IsDescriptionOf = append(rels.IsDescriptionOf, resource(se))
		return nil
	case "hasDescription":
		rels.HasDescription = append(rels.HasDescription, resource(se))
		return nil
	case "isMetadataFor":
		rels.IsMetadataFor = append(rels.IsMetadataFor, resource(se))
		return nil
	case "hasMetadata":
		rels.HasMetadata = append(rels.HasMetadata, resource(se))
		return nil
	case "isAnnotationOf":
		rels.IsAnnotationOf = append(rels.IsAnnotationOf, resource(se))
		return nil
	case "hasAnnotation":
		rels.HasAnnotation = append(rels.HasAnnotation, resource(se))
		return nil
	case "hasEquivalent":
		rels.HasEquivalent = append(rels.HasEquivalent, resource(se))
		return nil
	case "deferDerivatives":
		v, err := textBool(d)
		if err != nil {
			return err
		}
		rels.DeferDerivatives = &v
		return nil
	case "generate_hocr":
		v, err := textBool(d)
		if err != nil {
			return err
		}
		rels.GenerateHOCR = &v
		return nil
	case "generate_ocr":
		v, err := textBool(d)
		if err != nil {
			return err
		}
		rels.GenerateOCR = &v
		return nil
	case "isPageNumber":
		v, err := textLenientInt(d)
		if err != nil {
			return err
		}
		rels.IsPageNumber = v
		return nil
	case "isPageOf":
		v := resource(se)
		rels.IsPageOf = &v
		return nil
	case "isSection":
		v, err := textLenientInt(d)
		if err != nil {
			return err
		}
		rels.IsSection = v
		return nil
	case "isSequenceNumber":
		v, err := textLenientInt(d)
		if err != nil {
			return err
		}
		rels.IsSequenceNumber = v
		return nil
	default:
		if pid, ok := strings.CutPrefix(local, "isSequenceNumberOf"); ok && pid != "" {
			n, err := textLenientInt(d)
			if err != nil {
				return err
			}
			value := 0
			if n != nil {
				value = *n
			}
			rels.IsSequenceNumberOf = append(rels.IsSequenceNumberOf, SequenceNumberOf{
				PID: strings.Replace(pid, "_", ":", 1),
				N:   value,
			})
		}
		return nil
	}
}

func attr(se xml.StartElement, local string) (string, bool) {
	for _, a := range se.Attr {
		if a.Name.Local == local {
			return a.Value, true
		}
	}
	return "", false
}

func resource(se xml.StartElement) string {
	v, _ := attr(se, "resource")
	return stripPrefix(v)
}

func stripPrefix(v string) string {
	return strings.TrimPrefix(v, infoFedoraPrefix)
}

// textBool reads forward for the next non-whitespace character data within
// the current element and parses it case-insensitively as a boolean.
func textBool(d *xml.Decoder) (bool, error) {
	text, err := readText(d)
	if err != nil {
		return false, err
	}
	v, err := strconv.ParseBool(strings.ToLower(text))
	if err != nil {
		return false, fmt.Errorf("failed to parse boolean %q: %w", text, err)
	}
	return v, nil
}

// textLenientInt reads forward for the next non-whitespace character data
// and parses it as an integer after stripping every non-digit rune, per the
// spec's adopted lenient-parsing resolution (e.g. "001a" -> 1). Empty text,
// or text with no digits at all, yields nil.
func textLenientInt(d *xml.Decoder) (*int, error) {
	text, err := readText(d)
	if err != nil {
		return nil, err
	}
	digits := strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, text)
	if digits == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(digits)
	if err != nil {
		return nil, fmt.Errorf("failed to parse integer from %q: %w", text, err)
	}
	return &n, nil
}

func readText(d *xml.Decoder) (string, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return "", fmt.Errorf("reached end of document reading element text: %w", err)
		}
		if cd, ok := tok.(xml.CharData); ok {
			s := string(cd)
			if strings.TrimSpace(s) != "" {
				return s, nil
			}
		}
		if _, ok := tok.(xml.EndElement); ok {
			return "", nil
		}
	}
}

// parentPredicates lists the ten inverse-relation predicate lists whose
// sorted union forms an object's parents, per the data model in spec §3.
func (r *RelsExt) parentPredicates() [][]string {
	return [][]string{
		r.IsPartOf,
		r.IsConstituentOf,
		r.IsMemberOf,
		r.IsSubsetOf,
		r.IsMemberOfCollection,
		r.IsDerivationOf,
		r.IsDependentOf,
		r.IsDescriptionOf,
		r.IsMetadataFor,
		r.IsAnnotationOf,
	}
}

// Parents returns the alphanumerically sorted union of the ten inbound
// relation predicate lists.
func (r *RelsExt) Parents() []string {
	var all []string
	for _, list := range r.parentPredicates() {
		all = append(all, list...)
	}
	sort.Slice(all, func(i, j int) bool { return identifier.Less(all[i], all[j]) })
	return all
}

// Weight selects isPageNumber, falling back to isSequenceNumber, then the
// first isSequenceNumberOf tuple's integer.
func (r *RelsExt) Weight() *int {
	if r.IsPageNumber != nil {
		return r.IsPageNumber
	}
	if r.IsSequenceNumber != nil {
		return r.IsSequenceNumber
	}
	if len(r.IsSequenceNumberOf) > 0 {
		n := r.IsSequenceNumberOf[0].N
		return &n
	}
	return nil
}

// Model returns the first hasModel value, or "" if absent.
func (r *RelsExt) Model() string {
	if len(r.HasModel) == 0 {
		return ""
	}
	return r.HasModel[0]
}
