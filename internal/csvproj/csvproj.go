// Package csvproj writes the four fixed CSV manifests (nodes, media,
// media_revisions, files) a staged object.Map projects to. Grounded on the
// original migration tool's csv/rows.rs (DSID_MAP, MIME_TYPE_MAP, MODEL_MAP,
// Model::identifier, DisplayHint, NodeRow/MediaRow/FileRow), with two
// deliberate deviations from that file called out below and in SPEC_FULL.md
// §4.9: nodes.csv gains a weight column, and dates are written as Unix
// epoch seconds rather than RFC3339.
package csvproj

import (
	"crypto/sha1"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ndlib/fedora3-migrate/internal/errs"
	"github.com/ndlib/fedora3-migrate/internal/object"
)

// dsidMap maps specific datastream ids to their target bundle, checked
// before mimeTypeMap.
var dsidMap = map[string]string{
	"OCR":       "extracted_text",
	"FULL_TEXT": "extracted_text",
	"TECHMD":    "fits_technical_metadata",
}

// mimeTypeMap maps a version's MIME type to its target bundle when dsidMap
// has no entry for the datastream id.
var mimeTypeMap = map[string]string{
	"application/pdf":     "document",
	"application/rdf+xml": "file",
	"application/xml":     "file",
	"audio/aac":           "audio",
	"audio/mpeg":          "audio",
	"audio/wav":           "audio",
	"image/gif":           "image",
	"image/jp2":           "image",
	"image/jpeg":          "image",
	"image/jpg":           "image",
	"image/png":           "image",
	"text/plain":          "document",
	"text/xml":            "file",
	"video/mp4":           "video",
}

// model is one of the closed set of Islandora content models this tool
// understands, each mapped to a target-ontology IRI and, for a few models,
// a display hint.
type model string

const (
	modelAudio          model = "islandora:sp-audioCModel"
	modelBasicImage     model = "islandora:sp_basic_image"
	modelLargeImage     model = "islandora:sp_large_image_cmodel"
	modelVideo          model = "islandora:sp_videoCModel"
	modelPDF            model = "islandora:sp_pdf"
	modelBook           model = "islandora:bookCModel"
	modelPage           model = "islandora:pageCModel"
	modelNewspaper      model = "islandora:newspaperCModel"
	modelNewspaperIssue model = "islandora:newspaperIssueCModel"
	modelNewspaperPage  model = "islandora:newspaperPageCModel"
	modelCollection     model = "islandora:collectionCModel"
	modelCompound       model = "islandora:compoundCModel"
	modelBinary         model = "islandora:binaryCModel"
)

var modelIdentifiers = map[model]string{
	modelAudio:          "http://purl.org/coar/resource_type/c_18cc",
	modelBasicImage:     "http://purl.org/coar/resource_type/c_c513",
	modelBinary:         "http://purl.org/coar/resource_type/c_1843",
	modelBook:           "https://schema.org/Book",
	modelCollection:     "http://purl.org/dc/dcmitype/Collection",
	modelCompound:       "http://purl.org/dc/dcmitype/Collection",
	modelLargeImage:     "http://purl.org/coar/resource_type/c_c513",
	modelNewspaper:      "https://schema.org/Book",
	modelNewspaperIssue: "https://schema.org/PublicationIssue",
	modelNewspaperPage:  "http://id.loc.gov/ontologies/bibframe/part",
	modelPage:           "http://id.loc.gov/ontologies/bibframe/part",
	modelPDF:            "https://schema.org/DigitalDocument",
	modelVideo:          "http://purl.org/coar/resource_type/c_12ce",
}

var modelDisplayHints = map[model]string{
	modelLargeImage:    "http://openseadragon.github.io",
	modelNewspaperPage: "http://openseadragon.github.io",
	modelPage:          "http://openseadragon.github.io",
	modelPDF:           "http://mozilla.github.io/pdf.js",
}

func resolveModel(identifier string) (model, error) {
	m := model(identifier)
	if _, ok := modelIdentifiers[m]; !ok {
		return "", &errs.UnknownContentModel{Model: identifier}
	}
	return m, nil
}

// WriteNodes writes nodes.csv: one row per surviving object.
func WriteNodes(m *object.Map, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{
		"pid", "created_date", "label", "weight", "model",
		"modified_date", "state", "user", "display_hint", "parents",
	}); err != nil {
		return err
	}
	for _, obj := range m.Objects() {
		mdl, err := resolveModel(obj.Model)
		if err != nil {
			if ue, ok := err.(*errs.UnknownContentModel); ok {
				ue.PID = obj.PID
			}
			return err
		}
		if err := cw.Write([]string{
			obj.PID,
			formatDate(obj.CreatedDate),
			obj.Label,
			formatWeight(obj.Weight),
			modelIdentifiers[mdl],
			formatDate(obj.ModifiedDate),
			string(obj.State),
			obj.Owner,
			modelDisplayHints[mdl],
			strings.Join(obj.Parents, "|"),
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteMedia writes media.csv: one row per datastream's latest version.
func WriteMedia(m *object.Map, w io.Writer) error {
	return writeMediaRows(m.LatestVersions(), w)
}

// WriteMediaRevisions writes media_revisions.csv: one row per superseded
// (non-latest) datastream version.
func WriteMediaRevisions(m *object.Map, w io.Writer) error {
	return writeMediaRows(m.PreviousVersions(), w)
}

func writeMediaRows(refs []object.VersionRef, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{
		"pid", "dsid", "version", "bundle", "created_date",
		"file_size", "label", "mime_type", "name", "user",
	}); err != nil {
		return err
	}
	for _, ref := range refs {
		if err := cw.Write([]string{
			ref.Object.PID,
			ref.Datastream.ID,
			ref.Version.ID,
			bundle(ref.Datastream.ID, ref.Version.MimeType),
			formatDate(ref.Version.Created),
			strconv.FormatInt(fileSize(ref.Version.Path), 10),
			ref.Version.Label,
			ref.Version.MimeType,
			baseName(ref.Version.Path),
			ref.Object.Owner,
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}

// WriteFiles writes files.csv: one row per datastream version of any age,
// plus a SHA-1 hash and a private:// storage path.
func WriteFiles(m *object.Map, w io.Writer) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	if err := cw.Write([]string{
		"pid", "dsid", "version", "bundle", "created_date",
		"file_size", "label", "mime_type", "name", "path", "sha1", "user",
	}); err != nil {
		return err
	}
	for _, ref := range m.Versions() {
		hash, err := sha1Hex(ref.Version.Path)
		if err != nil {
			hash = ""
		}
		if err := cw.Write([]string{
			ref.Object.PID,
			ref.Datastream.ID,
			ref.Version.ID,
			bundle(ref.Datastream.ID, ref.Version.MimeType),
			formatDate(ref.Version.Created),
			strconv.FormatInt(fileSize(ref.Version.Path), 10),
			ref.Version.Label,
			ref.Version.MimeType,
			baseName(ref.Version.Path),
			storagePath(ref.Version.Path),
			hash,
			ref.Object.Owner,
		}); err != nil {
			return err
		}
	}
	return cw.Error()
}

func bundle(dsid, mimeType string) string {
	if b, ok := dsidMap[dsid]; ok {
		return b
	}
	if b, ok := mimeTypeMap[mimeType]; ok {
		return b
	}
	return "file"
}

// baseName returns the staged file's name, or "" when a version has no
// staged file (filepath.Base("") is ".", not the empty string we want here).
func baseName(path string) string {
	if path == "" {
		return ""
	}
	return filepath.Base(path)
}

func fileSize(path string) int64 {
	if path == "" {
		return 0
	}
	info, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return info.Size()
}

func sha1Hex(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("no staged file for this version")
	}
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := sha1.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// storagePath rewrites a staged file's absolute path to
// "private://fedora/<last five path components>", grounded on the
// original's FileRow::new path truncation.
func storagePath(path string) string {
	if path == "" {
		return ""
	}
	parts := strings.Split(filepath.ToSlash(path), "/")
	if len(parts) > 5 {
		parts = parts[len(parts)-5:]
	}
	return "private://fedora/" + strings.Join(parts, "/")
}

func formatWeight(w *int) string {
	if w == nil {
		return ""
	}
	return strconv.Itoa(*w)
}

// formatDate writes Unix epoch seconds rather than the original's RFC3339
// string, per spec.md's explicit nodes/media/files date-column contract.
func formatDate(t time.Time) string {
	return strconv.FormatInt(t.Unix(), 10)
}
