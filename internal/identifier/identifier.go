// Package identifier decodes the URL-encoded on-disk filenames Fedora 3 uses
// for its object and datastream stores, and implements the alphanumeric
// ordering used everywhere PIDs, datastream ids, and version ids are sorted.
package identifier

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	objectFileRegexp     = regexp.MustCompile(`info%3Afedora%2F(.*)%3A(.*)`)
	datastreamFileRegexp = regexp.MustCompile(`info%3Afedora%2F(.*)%3A(.*)%2F(.*)%2F(.*)`)
)

// encoding is the closed table of URL-encoded fragments decoded within a
// captured pid/dsid/version segment (not the whole filename).
var encoding = strings.NewReplacer("%5F", "_")

func decode(s string) string {
	return encoding.Replace(s)
}

// Object identifies a single Fedora object's on-disk FOXML file.
type Object struct {
	PID string
}

// ObjectFromFilename parses a Fedora objectStore filename such as
// "info%3Afedora%2Farchden%3A13" into its PID. ok is false if the filename
// does not match the expected pattern.
func ObjectFromFilename(name string) (Object, bool) {
	m := objectFileRegexp.FindStringSubmatch(name)
	if m == nil {
		return Object{}, false
	}
	return Object{PID: fmt.Sprintf("%s:%s", decode(m[1]), decode(m[2]))}, true
}

// Datastream identifies a single version of a datastream's on-disk content
// file in the datastreamStore.
type Datastream struct {
	PID     string
	DSID    string
	Version string
}

// DatastreamFromFilename parses a Fedora datastreamStore filename such as
// "info%3Afedora%2Farchden%3A13%2FTECHMD%2FTECHMD.0" into its (pid, dsid,
// version) triple. ok is false if the filename does not match the expected
// pattern.
func DatastreamFromFilename(name string) (Datastream, bool) {
	m := datastreamFileRegexp.FindStringSubmatch(name)
	if m == nil {
		return Datastream{}, false
	}
	return Datastream{
		PID:     fmt.Sprintf("%s:%s", decode(m[1]), decode(m[2])),
		DSID:    decode(m[3]),
		Version: decode(m[4]),
	}, true
}

// Path returns the staged-layout relative directory for this datastream
// identifier: <pid>/<dsid>/<version>.
func (d Datastream) Path() string {
	return filepath.Join(d.PID, d.DSID, d.Version)
}

// mimeExtensions is the closed MIME-type -> extension table stage-1 uses to
// name migrated datastream version files. Fedora's own foxml::extensions
// module (referenced but not retrieved alongside the rest of the original
// source) would have held the canonical table; this one is built from the
// MIME types the fixed CSV bundle/MIME tables reference plus common
// repository formats.
var mimeExtensions = map[string]string{
	"text/xml":              "xml",
	"application/xml":       "xml",
	"application/rdf+xml":   "xml",
	"application/pdf":       "pdf",
	"image/jpeg":            "jpg",
	"image/jp2":             "jp2",
	"image/tiff":            "tif",
	"image/png":             "png",
	"audio/mpeg":            "mp3",
	"audio/wav":             "wav",
	"video/mp4":             "mp4",
	"text/plain":            "txt",
	"application/json":      "json",
	"application/zip":       "zip",
	"application/xslt+xml":  "xsl",
	"application/marc":      "mrc",
	"application/epub+zip":  "epub",
	"text/csv":              "csv",
	"image/gif":             "gif",
}

// VersionFileName picks the on-disk file name a migrated datastream version
// is stored under: the version label itself when it already ends in the
// extension associated with mimeType, otherwise a synthesized
// "<pid>_<dsid>_<version>.<ext>" name. If mimeType has no known extension,
// the synthesized name is left bare (no trailing dot).
func VersionFileName(pid, dsid, version, label, mimeType string) string {
	ext, known := mimeExtensions[strings.ToLower(strings.TrimSpace(mimeType))]
	if known && label != "" && strings.HasSuffix(strings.ToLower(label), "."+ext) {
		return label
	}
	base := fmt.Sprintf("%s_%s_%s", sanitizeComponent(pid), sanitizeComponent(dsid), sanitizeComponent(version))
	if ext == "" {
		return base
	}
	return base + "." + ext
}

// sanitizeComponent replaces path separators in an identifier component so it
// can safely appear inside a synthesized file name.
func sanitizeComponent(s string) string {
	s = strings.ReplaceAll(s, "/", "_")
	return strings.ReplaceAll(s, string(filepath.Separator), "_")
}

// FromStagedPath recovers a Datastream identifier from a staged-tree file
// path of the form .../<pid>/<dsid>/<version>/<fileName>, taking the last
// three directory components before the file name. It does not panic on a
// shorter path: components that are absent come back as "." or the path's
// root, which should not arise for files produced by stage 1.
func FromStagedPath(path string) Datastream {
	dir := filepath.Dir(path)
	version := filepath.Base(dir)
	dir = filepath.Dir(dir)
	dsid := filepath.Base(dir)
	dir = filepath.Dir(dir)
	pid := filepath.Base(dir)
	return Datastream{PID: pid, DSID: dsid, Version: version}
}

// Compare orders two strings alphanumerically: runs of digits compare as
// numbers rather than lexicographically, so "item:2" sorts before
// "item:10". Ties within a numeric run fall back to leading-zero-aware
// lexicographic comparison so that "007" and "07" remain stably ordered.
func Compare(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	i, j := 0, 0
	tie := 0
	for i < len(ra) && j < len(rb) {
		ca, cb := ra[i], rb[j]
		if isDigit(ca) && isDigit(cb) {
			starta, startb := i, j
			for i < len(ra) && isDigit(ra[i]) {
				i++
			}
			for j < len(rb) && isDigit(rb[j]) {
				j++
			}
			na := strings.TrimLeft(string(ra[starta:i]), "0")
			nb := strings.TrimLeft(string(rb[startb:j]), "0")
			if len(na) != len(nb) {
				if len(na) < len(nb) {
					return -1
				}
				return 1
			}
			if na != nb {
				if na < nb {
					return -1
				}
				return 1
			}
			// Equal numeric value; let the raw digit run act as a tiebreaker later.
			if tie == 0 {
				tie = strings.Compare(string(ra[starta:i]), string(rb[startb:j]))
			}
			continue
		}
		if ca != cb {
			if ca < cb {
				return -1
			}
			return 1
		}
		i++
		j++
	}
	switch {
	case len(ra)-i < len(rb)-j:
		return -1
	case len(ra)-i > len(rb)-j:
		return 1
	default:
		return tie
	}
}

// Less is Compare expressed as the bool sort.Interface/slices.SortFunc callers want.
func Less(a, b string) bool {
	return Compare(a, b) < 0
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
