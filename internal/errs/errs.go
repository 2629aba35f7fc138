// Package errs names the error taxonomy shared across the migration and
// projection pipelines, so callers can decide fatal-vs-collected handling at
// the right layer instead of inspecting error strings.
package errs

import "fmt"

// PathInvalid is returned by CLI validators when a required directory is
// missing.
type PathInvalid struct {
	Path   string
	Reason string
}

func (e *PathInvalid) Error() string {
	return fmt.Sprintf("the directory %q %s", e.Path, e.Reason)
}

// FoxmlParse wraps a single FOXML file's deserialization failure. Collected
// per-file by the object graph builder; never fatal for the whole batch.
type FoxmlParse struct {
	Path string
	Err  error
}

func (e *FoxmlParse) Error() string {
	return fmt.Sprintf("failed to parse FOXML file %s: %v", e.Path, e.Err)
}

func (e *FoxmlParse) Unwrap() error { return e.Err }

// RelsExtParse wraps a single object's RELS-EXT parsing failure. Fatal for
// that individual object only: its model and parents cannot be derived, so
// it is dropped from the object map with this error logged.
type RelsExtParse struct {
	PID string
	Err error
}

func (e *RelsExtParse) Error() string {
	return fmt.Sprintf("failed to parse RELS-EXT for object %s: %v", e.PID, e.Err)
}

func (e *RelsExtParse) Unwrap() error { return e.Err }

// UnknownControlGroup is raised when a datastream's CONTROL_GROUP is E
// (externally referenced) or R (redirect) — neither is supported, and
// encountering one aborts the run.
type UnknownControlGroup struct {
	PID, DSID, Group string
}

func (e *UnknownControlGroup) Error() string {
	return fmt.Sprintf("object %s datastream %s has unsupported control group %q (external/redirect content is not supported)", e.PID, e.DSID, e.Group)
}

// UnknownContentModel is raised by the nodes.csv projector when an object's
// content model has no entry in the fixed model table.
type UnknownContentModel struct {
	PID, Model string
}

func (e *UnknownContentModel) Error() string {
	return fmt.Sprintf("unknown content model %q for object %s", e.Model, e.PID)
}

// ScriptCompile wraps a script compilation failure.
type ScriptCompile struct {
	Path string
	Err  error
}

func (e *ScriptCompile) Error() string {
	return fmt.Sprintf("failed to compile script %s: %v", e.Path, e.Err)
}

func (e *ScriptCompile) Unwrap() error { return e.Err }

// ScriptRuntime wraps a script runtime failure (e.g. inside headers()/rows()).
type ScriptRuntime struct {
	Path string
	Err  error
}

func (e *ScriptRuntime) Error() string {
	return fmt.Sprintf("runtime error in script %s: %v", e.Path, e.Err)
}

func (e *ScriptRuntime) Unwrap() error { return e.Err }
