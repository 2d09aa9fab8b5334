// Package incremental tracks per-root modification state for content roots.
//
// A Tracker persists a snapshot of every tracked file and folder under one
// root and reports which items changed since the last snapshot. Staleness is
// decided from modification times only; file contents are never compared.
package incremental

// ItemDescriptor records the last known modification time of one item.
type ItemDescriptor struct {
	Path    string
	ModTime int64 // UnixNano
}

// Setting is a named boolean persisted alongside the snapshot.
type Setting struct {
	Name  string
	Value bool
}
