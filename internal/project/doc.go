// Package project holds the editable state of a blind test: the clip
// registry, the ordered timeline of slots and the export settings, plus the
// JSON save document they round-trip through.
//
// Registry and Timeline are owned values guarded by their own mutexes. The
// export pipeline never sees them directly; Snapshot copies what it needs
// into an immutable export.Request.
package project
