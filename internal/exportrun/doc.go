// Package exportrun assembles a project export: it opens the project
// document, checks the output location, snapshots the timeline into an
// export request and wires the ffmpeg driver into a bridge session. The CLI
// export command and the HTTP bridge share it.
package exportrun
