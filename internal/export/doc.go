// Package export drives a single ffmpeg export and turns its progress output
// into typed events.
//
// A Driver walks ready -> exporting -> finished. In ready it probes the
// countdown, builds the argument list with the filtergraph package and spawns
// the encoder. In exporting it reads one key=value line at a time from the
// encoder's stdout and reports Frame, Done or Error events. Once finished it
// never reports anything again.
//
// The driver owns the subprocess. Close terminates and reaps it on every
// path, including cancellation through the context passed to Next.
package export
