// Package filtergraph builds the ffmpeg argument list that renders a blind
// test video.
//
// The graph decodes the countdown once and splits it so a copy precedes every
// clip. Each clip contributes the countdown copy, a looping still image and a
// trimmed music segment; all sub-streams are letterboxed to 1920x1080, faded
// out over their final second and concatenated in timeline order.
//
// Everything here is pure string assembly. Build never touches the
// filesystem and never panics on degenerate input.
package filtergraph
