// Package ffprobe reads media durations through the ffprobe binary.
//
// Key types:
//   - Prober: runs ffprobe with a fixed csv duration query
//   - Executor: command execution seam used by tests
//
// Every failure (launch error, non-zero exit, empty or unparseable output)
// wraps ErrProbeFailed so callers can classify it with errors.Is.
package ffprobe
