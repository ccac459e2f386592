package export

import (
	"errors"

	"blindtest/internal/filtergraph"
	"blindtest/internal/media/ffprobe"
)

var (
	// ErrProbeFailed reports that the countdown duration could not be read.
	ErrProbeFailed = ffprobe.ErrProbeFailed
	// ErrInvalidDuration reports a countdown longer than the clip duration.
	ErrInvalidDuration = filtergraph.ErrInvalidDuration
	// ErrSpawnFailed reports that the encoder process could not be launched.
	ErrSpawnFailed = errors.New("encoder spawn failed")
	// ErrStreamFormat reports a progress line that is not key=value or an
	// unreadable progress stream.
	ErrStreamFormat = errors.New("malformed progress stream")
	// ErrEncoderExited reports a non-zero encoder exit without a progress=end marker.
	ErrEncoderExited = errors.New("encoder exited with error")
)
