package bridge

// AssumedFrameRate approximates the encoder's frames per second for progress
// display. It is not read from the encoder configuration.
const AssumedFrameRate = 25

// EstimateTotalFrames returns the expected frame count of an export with
// items clips of clipDuration seconds each.
func EstimateTotalFrames(clipDuration uint32, items int) uint64 {
	if items <= 0 {
		return 0
	}
	return uint64(AssumedFrameRate) * uint64(clipDuration) * uint64(items)
}
