package logging

// ProgressSampler suppresses repetitive frame progress logs while preserving
// signal when the completion percentage crosses a bucket boundary.
type ProgressSampler struct {
	bucketSize float64
	lastBucket int
}

// NewProgressSampler constructs a sampler that emits when the percent crosses
// bucket boundaries (default 5%).
func NewProgressSampler(bucketSize float64) *ProgressSampler {
	if bucketSize <= 0 {
		bucketSize = 5
	}
	return &ProgressSampler{bucketSize: bucketSize, lastBucket: -1}
}

// ShouldLog reports whether a frame update should be logged. A zero total means
// the expected frame count is unknown; the first update is logged and later
// ones are suppressed. Frame counts past the estimate are clamped to 100%.
func (s *ProgressSampler) ShouldLog(frame, total uint64) bool {
	if s == nil {
		return true
	}
	if total == 0 {
		if s.lastBucket < 0 {
			s.lastBucket = 0
			return true
		}
		return false
	}
	percent := Percent(frame, total)
	bucket := int(percent / s.bucketSize)
	if bucket > s.lastBucket {
		s.lastBucket = bucket
		return true
	}
	return false
}

// Reset clears the sampler state (e.g. when a new export starts).
func (s *ProgressSampler) Reset() {
	if s == nil {
		return
	}
	s.lastBucket = -1
}

// Percent converts a frame count into a completion percentage clamped to [0, 100].
func Percent(frame, total uint64) float64 {
	if total == 0 {
		return 0
	}
	percent := float64(frame) / float64(total) * 100
	if percent > 100 {
		return 100
	}
	return percent
}
