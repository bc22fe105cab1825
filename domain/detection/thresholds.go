package detection

import (
	"fmt"

	"skip-analyzer/domain/video"
)

// Thresholds holds every numeric knob of the detectors. It is passed by
// value to each component at construction and never mutated afterwards.
type Thresholds struct {
	// FrameStride samples every Nth video frame
	FrameStride int

	// FrameDiffThreshold is the mean absolute per-pixel intensity
	// difference (0-255) above which a sampled frame is a scene change
	FrameDiffThreshold float64

	// SampleRate is the rate audio windows are resampled to, in Hz
	SampleRate int

	// ChunkDuration and ChunkOverlap size the audio windows, in seconds
	ChunkDuration float64
	ChunkOverlap  float64

	// PreMax/PostMax are the onset frames before/after n compared for a local maximum
	PreMax  int
	PostMax int

	// PreAvg/PostAvg are the onset frames before/after n averaged for the dynamic threshold
	PreAvg  int
	PostAvg int

	// AudioDelta is the minimum height of a peak above the local average
	AudioDelta float64

	// AudioWait is the minimum number of onset frames between accepted peaks
	AudioWait int

	// MinSkipDuration is the minimum event-free gap, in seconds, that becomes a raw interval
	MinSkipDuration float64

	// MergeGap is the largest distance, in seconds, between intervals that are coalesced
	MergeGap float64
}

// DefaultThresholds returns the tuned defaults
func DefaultThresholds() Thresholds {
	return Thresholds{
		FrameStride:        5,
		FrameDiffThreshold: 70,
		SampleRate:         video.DefaultSampleRate,
		ChunkDuration:      video.DefaultChunkDuration,
		ChunkOverlap:       video.DefaultChunkOverlap,
		PreMax:             10,
		PostMax:            10,
		PreAvg:             20,
		PostAvg:            20,
		AudioDelta:         0.5,
		AudioWait:          20,
		MinSkipDuration:    10,
		MergeGap:           1,
	}
}

// Validate checks the record for values no detector can work with
func (t Thresholds) Validate() error {
	if t.FrameStride < 1 {
		return fmt.Errorf("frame stride must be at least 1, got %d", t.FrameStride)
	}
	if t.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", t.SampleRate)
	}
	if t.ChunkDuration <= 0 {
		return fmt.Errorf("chunk duration must be positive, got %v", t.ChunkDuration)
	}
	if t.ChunkOverlap < 0 || t.ChunkOverlap >= t.ChunkDuration {
		return fmt.Errorf("chunk overlap %v must be in [0, %v)", t.ChunkOverlap, t.ChunkDuration)
	}
	if t.PreMax < 0 || t.PostMax < 0 || t.PreAvg < 0 || t.PostAvg < 0 || t.AudioWait < 0 {
		return fmt.Errorf("peak picking windows must not be negative")
	}
	if t.MinSkipDuration < 0 || t.MergeGap < 0 {
		return fmt.Errorf("interval durations must not be negative")
	}
	return nil
}
