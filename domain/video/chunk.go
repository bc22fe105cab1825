package video

import (
	"fmt"
	"math"
)

const (
	// DefaultChunkDuration is the length of one audio window in seconds
	DefaultChunkDuration = 120.0

	// DefaultChunkOverlap is the overlap between consecutive windows in seconds
	DefaultChunkOverlap = 10.0

	// DefaultSampleRate is the rate audio windows are resampled to
	DefaultSampleRate = 44100
)

// ChunkWindow is one [Start, End) slice of the source timeline in seconds.
// OwnedStart/OwnedEnd mark the part of the window whose detections are kept:
// each overlap is split at its midpoint between the two windows sharing it.
type ChunkWindow struct {
	Index      int
	Start      float64
	End        float64
	OwnedStart float64
	OwnedEnd   float64
}

// Duration returns the length of the window in seconds
func (w ChunkWindow) Duration() float64 {
	return w.End - w.Start
}

// Owns reports whether an absolute timestamp falls inside the owned range
func (w ChunkWindow) Owns(seconds float64) bool {
	return seconds >= w.OwnedStart && seconds < w.OwnedEnd
}

// String returns a human-readable representation for logging
func (w ChunkWindow) String() string {
	return fmt.Sprintf("chunk %d: %s-%s", w.Index, FormatSeconds(w.Start), FormatSeconds(w.End))
}

// PlanChunks splits [0, duration) into overlapping windows.
// Windows start every chunkDuration-overlap seconds; the last one is clipped
// to the duration. The last window owns everything up to +Inf so peaks
// found at the very end are never dropped.
func PlanChunks(duration, chunkDuration, overlap float64) ([]ChunkWindow, error) {
	if chunkDuration <= 0 {
		return nil, fmt.Errorf("chunk duration must be positive, got %v", chunkDuration)
	}
	if overlap < 0 || overlap >= chunkDuration {
		return nil, fmt.Errorf("overlap %v must be in [0, %v)", overlap, chunkDuration)
	}
	if duration <= 0 {
		return nil, nil
	}

	stride := chunkDuration - overlap
	var windows []ChunkWindow
	for i := 0; ; i++ {
		start := float64(i) * stride
		if start >= duration {
			break
		}
		end := math.Min(start+chunkDuration, duration)
		windows = append(windows, ChunkWindow{
			Index: i,
			Start: start,
			End:   end,
		})
	}

	for i := range windows {
		if i == 0 {
			windows[i].OwnedStart = 0
		} else {
			windows[i].OwnedStart = windows[i-1].OwnedEnd
		}
		if i == len(windows)-1 {
			windows[i].OwnedEnd = math.Inf(1)
		} else {
			next := windows[i+1]
			windows[i].OwnedEnd = next.Start + (windows[i].End-next.Start)/2
		}
	}

	return windows, nil
}

// AudioChunk holds mono samples normalised to [-1, 1] for one window
type AudioChunk struct {
	Window     ChunkWindow
	Samples    []float32
	SampleRate int
}

// Seconds returns the decoded length of the chunk
func (c AudioChunk) Seconds() float64 {
	if c.SampleRate <= 0 {
		return 0
	}
	return float64(len(c.Samples)) / float64(c.SampleRate)
}
