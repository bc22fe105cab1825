package detection

import (
	"context"

	"skip-analyzer/domain/video"
)

// SceneScanner defines the interface for detecting visual scene changes
type SceneScanner interface {
	// Scan reads sampled frames of the source and returns SceneChange events
	// sorted by time. A stream that breaks mid-way yields a partial result.
	Scan(ctx context.Context, src video.Source) ([]TimedEvent, error)
}

// OnsetDetector defines the interface for picking audio onset peaks
type OnsetDetector interface {
	// Detect returns AudioPeak events with absolute source timestamps
	Detect(chunk video.AudioChunk) []TimedEvent
}

// EventKind identifies which signal produced an event
type EventKind string

const (
	// SceneChange is a strong visual discontinuity between sampled frames
	SceneChange EventKind = "scene_change"

	// AudioPeak is a local maximum of the onset-strength envelope
	AudioPeak EventKind = "audio_peak"
)

// TimedEvent is a detection at an absolute position in the source
type TimedEvent struct {
	// Kind is the signal the event came from
	Kind EventKind

	// Seconds is the event's position in the video
	Seconds float64
}

// SceneChangeAt returns a scene change event at t seconds
func SceneChangeAt(t float64) TimedEvent {
	return TimedEvent{Kind: SceneChange, Seconds: t}
}

// AudioPeakAt returns an audio peak event at t seconds
func AudioPeakAt(t float64) TimedEvent {
	return TimedEvent{Kind: AudioPeak, Seconds: t}
}
