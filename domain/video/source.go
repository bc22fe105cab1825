package video

import (
	"errors"
	"time"
)

var (
	// ErrSourceNotFound is returned when the video path does not exist
	ErrSourceNotFound = errors.New("source video not found")

	// ErrSourceUnreadable is returned when the container cannot be opened or probed
	ErrSourceUnreadable = errors.New("source video cannot be opened")

	// ErrChunkExtraction is returned when a single audio window fails to decode
	ErrChunkExtraction = errors.New("audio chunk extraction failed")

	// ErrDecoderUnavailable is returned by decoders compiled without their backend
	ErrDecoderUnavailable = errors.New("frame decoder not available")
)

// Source describes a video file at the start of an analysis run
type Source struct {
	Path       string
	ModTime    time.Time
	FrameRate  float64
	FrameCount int

	// Width and Height are the decoded frame size, zero when unknown
	Width  int
	Height int
}

// Duration returns the length of the video in seconds derived from
// frame count and frame rate
func (s Source) Duration() float64 {
	if s.FrameRate <= 0 {
		return 0
	}
	return float64(s.FrameCount) / s.FrameRate
}
