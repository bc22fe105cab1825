package video

import (
	"context"
	"time"
)

// FileChecker defines the interface for checking source files
// This is used to validate that source files exist before analysis
type FileChecker interface {
	// Exists returns true if the file exists
	Exists(path string) bool

	// ModTime returns the file's modification time
	ModTime(path string) (time.Time, error)
}

// Prober reads frame rate and frame count from a video container.
// Implementations return an error wrapping ErrSourceUnreadable when the
// container cannot be opened.
type Prober interface {
	Probe(ctx context.Context, path string) (Source, error)
}

// Frame is one sampled video frame as 8-bit single-channel intensity
type Frame struct {
	// Index is the frame number in the source stream, not the sample number
	Index  int
	Width  int
	Height int
	Gray   []byte
}

// FrameStream is a forward-only sequence of sampled frames
type FrameStream interface {
	// FrameRate returns frames per second of the source
	FrameRate() float64

	// Next returns the next sampled frame. io.EOF marks the end of the stream;
	// any other error means the stream broke mid-way.
	Next() (Frame, error)

	// Close releases decoder resources
	Close() error
}

// FrameDecoder opens a video for sequential sampled-frame reads.
// Every stride-th frame is returned, starting at frame 0.
type FrameDecoder interface {
	Open(ctx context.Context, src Source, stride int) (FrameStream, error)
}

// AudioExtractor defines the interface for audio window extraction
// This is a port that can be implemented by different infrastructure adapters
type AudioExtractor interface {
	// Extract decodes [window.Start, window.End) of the source as mono PCM
	Extract(ctx context.Context, src Source, window ChunkWindow) (AudioChunk, error)
}
