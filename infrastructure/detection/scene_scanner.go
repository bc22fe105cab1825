package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"
)

// FrameScanner implements detection.SceneScanner by comparing consecutive
// sampled frames pixel by pixel
type FrameScanner struct {
	decoder   video.FrameDecoder
	stride    int
	threshold float64
	logger    *slog.Logger
}

// FrameScannerOption is a functional option for configuring FrameScanner
type FrameScannerOption func(*FrameScanner)

// WithScannerLogger sets the logger used for stream warnings
func WithScannerLogger(logger *slog.Logger) FrameScannerOption {
	return func(s *FrameScanner) {
		s.logger = logger
	}
}

// NewFrameScanner creates a scanner reading frames from decoder
func NewFrameScanner(decoder video.FrameDecoder, t detection.Thresholds, opts ...FrameScannerOption) *FrameScanner {
	s := &FrameScanner{
		decoder:   decoder,
		stride:    t.FrameStride,
		threshold: t.FrameDiffThreshold,
		logger:    slog.New(slog.DiscardHandler),
	}
	if s.stride < 1 {
		s.stride = 1
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Scan implements detection.SceneScanner
func (s *FrameScanner) Scan(ctx context.Context, src video.Source) ([]detection.TimedEvent, error) {
	stream, err := s.decoder.Open(ctx, src, s.stride)
	if err != nil {
		if errors.Is(err, video.ErrSourceUnreadable) || errors.Is(err, video.ErrDecoderUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, src.Path, err)
	}
	defer stream.Close()

	fps := stream.FrameRate()
	if fps <= 0 {
		fps = src.FrameRate
	}
	if fps <= 0 {
		return nil, fmt.Errorf("%w: %s: unknown frame rate", video.ErrSourceUnreadable, src.Path)
	}

	var (
		events []detection.TimedEvent
		prev   video.Frame
		have   bool
	)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		frame, err := stream.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			s.logger.Warn("frame stream ended early, keeping partial scan",
				"path", src.Path, "events", len(events), "error", err)
			break
		}

		if have && sameSize(prev, frame) {
			if MeanAbsDiff(prev.Gray, frame.Gray) > s.threshold {
				events = append(events, detection.SceneChangeAt(float64(frame.Index)/fps))
			}
		}
		prev, have = frame, true
	}

	return events, nil
}

// MeanAbsDiff returns the mean absolute difference of two equal-length
// intensity buffers
func MeanAbsDiff(a, b []byte) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var sum uint64
	for i := range a {
		if a[i] > b[i] {
			sum += uint64(a[i] - b[i])
		} else {
			sum += uint64(b[i] - a[i])
		}
	}
	return float64(sum) / float64(len(a))
}

func sameSize(a, b video.Frame) bool {
	return a.Width == b.Width && a.Height == b.Height && len(a.Gray) == len(b.Gray)
}

// Ensure FrameScanner implements detection.SceneScanner
var _ detection.SceneScanner = (*FrameScanner)(nil)
