//go:build !detection

package detection

import (
	"context"
	"fmt"

	"skip-analyzer/domain/video"
)

// GocvDecoder is a stub when GoCV/OpenCV is not available
type GocvDecoder struct{}

// NewGocvDecoder creates a stub decoder (requires building with -tags=detection)
func NewGocvDecoder() *GocvDecoder {
	return &GocvDecoder{}
}

// Open returns an error indicating the OpenCV decoder is not available
func (d *GocvDecoder) Open(ctx context.Context, src video.Source, stride int) (video.FrameStream, error) {
	return nil, fmt.Errorf("%w: build with '-tags=detection' and install OpenCV/GoCV", video.ErrDecoderUnavailable)
}

// Ensure GocvDecoder implements video.FrameDecoder
var _ video.FrameDecoder = (*GocvDecoder)(nil)
