//go:build detection

package detection

import (
	"context"
	"fmt"
	"io"

	"skip-analyzer/domain/video"

	"gocv.io/x/gocv"
)

// GocvDecoder implements video.FrameDecoder using OpenCV's VideoCapture
type GocvDecoder struct{}

// NewGocvDecoder creates an OpenCV-backed frame decoder
func NewGocvDecoder() *GocvDecoder {
	return &GocvDecoder{}
}

// Open implements video.FrameDecoder
func (d *GocvDecoder) Open(ctx context.Context, src video.Source, stride int) (video.FrameStream, error) {
	if stride < 1 {
		stride = 1
	}

	capture, err := gocv.VideoCaptureFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, src.Path, err)
	}
	if !capture.IsOpened() {
		capture.Close()
		return nil, fmt.Errorf("%w: %s", video.ErrSourceUnreadable, src.Path)
	}

	return &gocvStream{
		capture:   capture,
		frame:     gocv.NewMat(),
		gray:      gocv.NewMat(),
		frameRate: capture.Get(gocv.VideoCaptureFPS),
		stride:    stride,
	}, nil
}

// gocvStream reads every stride-th frame, grabbing the rest without decoding
type gocvStream struct {
	capture   *gocv.VideoCapture
	frame     gocv.Mat
	gray      gocv.Mat
	frameRate float64
	stride    int
	position  int
}

func (s *gocvStream) FrameRate() float64 {
	return s.frameRate
}

func (s *gocvStream) Next() (video.Frame, error) {
	if s.position > 0 && s.stride > 1 {
		s.capture.Grab(s.stride - 1)
		s.position += s.stride - 1
	}

	if ok := s.capture.Read(&s.frame); !ok || s.frame.Empty() {
		return video.Frame{}, io.EOF
	}
	index := s.position
	s.position++

	if s.frame.Channels() == 1 {
		s.frame.CopyTo(&s.gray)
	} else {
		gocv.CvtColor(s.frame, &s.gray, gocv.ColorBGRToGray)
	}

	return video.Frame{
		Index:  index,
		Width:  s.gray.Cols(),
		Height: s.gray.Rows(),
		Gray:   s.gray.ToBytes(),
	}, nil
}

func (s *gocvStream) Close() error {
	s.frame.Close()
	s.gray.Close()
	return s.capture.Close()
}

// Ensure GocvDecoder implements video.FrameDecoder
var _ video.FrameDecoder = (*GocvDecoder)(nil)
