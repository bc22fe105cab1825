package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"io"

	"skip-analyzer/domain/video"
)

// RawFrameDecoder implements video.FrameDecoder by piping ffmpeg's rawvideo
// output. ffmpeg drops the unsampled frames itself so only every stride-th
// frame crosses the pipe, already converted to 8-bit gray.
type RawFrameDecoder struct {
	ffmpegPath string
	runner     CommandRunner
	prober     *Prober
}

// FrameDecoderOption is a functional option for configuring RawFrameDecoder
type FrameDecoderOption func(*RawFrameDecoder)

// WithDecoderFFmpegPath sets a custom ffmpeg executable path
func WithDecoderFFmpegPath(path string) FrameDecoderOption {
	return func(d *RawFrameDecoder) {
		d.ffmpegPath = path
	}
}

// WithDecoderCommandRunner sets a custom command runner (for testing)
func WithDecoderCommandRunner(runner CommandRunner) FrameDecoderOption {
	return func(d *RawFrameDecoder) {
		d.runner = runner
	}
}

// NewRawFrameDecoder creates a decoder that probes geometry with prober
// when the source does not carry it
func NewRawFrameDecoder(prober *Prober, opts ...FrameDecoderOption) *RawFrameDecoder {
	d := &RawFrameDecoder{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
		prober:     prober,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Open implements video.FrameDecoder
func (d *RawFrameDecoder) Open(ctx context.Context, src video.Source, stride int) (video.FrameStream, error) {
	if stride < 1 {
		stride = 1
	}

	info, err := d.geometry(ctx, src)
	if err != nil {
		return nil, err
	}
	if info.Width <= 0 || info.Height <= 0 {
		return nil, fmt.Errorf("%w: unknown frame size %dx%d", video.ErrSourceUnreadable, info.Width, info.Height)
	}

	args := []string{"-v", "error", "-i", src.Path, "-an"}
	if stride > 1 {
		args = append(args, "-vf", fmt.Sprintf("select=not(mod(n\\,%d))", stride), "-fps_mode", "passthrough")
	}
	args = append(args, "-f", "rawvideo", "-pix_fmt", "gray", "-")

	out, err := d.runner.Start(ctx, d.ffmpegPath, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, src.Path, err)
	}

	return &rawFrameStream{
		r:         out,
		width:     info.Width,
		height:    info.Height,
		frameRate: info.FrameRate,
		stride:    stride,
	}, nil
}

// geometry takes the frame size from src, probing only when it is missing
func (d *RawFrameDecoder) geometry(ctx context.Context, src video.Source) (StreamInfo, error) {
	if src.Width > 0 && src.Height > 0 && src.FrameRate > 0 {
		return StreamInfo{Width: src.Width, Height: src.Height, FrameRate: src.FrameRate, FrameCount: src.FrameCount}, nil
	}
	return d.prober.ProbeStream(ctx, src.Path)
}

// rawFrameStream reads fixed-size gray frames from an ffmpeg pipe
type rawFrameStream struct {
	r         io.ReadCloser
	width     int
	height    int
	frameRate float64
	stride    int
	sampled   int
}

func (s *rawFrameStream) FrameRate() float64 {
	return s.frameRate
}

// Next reads one frame. A clean end of the pipe is io.EOF; a frame cut
// short is reported as a broken stream.
func (s *rawFrameStream) Next() (video.Frame, error) {
	buf := make([]byte, s.width*s.height)
	if _, err := io.ReadFull(s.r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			return video.Frame{}, io.EOF
		}
		return video.Frame{}, fmt.Errorf("read frame %d: %w", s.sampled*s.stride, err)
	}

	frame := video.Frame{
		Index:  s.sampled * s.stride,
		Width:  s.width,
		Height: s.height,
		Gray:   buf,
	}
	s.sampled++
	return frame, nil
}

func (s *rawFrameStream) Close() error {
	return s.r.Close()
}

// Ensure RawFrameDecoder implements video.FrameDecoder
var _ video.FrameDecoder = (*RawFrameDecoder)(nil)
