package detection

import (
	"context"
	"errors"
	"io"
	"testing"

	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeStream plays back frames, then ends with err (io.EOF when nil)
type fakeStream struct {
	fps    float64
	frames []video.Frame
	err    error
	closed bool
}

func (s *fakeStream) FrameRate() float64 { return s.fps }

func (s *fakeStream) Next() (video.Frame, error) {
	if len(s.frames) == 0 {
		if s.err != nil {
			return video.Frame{}, s.err
		}
		return video.Frame{}, io.EOF
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, nil
}

func (s *fakeStream) Close() error {
	s.closed = true
	return nil
}

type fakeDecoder struct {
	stream  *fakeStream
	openErr error
	stride  int
}

func (d *fakeDecoder) Open(ctx context.Context, src video.Source, stride int) (video.FrameStream, error) {
	d.stride = stride
	if d.openErr != nil {
		return nil, d.openErr
	}
	return d.stream, nil
}

func solid(index, w, h int, value byte) video.Frame {
	gray := make([]byte, w*h)
	for i := range gray {
		gray[i] = value
	}
	return video.Frame{Index: index, Width: w, Height: h, Gray: gray}
}

// sampled builds frames at every stride-th index with the given intensities
func sampled(stride int, values ...byte) []video.Frame {
	frames := make([]video.Frame, len(values))
	for i, v := range values {
		frames[i] = solid(i*stride, 4, 4, v)
	}
	return frames
}

func TestFrameScanner_AbruptChange(t *testing.T) {
	stream := &fakeStream{fps: 25, frames: sampled(5, 10, 12, 10, 200, 201, 199)}
	decoder := &fakeDecoder{stream: stream}
	scanner := NewFrameScanner(decoder, detection.DefaultThresholds())

	events, err := scanner.Scan(context.Background(), video.Source{Path: "in.mp4"})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, detection.SceneChange, events[0].Kind)
	assert.InDelta(t, 15.0/25.0, events[0].Seconds, 1e-9)
	assert.Equal(t, 5, decoder.stride)
	assert.True(t, stream.closed)
}

func TestFrameScanner_ThresholdIsStrict(t *testing.T) {
	thresholds := detection.DefaultThresholds()
	stream := &fakeStream{fps: 10, frames: sampled(5, 0, 70, 141)}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, thresholds)

	events, err := scanner.Scan(context.Background(), video.Source{})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 1.0, events[0].Seconds, 1e-9)
}

func TestFrameScanner_ReferenceAlwaysAdvances(t *testing.T) {
	// a slow fade never exceeds the threshold between neighbours
	stream := &fakeStream{fps: 30, frames: sampled(5, 0, 60, 120, 180, 240)}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, detection.DefaultThresholds())

	events, err := scanner.Scan(context.Background(), video.Source{})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFrameScanner_PartialStream(t *testing.T) {
	stream := &fakeStream{
		fps:    25,
		frames: sampled(5, 0, 255),
		err:    errors.New("read frame 10: unexpected EOF"),
	}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, detection.DefaultThresholds())

	events, err := scanner.Scan(context.Background(), video.Source{})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 0.2, events[0].Seconds, 1e-9)
}

func TestFrameScanner_SizeChangeResetsReference(t *testing.T) {
	stream := &fakeStream{fps: 25, frames: []video.Frame{
		solid(0, 4, 4, 0),
		solid(5, 8, 8, 255),
		solid(10, 8, 8, 255),
	}}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, detection.DefaultThresholds())

	events, err := scanner.Scan(context.Background(), video.Source{})

	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestFrameScanner_OpenFailure(t *testing.T) {
	scanner := NewFrameScanner(&fakeDecoder{openErr: errors.New("moov atom not found")}, detection.DefaultThresholds())

	_, err := scanner.Scan(context.Background(), video.Source{Path: "broken.mp4"})

	assert.ErrorIs(t, err, video.ErrSourceUnreadable)
}

func TestFrameScanner_DecoderUnavailable(t *testing.T) {
	scanner := NewFrameScanner(NewGocvDecoder(), detection.DefaultThresholds())

	_, err := scanner.Scan(context.Background(), video.Source{Path: "in.mp4"})

	// the OpenCV build reports a missing file as unreadable instead
	assert.True(t, errors.Is(err, video.ErrDecoderUnavailable) || errors.Is(err, video.ErrSourceUnreadable))
}

func TestFrameScanner_Cancelled(t *testing.T) {
	stream := &fakeStream{fps: 25, frames: sampled(5, 0, 255, 0)}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, detection.DefaultThresholds())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanner.Scan(ctx, video.Source{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestFrameScanner_FallsBackToSourceFrameRate(t *testing.T) {
	stream := &fakeStream{frames: sampled(5, 0, 255)}
	scanner := NewFrameScanner(&fakeDecoder{stream: stream}, detection.DefaultThresholds())

	events, err := scanner.Scan(context.Background(), video.Source{FrameRate: 50})

	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.InDelta(t, 0.1, events[0].Seconds, 1e-9)
}

func TestMeanAbsDiff(t *testing.T) {
	assert.Equal(t, 0.0, MeanAbsDiff(nil, nil))
	assert.Equal(t, 0.0, MeanAbsDiff([]byte{1}, []byte{1, 2}))
	assert.Equal(t, 127.5, MeanAbsDiff([]byte{0, 255}, []byte{255, 255}))
	assert.Equal(t, 5.0, MeanAbsDiff([]byte{10, 0}, []byte{0, 10}))
}
