package ffmpeg

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"skip-analyzer/domain/video"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/google/uuid"
)

// DefaultTimeout bounds a single ffmpeg invocation
const DefaultTimeout = 5 * time.Minute

// ChunkExtractor implements video.AudioExtractor using ffmpeg.
// Each window is transcoded to a temporary mono WAV file that is removed
// before Extract returns.
type ChunkExtractor struct {
	ffmpegPath string
	runner     CommandRunner
	tempDir    string
	sampleRate int
	timeout    time.Duration
	logger     *slog.Logger
}

// ExtractorOption is a functional option for configuring ChunkExtractor
type ExtractorOption func(*ChunkExtractor)

// WithExtractorFFmpegPath sets a custom ffmpeg executable path
func WithExtractorFFmpegPath(path string) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.ffmpegPath = path
	}
}

// WithExtractorCommandRunner sets a custom command runner (for testing)
func WithExtractorCommandRunner(runner CommandRunner) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.runner = runner
	}
}

// WithTempDir sets where temporary chunk files are written
func WithTempDir(dir string) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.tempDir = dir
	}
}

// WithSampleRate sets the resampling target in Hz
func WithSampleRate(rate int) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.sampleRate = rate
	}
}

// WithTimeout bounds each ffmpeg invocation
func WithTimeout(d time.Duration) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.timeout = d
	}
}

// WithExtractorLogger sets the logger used for cleanup warnings
func WithExtractorLogger(logger *slog.Logger) ExtractorOption {
	return func(e *ChunkExtractor) {
		e.logger = logger
	}
}

// NewExtractor creates a new FFmpeg-based chunk extractor
func NewExtractor(opts ...ExtractorOption) *ChunkExtractor {
	e := &ChunkExtractor{
		ffmpegPath: "ffmpeg",
		runner:     &ExecCommandRunner{},
		tempDir:    os.TempDir(),
		sampleRate: video.DefaultSampleRate,
		timeout:    DefaultTimeout,
		logger:     slog.New(slog.DiscardHandler),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Extract implements video.AudioExtractor
func (e *ChunkExtractor) Extract(ctx context.Context, src video.Source, window video.ChunkWindow) (video.AudioChunk, error) {
	if window.End <= window.Start {
		return video.AudioChunk{}, fmt.Errorf("%w: empty window %s", video.ErrChunkExtraction, window)
	}

	tmp := e.tempPath(window)
	defer e.release(tmp)

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	if err := e.runner.Run(runCtx, e.ffmpegPath, e.args(src.Path, window, tmp)...); err != nil {
		return video.AudioChunk{}, fmt.Errorf("%w: %s: %v", video.ErrChunkExtraction, window, err)
	}

	samples, rate, err := decodeWAV(tmp)
	if err != nil {
		return video.AudioChunk{}, fmt.Errorf("%w: %s: %v", video.ErrChunkExtraction, window, err)
	}

	return video.AudioChunk{
		Window:     window,
		Samples:    samples,
		SampleRate: rate,
	}, nil
}

// args builds the ffmpeg command line for one window
func (e *ChunkExtractor) args(input string, window video.ChunkWindow, output string) []string {
	return []string{
		"-v", "error",
		"-i", input,
		"-ss", formatSeconds(window.Start),
		"-to", formatSeconds(window.End),
		"-vn",      // No video
		"-ac", "1", // Mono
		"-ar", strconv.Itoa(e.sampleRate),
		"-acodec", "pcm_s16le",
		"-f", "wav",
		"-y", // Overwrite output file if it exists
		output,
	}
}

// tempPath returns a file name unique across concurrent extractions of the same window
func (e *ChunkExtractor) tempPath(window video.ChunkWindow) string {
	return filepath.Join(e.tempDir, fmt.Sprintf("chunk_%03d_%s.wav", window.Index, uuid.NewString()))
}

// release removes the temporary artifact on every exit path
func (e *ChunkExtractor) release(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Warn("failed to remove temporary chunk", "path", path, "error", err)
	}
}

// VerifyInstalled checks that ffmpeg is available
func (e *ChunkExtractor) VerifyInstalled(ctx context.Context) error {
	return VerifyInstalled(ctx, e.runner, e.ffmpegPath)
}

// decodeWAV loads a PCM WAV file as mono float samples in [-1, 1]
func decodeWAV(path string) ([]float32, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to open decoded audio: %w", err)
	}
	defer f.Close()

	decoder := wav.NewDecoder(f)
	if !decoder.IsValidFile() {
		return nil, 0, fmt.Errorf("decoded audio is not a valid WAV file")
	}

	buf, err := decoder.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to read PCM buffer: %w", err)
	}

	return toMonoFloat(buf), int(decoder.SampleRate), nil
}

// toMonoFloat averages interleaved channels and scales by the source bit depth
func toMonoFloat(buf *audio.IntBuffer) []float32 {
	channels := 1
	if buf.Format != nil && buf.Format.NumChannels > 1 {
		channels = buf.Format.NumChannels
	}
	depth := buf.SourceBitDepth
	if depth <= 0 {
		depth = 16
	}
	scale := float32(int64(1) << uint(depth-1))

	frames := len(buf.Data) / channels
	out := make([]float32, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += buf.Data[i*channels+c]
		}
		out[i] = float32(sum) / float32(channels) / scale
	}
	return out
}

func formatSeconds(s float64) string {
	return strconv.FormatFloat(s, 'f', 3, 64)
}

// Ensure ChunkExtractor implements video.AudioExtractor
var _ video.AudioExtractor = (*ChunkExtractor)(nil)
