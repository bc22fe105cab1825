package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"skip-analyzer/domain/video"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockRunner records commands and plays back canned behaviour
type mockRunner struct {
	mu       sync.Mutex
	calls    [][]string
	runFunc  func(args []string) error
	output   []byte
	outErr   error
	stream   []byte
	startErr error
}

func (m *mockRunner) record(name string, args []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, append([]string{name}, args...))
}

func (m *mockRunner) Run(ctx context.Context, name string, args ...string) error {
	m.record(name, args)
	if m.runFunc != nil {
		return m.runFunc(args)
	}
	return nil
}

func (m *mockRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	m.record(name, args)
	return m.output, m.outErr
}

func (m *mockRunner) Start(ctx context.Context, name string, args ...string) (io.ReadCloser, error) {
	m.record(name, args)
	if m.startErr != nil {
		return nil, m.startErr
	}
	return io.NopCloser(bytes.NewReader(m.stream)), nil
}

// writeWAV writes 16-bit PCM at the path ffmpeg was told to produce
func writeWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	require.NoError(t, enc.Write(&audio.IntBuffer{
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		Data:           data,
		SourceBitDepth: 16,
	}))
	require.NoError(t, enc.Close())
}

func TestChunkExtractor_Extract(t *testing.T) {
	tempDir := t.TempDir()
	runner := &mockRunner{}
	runner.runFunc = func(args []string) error {
		writeWAV(t, args[len(args)-1], 44100, 1, []int{0, 16384, -16384, 32767})
		return nil
	}

	extractor := NewExtractor(WithExtractorCommandRunner(runner), WithTempDir(tempDir))
	window := video.ChunkWindow{Index: 1, Start: 110, End: 230}

	chunk, err := extractor.Extract(context.Background(), video.Source{Path: "/videos/ep01.mkv"}, window)
	require.NoError(t, err)

	assert.Equal(t, 44100, chunk.SampleRate)
	assert.Equal(t, window, chunk.Window)
	require.Len(t, chunk.Samples, 4)
	assert.InDelta(t, 0.5, chunk.Samples[1], 1e-4)
	assert.InDelta(t, -0.5, chunk.Samples[2], 1e-4)

	require.Len(t, runner.calls, 1)
	args := strings.Join(runner.calls[0], " ")
	assert.Contains(t, args, "ffmpeg -v error -i /videos/ep01.mkv -ss 110.000 -to 230.000")
	assert.Contains(t, args, "-ac 1 -ar 44100")

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary chunk must be removed after success")
}

func TestChunkExtractor_CleansUpOnFailure(t *testing.T) {
	tempDir := t.TempDir()
	runner := &mockRunner{}
	runner.runFunc = func(args []string) error {
		// ffmpeg wrote a partial file before failing
		require.NoError(t, os.WriteFile(args[len(args)-1], []byte("RIFF"), 0o644))
		return errors.New("exit status 1")
	}

	extractor := NewExtractor(WithExtractorCommandRunner(runner), WithTempDir(tempDir))
	_, err := extractor.Extract(context.Background(), video.Source{Path: "in.mp4"}, video.ChunkWindow{Start: 0, End: 120})

	require.Error(t, err)
	assert.ErrorIs(t, err, video.ErrChunkExtraction)

	entries, err := os.ReadDir(tempDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temporary chunk must be removed after failure")
}

func TestChunkExtractor_InvalidWAV(t *testing.T) {
	tempDir := t.TempDir()
	runner := &mockRunner{}
	runner.runFunc = func(args []string) error {
		return os.WriteFile(args[len(args)-1], []byte("not a wav file"), 0o644)
	}

	extractor := NewExtractor(WithExtractorCommandRunner(runner), WithTempDir(tempDir))
	_, err := extractor.Extract(context.Background(), video.Source{Path: "in.mp4"}, video.ChunkWindow{Start: 0, End: 120})

	assert.ErrorIs(t, err, video.ErrChunkExtraction)
	entries, _ := os.ReadDir(tempDir)
	assert.Empty(t, entries)
}

func TestChunkExtractor_EmptyWindow(t *testing.T) {
	runner := &mockRunner{}
	extractor := NewExtractor(WithExtractorCommandRunner(runner))

	_, err := extractor.Extract(context.Background(), video.Source{Path: "in.mp4"}, video.ChunkWindow{Start: 10, End: 10})

	assert.ErrorIs(t, err, video.ErrChunkExtraction)
	assert.Empty(t, runner.calls)
}

func TestChunkExtractor_UniqueTempNames(t *testing.T) {
	extractor := NewExtractor(WithTempDir("/tmp/x"))
	window := video.ChunkWindow{Index: 3, Start: 330, End: 450}

	a := extractor.tempPath(window)
	b := extractor.tempPath(window)

	assert.NotEqual(t, a, b)
	assert.Equal(t, "/tmp/x", filepath.Dir(a))
	assert.True(t, strings.HasPrefix(filepath.Base(a), "chunk_003_"))
}

func TestToMonoFloat_Stereo(t *testing.T) {
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: 8000},
		Data:           []int{16384, 0, -32768, -32768},
		SourceBitDepth: 16,
	}

	got := toMonoFloat(buf)

	require.Len(t, got, 2)
	assert.InDelta(t, 0.25, got[0], 1e-6)
	assert.InDelta(t, -1.0, got[1], 1e-6)
}

func TestVerifyInstalled(t *testing.T) {
	ok := &mockRunner{output: []byte("ffmpeg version 6.1")}
	assert.NoError(t, NewExtractor(WithExtractorCommandRunner(ok)).VerifyInstalled(context.Background()))

	missing := &mockRunner{outErr: errors.New("executable file not found")}
	err := NewExtractor(WithExtractorCommandRunner(missing), WithExtractorFFmpegPath("/opt/ffmpeg")).VerifyInstalled(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/opt/ffmpeg not found")
}
