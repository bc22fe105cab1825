package config

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skip-analyzer/domain/detection"

	"github.com/sethvargo/go-envconfig"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noEnv() envconfig.Lookuper {
	return envconfig.MapLookuper(map[string]string{})
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, detection.DefaultThresholds(), cfg.Detection.Thresholds())
	assert.Equal(t, 4, cfg.Detection.Workers)
	assert.Equal(t, BackendFile, cfg.Cache.Backend)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadWithLookuper(filepath.Join(t.TempDir(), "absent.yaml"), noEnv())

	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileOverlaysDefaults(t *testing.T) {
	path := writeConfig(t, `
ffmpeg:
  path: /opt/ffmpeg/bin/ffmpeg
  timeout: 90s
detection:
  frame_stride: 3
  min_skip_duration: 15
cache:
  backend: none
`)

	cfg, err := LoadWithLookuper(path, noEnv())
	require.NoError(t, err)

	assert.Equal(t, "/opt/ffmpeg/bin/ffmpeg", cfg.FFmpeg.Path)
	assert.Equal(t, "ffprobe", cfg.FFmpeg.FFprobePath, "unset keys keep their defaults")
	assert.Equal(t, 90*time.Second, cfg.FFmpeg.Timeout)
	assert.Equal(t, 3, cfg.Detection.FrameStride)
	assert.Equal(t, 15.0, cfg.Detection.MinSkipDuration)
	assert.Equal(t, 70.0, cfg.Detection.FrameDiffThreshold)
	assert.Equal(t, BackendNone, cfg.Cache.Backend)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
detection:
  frame_stride: 3
cache:
  backend: file
`)
	env := envconfig.MapLookuper(map[string]string{
		"SKIP_DETECTION_FRAME_STRIDE": "10",
		"SKIP_DETECTION_WORKERS":      "2",
		"SKIP_CACHE_BACKEND":          "s3",
		"SKIP_CACHE_S3_BUCKET":        "media-analysis",
		"SKIP_CACHE_S3_PREFIX":        "skip/",
		"SKIP_FFMPEG_TIMEOUT":         "2m",
		"SKIP_LOG_FORMAT":             "json",
		"FRAME_STRIDE":                "99",
	})

	cfg, err := LoadWithLookuper(path, env)
	require.NoError(t, err)

	assert.Equal(t, 10, cfg.Detection.FrameStride)
	assert.Equal(t, 2, cfg.Detection.Workers)
	assert.Equal(t, BackendS3, cfg.Cache.Backend)
	assert.Equal(t, "media-analysis", cfg.Cache.S3.Bucket)
	assert.Equal(t, "skip/", cfg.Cache.S3.Prefix)
	assert.Equal(t, 2*time.Minute, cfg.FFmpeg.Timeout)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown backend", body: "cache:\n  backend: redis\n"},
		{name: "s3 without bucket", body: "cache:\n  backend: s3\n"},
		{name: "overlap not below duration", body: "detection:\n  chunk_duration: 10\n  chunk_overlap: 10\n"},
		{name: "zero stride", body: "detection:\n  frame_stride: 0\n"},
		{name: "zero workers", body: "detection:\n  workers: 0\n"},
		{name: "unknown decoder", body: "detection:\n  decoder: vlc\n"},
		{name: "unknown log level", body: "logging:\n  level: loud\n"},
		{name: "not yaml", body: "ffmpeg: [unterminated\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadWithLookuper(writeConfig(t, tt.body), noEnv())
			assert.Error(t, err)
		})
	}
}

func TestLoad_BadEnvironmentValue(t *testing.T) {
	env := envconfig.MapLookuper(map[string]string{"SKIP_DETECTION_FRAME_STRIDE": "five"})

	_, err := LoadWithLookuper(filepath.Join(t.TempDir(), "absent.yaml"), env)

	assert.Error(t, err)
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Detection.MergeGap = 2.5
	cfg.Cache.Directory = "/srv/videos"

	require.NoError(t, Save(cfg, path))

	loaded, err := LoadWithLookuper(path, noEnv())
	require.NoError(t, err)
	assert.Equal(t, cfg, loaded)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	cfg := Default()
	cfg.Logging = LoggingConfig{Level: "warn", Format: "json"}

	logger := cfg.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "path", "ep01.mkv")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"path":"ep01.mkv"`)
}
