package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"skip-analyzer/domain/detection"
	"skip-analyzer/infrastructure/ffmpeg"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the CLI looks for its configuration file
const DefaultPath = "config/config.yaml"

// EnvPrefix namespaces environment overrides, e.g. SKIP_CACHE_BACKEND
const EnvPrefix = "SKIP_"

// Cache backends
const (
	BackendFile = "file"
	BackendS3   = "s3"
	BackendNone = "none"
)

// Frame decoders
const (
	DecoderFFmpeg = "ffmpeg"
	DecoderGocv   = "gocv"
)

// Config represents the complete application configuration
type Config struct {
	FFmpeg    FFmpegConfig    `yaml:"ffmpeg" env:", prefix=FFMPEG_"`
	Detection DetectionConfig `yaml:"detection" env:", prefix=DETECTION_"`
	Cache     CacheConfig     `yaml:"cache" env:", prefix=CACHE_"`
	Logging   LoggingConfig   `yaml:"logging" env:", prefix=LOG_"`
}

// FFmpegConfig locates the ffmpeg tools and bounds each invocation
type FFmpegConfig struct {
	Path        string        `yaml:"path" env:"PATH, overwrite" validate:"required"`
	FFprobePath string        `yaml:"ffprobe_path" env:"FFPROBE_PATH, overwrite" validate:"required"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT, overwrite" validate:"gte=0"`
	TempDir     string        `yaml:"temp_dir,omitempty" env:"TEMP_DIR, overwrite"`
}

// DetectionConfig contains detection thresholds and pipeline sizing
type DetectionConfig struct {
	FrameStride        int     `yaml:"frame_stride" env:"FRAME_STRIDE, overwrite" validate:"min=1"`
	FrameDiffThreshold float64 `yaml:"frame_diff_threshold" env:"FRAME_DIFF_THRESHOLD, overwrite" validate:"gte=0,lte=255"`
	SampleRate         int     `yaml:"sample_rate" env:"SAMPLE_RATE, overwrite" validate:"min=8000,max=192000"`
	ChunkDuration      float64 `yaml:"chunk_duration" env:"CHUNK_DURATION, overwrite" validate:"gt=0"`
	ChunkOverlap       float64 `yaml:"chunk_overlap" env:"CHUNK_OVERLAP, overwrite" validate:"gte=0,ltfield=ChunkDuration"`
	AudioDelta         float64 `yaml:"audio_delta" env:"AUDIO_DELTA, overwrite" validate:"gte=0"`
	AudioWait          int     `yaml:"audio_wait" env:"AUDIO_WAIT, overwrite" validate:"gte=0"`
	PreMax             int     `yaml:"pre_max" env:"PRE_MAX, overwrite" validate:"gte=0"`
	PostMax            int     `yaml:"post_max" env:"POST_MAX, overwrite" validate:"gte=0"`
	PreAvg             int     `yaml:"pre_avg" env:"PRE_AVG, overwrite" validate:"gte=0"`
	PostAvg            int     `yaml:"post_avg" env:"POST_AVG, overwrite" validate:"gte=0"`
	MinSkipDuration    float64 `yaml:"min_skip_duration" env:"MIN_SKIP_DURATION, overwrite" validate:"gte=0"`
	MergeGap           float64 `yaml:"merge_gap" env:"MERGE_GAP, overwrite" validate:"gte=0"`
	Workers            int     `yaml:"workers" env:"WORKERS, overwrite" validate:"min=1,max=64"`
	Decoder            string  `yaml:"decoder" env:"DECODER, overwrite" validate:"oneof=ffmpeg gocv"`
}

// CacheConfig selects where analysis artifacts are stored
type CacheConfig struct {
	Backend   string   `yaml:"backend" env:"BACKEND, overwrite" validate:"oneof=file s3 none"`
	Directory string   `yaml:"directory" env:"DIRECTORY, overwrite"`
	S3        S3Config `yaml:"s3" env:", prefix=S3_"`
}

// S3Config contains bucket settings for the s3 backend.
// Credentials come from the standard AWS chain.
type S3Config struct {
	Bucket   string `yaml:"bucket" env:"BUCKET, overwrite" validate:"required_if=Enabled true"`
	Region   string `yaml:"region" env:"REGION, overwrite"`
	Prefix   string `yaml:"prefix" env:"PREFIX, overwrite"`
	Endpoint string `yaml:"endpoint,omitempty" env:"ENDPOINT, overwrite" validate:"omitempty,url"`

	// Enabled mirrors Cache.Backend == "s3" for validation
	Enabled bool `yaml:"-"`
}

// LoggingConfig controls the structured logger
type LoggingConfig struct {
	Level  string `yaml:"level" env:"LEVEL, overwrite" validate:"oneof=debug info warn warning error"`
	Format string `yaml:"format" env:"FORMAT, overwrite" validate:"oneof=text json"`
}

// Default returns the built-in configuration
func Default() *Config {
	t := detection.DefaultThresholds()
	return &Config{
		FFmpeg: FFmpegConfig{
			Path:        "ffmpeg",
			FFprobePath: "ffprobe",
			Timeout:     ffmpeg.DefaultTimeout,
		},
		Detection: DetectionConfig{
			FrameStride:        t.FrameStride,
			FrameDiffThreshold: t.FrameDiffThreshold,
			SampleRate:         t.SampleRate,
			ChunkDuration:      t.ChunkDuration,
			ChunkOverlap:       t.ChunkOverlap,
			AudioDelta:         t.AudioDelta,
			AudioWait:          t.AudioWait,
			PreMax:             t.PreMax,
			PostMax:            t.PostMax,
			PreAvg:             t.PreAvg,
			PostAvg:            t.PostAvg,
			MinSkipDuration:    t.MinSkipDuration,
			MergeGap:           t.MergeGap,
			Workers:            4,
			Decoder:            DecoderFFmpeg,
		},
		Cache: CacheConfig{
			Backend:   BackendFile,
			Directory: ".",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the configuration from the specified YAML file on top of the
// defaults, then applies SKIP_* environment overrides and validates.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	return LoadWithLookuper(path, envconfig.OsLookuper())
}

// LoadWithLookuper is Load with a custom environment source (for testing)
func LoadWithLookuper(path string, lookuper envconfig.Lookuper) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	err = envconfig.ProcessWith(context.Background(), &envconfig.Config{
		Target:   cfg,
		Lookuper: envconfig.PrefixLookuper(EnvPrefix, lookuper),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

var validate = validator.New()

// Validate checks field ranges and that the detection knobs are usable together
func (c *Config) Validate() error {
	c.Cache.S3.Enabled = c.Cache.Backend == BackendS3
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Detection.Thresholds().Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Thresholds returns the immutable record handed to the detectors
func (d DetectionConfig) Thresholds() detection.Thresholds {
	return detection.Thresholds{
		FrameStride:        d.FrameStride,
		FrameDiffThreshold: d.FrameDiffThreshold,
		SampleRate:         d.SampleRate,
		ChunkDuration:      d.ChunkDuration,
		ChunkOverlap:       d.ChunkOverlap,
		PreMax:             d.PreMax,
		PostMax:            d.PostMax,
		PreAvg:             d.PreAvg,
		PostAvg:            d.PostAvg,
		AudioDelta:         d.AudioDelta,
		AudioWait:          d.AudioWait,
		MinSkipDuration:    d.MinSkipDuration,
		MergeGap:           d.MergeGap,
	}
}
