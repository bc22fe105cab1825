package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"skip-analyzer/application/analysis"
	domaincache "skip-analyzer/domain/cache"
	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/video"
	"skip-analyzer/infrastructure/cache"
	"skip-analyzer/infrastructure/config"
	infradetection "skip-analyzer/infrastructure/detection"
	"skip-analyzer/infrastructure/ffmpeg"
	"skip-analyzer/infrastructure/filesystem"
)

// DependencyChecker is implemented by adapters that shell out to external tools
type DependencyChecker interface {
	VerifyInstalled(ctx context.Context) error
}

// components holds everything built from the configuration
type components struct {
	logger   *slog.Logger
	service  *analysis.Service
	checkers []DependencyChecker
}

// newStore selects the cache backend named in the configuration
func newStore(ctx context.Context, cfg *config.Config) (domaincache.Store, error) {
	switch cfg.Cache.Backend {
	case config.BackendS3:
		s3cfg := cfg.Cache.S3
		return cache.NewS3Store(ctx, cache.S3Config{
			Bucket:   s3cfg.Bucket,
			Region:   s3cfg.Region,
			Prefix:   s3cfg.Prefix,
			Endpoint: s3cfg.Endpoint,
		})
	case config.BackendNone:
		return domaincache.NopStore{}, nil
	default:
		return cache.NewFileStore(cache.WithDirectory(cfg.Cache.Directory)), nil
	}
}

// newFrameDecoder selects the frame source named in the configuration
func newFrameDecoder(cfg *config.Config, prober *ffmpeg.Prober) video.FrameDecoder {
	if cfg.Detection.Decoder == config.DecoderGocv {
		return infradetection.NewGocvDecoder()
	}
	return ffmpeg.NewRawFrameDecoder(prober, ffmpeg.WithDecoderFFmpegPath(cfg.FFmpeg.Path))
}

// buildComponents wires the analysis service from configuration
func buildComponents(ctx context.Context, cfg *config.Config, logw io.Writer, observer analysis.Observer) (*components, error) {
	logger := cfg.NewLogger(logw)
	thresholds := cfg.Detection.Thresholds()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s cache: %w", cfg.Cache.Backend, err)
	}

	prober := ffmpeg.NewProber(ffmpeg.WithFFprobePath(cfg.FFmpeg.FFprobePath))
	extractorOpts := []ffmpeg.ExtractorOption{
		ffmpeg.WithExtractorFFmpegPath(cfg.FFmpeg.Path),
		ffmpeg.WithSampleRate(thresholds.SampleRate),
		ffmpeg.WithTimeout(cfg.FFmpeg.Timeout),
		ffmpeg.WithExtractorLogger(logger),
	}
	if cfg.FFmpeg.TempDir != "" {
		extractorOpts = append(extractorOpts, ffmpeg.WithTempDir(cfg.FFmpeg.TempDir))
	}
	extractor := ffmpeg.NewExtractor(extractorOpts...)
	scanner := infradetection.NewFrameScanner(
		newFrameDecoder(cfg, prober),
		thresholds,
		infradetection.WithScannerLogger(logger),
	)
	newDetector := func() detection.OnsetDetector {
		return infradetection.NewOnsetDetector(thresholds)
	}

	if observer == nil {
		observer = analysis.NopObserver{}
	}
	service := analysis.NewService(
		filesystem.NewChecker(),
		prober,
		scanner,
		extractor,
		newDetector,
		store,
		thresholds,
		analysis.WithWorkers(cfg.Detection.Workers),
		analysis.WithLogger(logger),
		analysis.WithObserver(observer),
	)

	return &components{
		logger:   logger,
		service:  service,
		checkers: []DependencyChecker{prober, extractor},
	}, nil
}
