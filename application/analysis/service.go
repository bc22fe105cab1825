package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync/atomic"
	"time"

	"skip-analyzer/domain/cache"
	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/interval"
	"skip-analyzer/domain/video"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultWorkers is the number of audio windows processed at once
const DefaultWorkers = 4

// peakResolution is the grid audio peaks are snapped to before deduplication
const peakResolution = 0.001

// DetectorFactory returns a fresh onset detector for one audio window
type DetectorFactory func() detection.OnsetDetector

// Service orchestrates skip-interval analysis of a video
type Service struct {
	fileChecker video.FileChecker
	prober      video.Prober
	scanner     detection.SceneScanner
	extractor   video.AudioExtractor
	newDetector DetectorFactory
	store       cache.Store
	policy      cache.Policy
	thresholds  detection.Thresholds
	workers     int
	logger      *slog.Logger
	observer    Observer

	flight singleflight.Group
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithPolicy replaces the cache validity rule
func WithPolicy(policy cache.Policy) Option {
	return func(s *Service) {
		s.policy = policy
	}
}

// WithWorkers bounds how many audio windows are processed concurrently
func WithWorkers(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.workers = n
		}
	}
}

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver sets the progress observer
func WithObserver(observer Observer) Option {
	return func(s *Service) {
		if observer != nil {
			s.observer = observer
		}
	}
}

// NewService creates a new analysis service
func NewService(
	fileChecker video.FileChecker,
	prober video.Prober,
	scanner detection.SceneScanner,
	extractor video.AudioExtractor,
	newDetector DetectorFactory,
	store cache.Store,
	thresholds detection.Thresholds,
	opts ...Option,
) *Service {
	s := &Service{
		fileChecker: fileChecker,
		prober:      prober,
		scanner:     scanner,
		extractor:   extractor,
		newDetector: newDetector,
		store:       store,
		policy:      cache.MTimePolicy{},
		thresholds:  thresholds,
		workers:     DefaultWorkers,
		logger:      slog.New(slog.DiscardHandler),
		observer:    NopObserver{},
	}
	if s.store == nil {
		s.store = cache.NopStore{}
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Input contains the parameters of one analysis
type Input struct {
	VideoPath string // Path of the video to analyze
	NoCache   bool   // Neither read nor write the cache
}

// Result contains the outcome of an analysis
type Result struct {
	// Intervals are the merged skip intervals in start order; never nil
	Intervals []interval.Formatted

	// Cached is true when Intervals were served from the store
	Cached bool

	// SceneChanges and AudioPeaks count the events that fed the intervals
	SceneChanges int
	AudioPeaks   int

	// ChunksFailed counts audio windows that contributed no peaks because
	// extraction failed
	ChunksFailed int

	Elapsed time.Duration
}

// Analyze returns the skip intervals of the video at path, serving a valid
// cached result when one exists
func (s *Service) Analyze(ctx context.Context, path string) ([]interval.Formatted, error) {
	result, err := s.Run(ctx, Input{VideoPath: path})
	if err != nil {
		return nil, err
	}
	return result.Intervals, nil
}

// Run performs an analysis. Concurrent runs for the same input share one
// computation.
func (s *Service) Run(ctx context.Context, input Input) (*Result, error) {
	key := input.VideoPath + "\x00" + strconv.FormatBool(input.NoCache)
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		return s.run(ctx, input)
	})
	if err != nil {
		return nil, err
	}

	// callers must not share the slice
	shared := v.(*Result)
	result := *shared
	result.Intervals = append(make([]interval.Formatted, 0, len(shared.Intervals)), shared.Intervals...)
	return &result, nil
}

func (s *Service) run(ctx context.Context, input Input) (*Result, error) {
	started := time.Now()
	path := input.VideoPath
	log := s.logger.With("path", path)

	if !s.fileChecker.Exists(path) {
		return nil, fmt.Errorf("%w: %s", video.ErrSourceNotFound, path)
	}
	modTime, err := s.fileChecker.ModTime(path)
	if err != nil {
		if errors.Is(err, video.ErrSourceNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceNotFound, path, err)
	}

	if !input.NoCache {
		if cached := s.lookup(ctx, log, path, modTime); cached != nil {
			s.observer.AnalysisFinished(path, len(cached), true)
			return &Result{Intervals: cached, Cached: true, Elapsed: time.Since(started)}, nil
		}
	}

	s.observer.AnalysisStarted(path)

	src, err := s.prober.Probe(ctx, path)
	if err != nil {
		if errors.Is(err, video.ErrSourceUnreadable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", video.ErrSourceUnreadable, path, err)
	}
	src.Path = path
	src.ModTime = modTime
	log.Info("analyzing video",
		"duration", video.FormatSeconds(src.Duration()),
		"frame_rate", src.FrameRate,
		"frames", src.FrameCount)

	var (
		scene  []detection.TimedEvent
		audio  []detection.TimedEvent
		failed int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		events, err := s.scanner.Scan(gctx, src)
		if err != nil {
			return fmt.Errorf("scene scan: %w", err)
		}
		scene = events
		s.observer.ScanCompleted(len(events))
		log.Debug("scene scan finished", "events", len(events))
		return nil
	})
	g.Go(func() error {
		peaks, n, err := s.audioPeaks(gctx, log, src)
		if err != nil {
			return err
		}
		audio, failed = peaks, n
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	combined := detection.CombineEvents(scene, audio)
	raw := interval.Synthesize(combined, s.thresholds.MinSkipDuration)
	merged := interval.Merge(raw, s.thresholds.MergeGap)
	formatted := interval.Format(merged)
	for _, iv := range merged {
		log.Debug("skippable interval", "interval", iv.String(), "duration", iv.Duration())
	}

	if !input.NoCache {
		// stamped with the mtime observed before analysis, so an edit made
		// while it ran leaves the result stale
		entry := cache.Entry{Intervals: formatted, ModTime: modTime}
		if err := s.store.Put(ctx, path, entry); err != nil {
			log.Warn("failed to cache analysis", "error", err)
		}
	}

	counts := detection.CountByKind(combined)
	result := &Result{
		Intervals:    formatted,
		SceneChanges: counts[detection.SceneChange],
		AudioPeaks:   counts[detection.AudioPeak],
		ChunksFailed: failed,
		Elapsed:      time.Since(started),
	}
	log.Info("analysis complete",
		"intervals", len(formatted),
		"scene_changes", result.SceneChanges,
		"audio_peaks", result.AudioPeaks,
		"chunks_failed", failed,
		"elapsed", result.Elapsed.Round(time.Millisecond))
	s.observer.AnalysisFinished(path, len(formatted), false)

	return result, nil
}

// lookup returns the cached intervals when the store holds a valid entry.
// Unreadable entries are treated as a miss.
func (s *Service) lookup(ctx context.Context, log *slog.Logger, path string, modTime time.Time) []interval.Formatted {
	entry, err := s.store.Get(ctx, path)
	if err != nil {
		log.Warn("ignoring unreadable cached analysis", "error", err)
		return nil
	}
	if entry == nil {
		log.Debug("no cached analysis")
		return nil
	}
	if !s.policy.Valid(entry, modTime) {
		log.Info("cached analysis is stale", "computed_for", entry.ModTime, "modified_at", modTime)
		return nil
	}

	log.Info("using cached analysis", "intervals", len(entry.Intervals))
	if entry.Intervals == nil {
		return []interval.Formatted{}
	}
	return entry.Intervals
}

// audioPeaks extracts every window on a bounded pool and keeps the peaks
// each window owns. A failed window contributes nothing; only cancellation
// is returned as an error.
func (s *Service) audioPeaks(ctx context.Context, log *slog.Logger, src video.Source) ([]detection.TimedEvent, int, error) {
	windows, err := video.PlanChunks(src.Duration(), s.thresholds.ChunkDuration, s.thresholds.ChunkOverlap)
	if err != nil {
		log.Error("cannot plan audio windows, continuing without audio", "error", err)
		return nil, 0, nil
	}
	s.observer.ChunkPlanned(len(windows))

	results := make([][]detection.TimedEvent, len(windows))
	var failed atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, w := range windows {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			chunk, err := s.extractor.Extract(gctx, src, w)
			if err != nil {
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				failed.Add(1)
				log.Warn("skipping audio window", "window", w.String(), "error", err)
				s.observer.ChunkCompleted(w, 0, err)
				return nil
			}

			var owned []detection.TimedEvent
			for _, e := range s.newDetector().Detect(chunk) {
				if w.Owns(e.Seconds) {
					owned = append(owned, e)
				}
			}
			results[i] = owned
			log.Debug("audio window done", "window", w.String(), "decoded_seconds", chunk.Seconds(), "peaks", len(owned))
			s.observer.ChunkCompleted(w, len(owned), nil)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	var peaks []detection.TimedEvent
	for _, r := range results {
		peaks = append(peaks, r...)
	}
	if n := int(failed.Load()); n > 0 && n == len(windows) {
		log.Error("every audio window failed, result is scene-only", "windows", n)
	}
	return detection.QuantizeAudioPeaks(peaks, peakResolution), int(failed.Load()), nil
}

// ClearCache removes the cached analysis of path, or every discoverable
// artifact when path is empty. A missing artifact is not an error.
func (s *Service) ClearCache(ctx context.Context, path string) (int, error) {
	if path == "" {
		removed, err := s.store.InvalidateAll(ctx)
		if err != nil {
			return removed, fmt.Errorf("failed to clear cache: %w", err)
		}
		s.logger.Info("cleared cached analyses", "removed", removed)
		return removed, nil
	}

	if err := s.store.Invalidate(ctx, path); err != nil {
		if errors.Is(err, cache.ErrNotCached) {
			s.logger.Info("no cached analysis to clear", "path", path)
			return 0, nil
		}
		return 0, fmt.Errorf("failed to clear cache for %s: %w", path, err)
	}
	s.logger.Info("cleared cached analysis", "path", path)
	return 1, nil
}
