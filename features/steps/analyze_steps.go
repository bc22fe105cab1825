//go:build integration

package steps

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
	"sync"
	"time"

	"skip-analyzer/application/analysis"
	"skip-analyzer/cmd"
	"skip-analyzer/domain/detection"
	"skip-analyzer/domain/interval"
	"skip-analyzer/domain/video"
	"skip-analyzer/infrastructure/cache"
	"skip-analyzer/infrastructure/filesystem"

	"github.com/cucumber/godog"
)

// stubProber reports the registered length of each video
type stubProber struct {
	sources map[string]video.Source
}

func (p *stubProber) Probe(ctx context.Context, path string) (video.Source, error) {
	src, ok := p.sources[path]
	if !ok {
		return video.Source{}, fmt.Errorf("%w: %s: moov atom not found", video.ErrSourceUnreadable, path)
	}
	return src, nil
}

// stubScanner plays back scene changes and counts scans
type stubScanner struct {
	mu     sync.Mutex
	scenes []float64
	scans  int
}

func (s *stubScanner) Scan(ctx context.Context, src video.Source) ([]detection.TimedEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scans++
	events := make([]detection.TimedEvent, 0, len(s.scenes))
	for _, t := range s.scenes {
		events = append(events, detection.SceneChangeAt(t))
	}
	return events, nil
}

// stubExtractor hands out empty chunks carrying only their window
type stubExtractor struct {
	mu     sync.Mutex
	failAt map[int]bool
}

func (e *stubExtractor) Extract(ctx context.Context, src video.Source, window video.ChunkWindow) (video.AudioChunk, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failAt[window.Index] {
		return video.AudioChunk{}, fmt.Errorf("%w: window %d", video.ErrChunkExtraction, window.Index)
	}
	return video.AudioChunk{Window: window, SampleRate: 1, Samples: []float32{0}}, nil
}

// stubDetector reports every configured peak inside the chunk window
type stubDetector struct {
	peaks []float64
}

func (d stubDetector) Detect(chunk video.AudioChunk) []detection.TimedEvent {
	var events []detection.TimedEvent
	for _, t := range d.peaks {
		if t >= chunk.Window.Start && t < chunk.Window.End {
			events = append(events, detection.AudioPeakAt(t))
		}
	}
	return events
}

type analyzeContext struct {
	tempDir   string
	prober    *stubProber
	scanner   *stubScanner
	extractor *stubExtractor
	peaks     []float64
	output    bytes.Buffer
	err       error
}

var SharedAnalyzeContext = &analyzeContext{}

func InitializeAnalyzeScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedAnalyzeContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "analyze-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.prober = &stubProber{sources: make(map[string]video.Source)}
		testCtx.scanner = &stubScanner{}
		testCtx.extractor = &stubExtractor{failAt: make(map[int]bool)}
		testCtx.peaks = nil
		testCtx.output.Reset()
		testCtx.err = nil
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a (\d+) second video "([^"]*)" at (\d+) fps$`, testCtx.aVideoAtFPS)
	ctx.Step(`^an unreadable video "([^"]*)"$`, testCtx.anUnreadableVideo)
	ctx.Step(`^scene changes at "([^"]*)"$`, testCtx.sceneChangesAt)
	ctx.Step(`^audio peaks at "([^"]*)"$`, testCtx.audioPeaksAt)
	ctx.Step(`^audio window (\d+) cannot be extracted$`, testCtx.audioWindowCannotBeExtracted)
	ctx.Step(`^the video "([^"]*)" is modified$`, testCtx.theVideoIsModified)
	ctx.Step(`^a corrupt cache artifact exists for "([^"]*)"$`, testCtx.aCorruptCacheArtifactExistsFor)
	ctx.Step(`^I analyze "([^"]*)"$`, testCtx.iAnalyze)
	ctx.Step(`^I analyze "([^"]*)" as JSON$`, testCtx.iAnalyzeAsJSON)
	ctx.Step(`^I analyze "([^"]*)" without the cache$`, testCtx.iAnalyzeWithoutTheCache)
	ctx.Step(`^I clear the cache for "([^"]*)"$`, testCtx.iClearTheCacheFor)
	ctx.Step(`^I clear the whole cache$`, testCtx.iClearTheWholeCache)
	ctx.Step(`^the output should contain "([^"]*)"$`, testCtx.theOutputShouldContain)
	ctx.Step(`^the output should not contain "([^"]*)"$`, testCtx.theOutputShouldNotContain)
	ctx.Step(`^the JSON output should be:$`, testCtx.theJSONOutputShouldBe)
	ctx.Step(`^the cached intervals for "([^"]*)" should be:$`, testCtx.theCachedIntervalsShouldBe)
	ctx.Step(`^no cache artifact should exist for "([^"]*)"$`, testCtx.noCacheArtifactShouldExistFor)
	ctx.Step(`^the video should have been scanned (\d+) times?$`, testCtx.theVideoShouldHaveBeenScanned)
	ctx.Step(`^the command should fail with "([^"]*)"$`, testCtx.theCommandShouldFailWith)
	ctx.Step(`^the command should succeed$`, testCtx.theCommandShouldSucceed)
}

func (a *analyzeContext) path(name string) string {
	return filepath.Join(a.tempDir, name)
}

func (a *analyzeContext) service() *analysis.Service {
	return analysis.NewService(
		filesystem.NewChecker(),
		a.prober,
		a.scanner,
		a.extractor,
		func() detection.OnsetDetector { return stubDetector{peaks: a.peaks} },
		cache.NewFileStore(cache.WithDirectory(a.tempDir)),
		detection.DefaultThresholds(),
	)
}

func parseSeconds(list string) ([]float64, error) {
	var out []float64
	for _, field := range strings.Split(list, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseFloat(field, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid seconds %q: %w", field, err)
		}
		out = append(out, v)
	}
	return out, nil
}

func (a *analyzeContext) aVideoAtFPS(seconds int, name string, fps int) error {
	p := a.path(name)
	if err := os.WriteFile(p, []byte("not really a video"), 0644); err != nil {
		return err
	}
	a.prober.sources[p] = video.Source{Path: p, FrameRate: float64(fps), FrameCount: seconds * fps}
	return nil
}

func (a *analyzeContext) anUnreadableVideo(name string) error {
	return os.WriteFile(a.path(name), []byte("garbage"), 0644)
}

func (a *analyzeContext) sceneChangesAt(list string) error {
	scenes, err := parseSeconds(list)
	a.scanner.scenes = scenes
	return err
}

func (a *analyzeContext) audioPeaksAt(list string) error {
	peaks, err := parseSeconds(list)
	a.peaks = peaks
	return err
}

func (a *analyzeContext) audioWindowCannotBeExtracted(index int) error {
	a.extractor.failAt[index] = true
	return nil
}

func (a *analyzeContext) theVideoIsModified(name string) error {
	future := time.Now().Add(time.Hour)
	return os.Chtimes(a.path(name), future, future)
}

func (a *analyzeContext) aCorruptCacheArtifactExistsFor(name string) error {
	return os.WriteFile(cache.ArtifactPath(a.path(name)), []byte("{not json"), 0644)
}

func (a *analyzeContext) analyze(name string, opts cmd.AnalyzeOptions) error {
	a.output.Reset()
	opts.VideoPath = a.path(name)
	a.err = cmd.RunAnalyzeWithDependencies(context.Background(), opts, a.service(), nil, &a.output)
	return nil
}

func (a *analyzeContext) iAnalyze(name string) error {
	return a.analyze(name, cmd.AnalyzeOptions{})
}

func (a *analyzeContext) iAnalyzeAsJSON(name string) error {
	return a.analyze(name, cmd.AnalyzeOptions{JSON: true})
}

func (a *analyzeContext) iAnalyzeWithoutTheCache(name string) error {
	return a.analyze(name, cmd.AnalyzeOptions{NoCache: true})
}

func (a *analyzeContext) iClearTheCacheFor(name string) error {
	a.output.Reset()
	a.err = cmd.RunClearCacheWithDependencies(context.Background(), a.path(name), a.service(), &a.output)
	return nil
}

func (a *analyzeContext) iClearTheWholeCache() error {
	a.output.Reset()
	a.err = cmd.RunClearCacheWithDependencies(context.Background(), "", a.service(), &a.output)
	return nil
}

func (a *analyzeContext) theOutputShouldContain(text string) error {
	if !strings.Contains(a.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, a.output.String())
	}
	return nil
}

func (a *analyzeContext) theOutputShouldNotContain(text string) error {
	if strings.Contains(a.output.String(), text) {
		return fmt.Errorf("expected output not to contain %q, got:\n%s", text, a.output.String())
	}
	return nil
}

func decodeIntervals(data []byte) ([]interval.Formatted, error) {
	var out []interval.Formatted
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON %q: %w", string(data), err)
	}
	return out, nil
}

func (a *analyzeContext) theJSONOutputShouldBe(expected *godog.DocString) error {
	if a.err != nil {
		return fmt.Errorf("analyze failed: %w", a.err)
	}
	got, err := decodeIntervals(a.output.Bytes())
	if err != nil {
		return err
	}
	want, err := decodeIntervals([]byte(expected.Content))
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("expected %v, got %v", want, got)
	}
	return nil
}

func (a *analyzeContext) theCachedIntervalsShouldBe(name string, expected *godog.DocString) error {
	data, err := os.ReadFile(cache.ArtifactPath(a.path(name)))
	if err != nil {
		return fmt.Errorf("no cache artifact: %w", err)
	}
	got, err := decodeIntervals(data)
	if err != nil {
		return err
	}
	want, err := decodeIntervals([]byte(expected.Content))
	if err != nil {
		return err
	}
	if !reflect.DeepEqual(got, want) {
		return fmt.Errorf("expected cached %v, got %v", want, got)
	}
	return nil
}

func (a *analyzeContext) noCacheArtifactShouldExistFor(name string) error {
	if _, err := os.Stat(cache.ArtifactPath(a.path(name))); !os.IsNotExist(err) {
		return fmt.Errorf("expected no cache artifact for %s (stat error: %v)", name, err)
	}
	return nil
}

func (a *analyzeContext) theVideoShouldHaveBeenScanned(times int) error {
	if a.scanner.scans != times {
		return fmt.Errorf("expected %d scans, got %d", times, a.scanner.scans)
	}
	return nil
}

func (a *analyzeContext) theCommandShouldFailWith(text string) error {
	if a.err == nil {
		return fmt.Errorf("expected the command to fail")
	}
	if !strings.Contains(a.err.Error(), text) {
		return fmt.Errorf("expected error to mention %q, got: %v", text, a.err)
	}
	return nil
}

func (a *analyzeContext) theCommandShouldSucceed() error {
	if a.err != nil {
		return fmt.Errorf("expected success, got: %w", a.err)
	}
	return nil
}
