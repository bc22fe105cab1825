package ffmpeg

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"skip-analyzer/domain/video"
)

// StreamInfo holds the first video stream's geometry and timing
type StreamInfo struct {
	Width      int
	Height     int
	FrameRate  float64
	FrameCount int
	Duration   float64
}

// ffprobeOutput represents the raw JSON output from ffprobe
type ffprobeOutput struct {
	Streams []struct {
		CodecType    string `json:"codec_type"`
		Width        int    `json:"width"`
		Height       int    `json:"height"`
		RFrameRate   string `json:"r_frame_rate"`
		AvgFrameRate string `json:"avg_frame_rate"`
		NbFrames     string `json:"nb_frames"`
		Duration     string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// Prober implements video.Prober using ffprobe
type Prober struct {
	ffprobePath string
	runner      CommandRunner
}

// ProberOption is a functional option for configuring Prober
type ProberOption func(*Prober)

// WithFFprobePath sets a custom ffprobe executable path
func WithFFprobePath(path string) ProberOption {
	return func(p *Prober) {
		p.ffprobePath = path
	}
}

// WithProberCommandRunner sets a custom command runner (for testing)
func WithProberCommandRunner(runner CommandRunner) ProberOption {
	return func(p *Prober) {
		p.runner = runner
	}
}

// NewProber creates a new ffprobe-based prober
func NewProber(opts ...ProberOption) *Prober {
	p := &Prober{
		ffprobePath: "ffprobe",
		runner:      &ExecCommandRunner{},
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// Probe implements video.Prober
func (p *Prober) Probe(ctx context.Context, path string) (video.Source, error) {
	info, err := p.ProbeStream(ctx, path)
	if err != nil {
		return video.Source{}, err
	}
	return video.Source{
		Path:       path,
		FrameRate:  info.FrameRate,
		FrameCount: info.FrameCount,
		Width:      info.Width,
		Height:     info.Height,
	}, nil
}

// ProbeStream reads the first video stream of path
func (p *Prober) ProbeStream(ctx context.Context, path string) (StreamInfo, error) {
	out, err := p.runner.Output(ctx, p.ffprobePath,
		"-v", "error",
		"-select_streams", "v:0",
		"-show_entries", "stream=codec_type,width,height,r_frame_rate,avg_frame_rate,nb_frames,duration:format=duration",
		"-of", "json",
		path,
	)
	if err != nil {
		return StreamInfo{}, fmt.Errorf("%w: ffprobe %s: %v", video.ErrSourceUnreadable, path, err)
	}
	return parseProbeOutput(out)
}

// VerifyInstalled checks that ffprobe is available
func (p *Prober) VerifyInstalled(ctx context.Context) error {
	return VerifyInstalled(ctx, p.runner, p.ffprobePath)
}

func parseProbeOutput(data []byte) (StreamInfo, error) {
	var raw ffprobeOutput
	if err := json.Unmarshal(data, &raw); err != nil {
		return StreamInfo{}, fmt.Errorf("%w: failed to parse ffprobe output: %v", video.ErrSourceUnreadable, err)
	}
	if len(raw.Streams) == 0 {
		return StreamInfo{}, fmt.Errorf("%w: no video stream", video.ErrSourceUnreadable)
	}

	s := raw.Streams[0]
	fps, err := parseRate(s.AvgFrameRate)
	if err != nil || fps <= 0 {
		fps, err = parseRate(s.RFrameRate)
	}
	if err != nil || fps <= 0 {
		return StreamInfo{}, fmt.Errorf("%w: unknown frame rate %q", video.ErrSourceUnreadable, s.RFrameRate)
	}

	duration := parseFloat(s.Duration)
	if duration <= 0 {
		duration = parseFloat(raw.Format.Duration)
	}

	count, _ := strconv.Atoi(s.NbFrames)
	if count <= 0 {
		count = int(math.Round(duration * fps))
	}
	if duration <= 0 {
		duration = float64(count) / fps
	}

	return StreamInfo{
		Width:      s.Width,
		Height:     s.Height,
		FrameRate:  fps,
		FrameCount: count,
		Duration:   duration,
	}, nil
}

// parseRate parses ffprobe rationals such as "30000/1001" or "25/1"
func parseRate(s string) (float64, error) {
	num, den, found := strings.Cut(strings.TrimSpace(s), "/")
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if !found {
		return n, nil
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid rate %q: %w", s, err)
	}
	if d == 0 {
		return 0, fmt.Errorf("invalid rate %q: zero denominator", s)
	}
	return n / d, nil
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}

// Ensure Prober implements video.Prober
var _ video.Prober = (*Prober)(nil)
