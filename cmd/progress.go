package cmd

import (
	"io"
	"sync"

	"skip-analyzer/application/analysis"
	"skip-analyzer/domain/video"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// progressObserver draws one bar advancing per audio window. It is also
// the log writer while the bar is shown, so log lines land above the bar
// instead of through it.
type progressObserver struct {
	out io.Writer

	mu       sync.Mutex
	progress *mpb.Progress
	bar      *mpb.Bar
	closed   bool
}

func newProgressObserver(out io.Writer) *progressObserver {
	return &progressObserver{out: out}
}

func (o *progressObserver) AnalysisStarted(string) {}

func (o *progressObserver) ChunkPlanned(total int) {
	if total <= 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.progress != nil || o.closed {
		return
	}
	o.progress = mpb.New(mpb.WithOutput(o.out), mpb.WithWidth(64))
	o.bar = o.progress.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name("Audio windows: "),
			decor.CountersNoUnit("%d / %d"),
		),
		mpb.AppendDecorators(
			decor.Percentage(),
			decor.AverageETA(decor.ET_STYLE_GO),
		),
	)
}

func (o *progressObserver) ChunkCompleted(video.ChunkWindow, int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.bar != nil {
		o.bar.Increment()
	}
}

func (o *progressObserver) ScanCompleted(int) {}

func (o *progressObserver) AnalysisFinished(string, int, bool) {}

// Write implements io.Writer. Lines go above the bar while it renders and
// straight to the output before it starts or after it stops.
func (o *progressObserver) Write(b []byte) (int, error) {
	o.mu.Lock()
	p := o.progress
	if o.closed {
		p = nil
	}
	o.mu.Unlock()

	if p != nil {
		n, err := p.Write(b)
		if err == nil {
			return n, nil
		}
	}
	return o.out.Write(b)
}

// Close stops rendering; an unfinished bar is aborted in place
func (o *progressObserver) Close() {
	o.mu.Lock()
	p, bar := o.progress, o.bar
	o.closed = true
	o.mu.Unlock()

	if p == nil {
		return
	}
	if !bar.Completed() {
		bar.Abort(false)
	}
	p.Wait()
}

var (
	_ analysis.Observer = (*progressObserver)(nil)
	_ io.Writer         = (*progressObserver)(nil)
)
