package analysis

import "skip-analyzer/domain/video"

// Observer receives progress notifications from an analysis run.
// Methods may be called from several goroutines at once.
type Observer interface {
	// AnalysisStarted is called once the source exists and no valid cache entry was found
	AnalysisStarted(path string)

	// ChunkPlanned reports how many audio windows will be processed
	ChunkPlanned(total int)

	// ChunkCompleted is called for every window; err is non-nil when it was skipped
	ChunkCompleted(window video.ChunkWindow, peaks int, err error)

	// ScanCompleted is called when the frame scan ends
	ScanCompleted(events int)

	// AnalysisFinished is called with the final interval count
	AnalysisFinished(path string, intervals int, cached bool)
}

// NopObserver ignores all notifications
type NopObserver struct{}

func (NopObserver) AnalysisStarted(string)                       {}
func (NopObserver) ChunkPlanned(int)                             {}
func (NopObserver) ChunkCompleted(video.ChunkWindow, int, error) {}
func (NopObserver) ScanCompleted(int)                            {}
func (NopObserver) AnalysisFinished(string, int, bool)           {}

var _ Observer = NopObserver{}
