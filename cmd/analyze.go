package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"skip-analyzer/application/analysis"
	"skip-analyzer/domain/video"

	"github.com/spf13/cobra"
)

var (
	analyzeJSON       bool
	analyzeNoCache    bool
	analyzeNoProgress bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <video>",
	Short: "Detect skippable intervals in a video",
	Long: `Analyzes a video and prints the intervals that contain no scene change
and no audio onset for longer than the configured minimum.

Results are cached next to the video (or in the configured bucket) and
reused until the video is modified.

Examples:
  skip-analyzer analyze "/videos/Episode 01.mkv"
  skip-analyzer analyze episode.mp4 --json
  skip-analyzer analyze episode.mp4 --no-cache`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "Print intervals as a JSON array")
	analyzeCmd.Flags().BoolVar(&analyzeNoCache, "no-cache", false, "Ignore and do not update the cache")
	analyzeCmd.Flags().BoolVar(&analyzeNoProgress, "no-progress", false, "Do not draw the progress bar")
}

// AnalyzeRunner runs one analysis (allows mocking in tests)
type AnalyzeRunner interface {
	Run(ctx context.Context, input analysis.Input) (*analysis.Result, error)
}

// AnalyzeOptions contains the command line options of analyze
type AnalyzeOptions struct {
	VideoPath string
	JSON      bool
	NoCache   bool
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	var progress *progressObserver
	var observer analysis.Observer = analysis.NopObserver{}
	var logw io.Writer = os.Stderr
	if !analyzeNoProgress {
		progress = newProgressObserver(os.Stderr)
		observer = progress
		logw = progress
	}

	deps, err := buildComponents(ctx, cfg, logw, observer)
	if err != nil {
		return err
	}

	opts := AnalyzeOptions{
		VideoPath: args[0],
		JSON:      analyzeJSON,
		NoCache:   analyzeNoCache,
	}
	err = RunAnalyzeWithDependencies(ctx, opts, deps.service, deps.checkers, DefaultOutput)
	if progress != nil {
		progress.Close()
	}
	return err
}

// RunAnalyzeWithDependencies runs the analyze command with injected dependencies
func RunAnalyzeWithDependencies(ctx context.Context, opts AnalyzeOptions, runner AnalyzeRunner, checkers []DependencyChecker, out OutputWriter) error {
	verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	for _, c := range checkers {
		if err := c.VerifyInstalled(verifyCtx); err != nil {
			return err
		}
	}

	result, err := runner.Run(ctx, analysis.Input{
		VideoPath: opts.VideoPath,
		NoCache:   opts.NoCache,
	})
	if err != nil {
		switch {
		case errors.Is(err, video.ErrSourceNotFound):
			return fmt.Errorf("video not found: %s", opts.VideoPath)
		case errors.Is(err, video.ErrSourceUnreadable):
			return fmt.Errorf("cannot read video: %w", err)
		default:
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	if opts.JSON {
		return writeIntervalsJSON(out, result.Intervals)
	}

	writeIntervalsTable(out, result.Intervals)
	fmt.Fprintln(out)
	if result.Cached {
		fmt.Fprintln(out, "Served from cache.")
		return nil
	}
	fmt.Fprintf(out, "Scene changes: %d, audio peaks: %d", result.SceneChanges, result.AudioPeaks)
	if result.ChunksFailed > 0 {
		fmt.Fprintf(out, ", skipped audio windows: %d", result.ChunksFailed)
	}
	fmt.Fprintf(out, " (%s)\n", result.Elapsed.Round(time.Millisecond))
	return nil
}
