package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var clearCacheCmd = &cobra.Command{
	Use:   "clear-cache [video]",
	Short: "Delete cached analysis results",
	Long: `Deletes the cached analysis of one video, or every cached analysis in
the configured cache location when no video is given.

Examples:
  skip-analyzer clear-cache "/videos/Episode 01.mkv"
  skip-analyzer clear-cache`,
	Args: cobra.MaximumNArgs(1),
	RunE: runClearCache,
}

func init() {
	rootCmd.AddCommand(clearCacheCmd)
}

// CacheClearer removes cached results (allows mocking in tests)
type CacheClearer interface {
	ClearCache(ctx context.Context, path string) (int, error)
}

func runClearCache(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	deps, err := buildComponents(ctx, cfg, os.Stderr, nil)
	if err != nil {
		return err
	}

	path := ""
	if len(args) == 1 {
		path = args[0]
	}
	return RunClearCacheWithDependencies(ctx, path, deps.service, DefaultOutput)
}

// RunClearCacheWithDependencies runs the clear-cache command with injected dependencies
func RunClearCacheWithDependencies(ctx context.Context, path string, clearer CacheClearer, out OutputWriter) error {
	removed, err := clearer.ClearCache(ctx, path)
	if err != nil {
		return err
	}

	switch {
	case path != "" && removed == 0:
		fmt.Fprintf(out, "No cached analysis for %s\n", path)
	case path != "":
		fmt.Fprintf(out, "Removed cached analysis for %s\n", path)
	default:
		fmt.Fprintf(out, "Removed %d cached analyses\n", removed)
	}
	return nil
}
