package cmd

import (
	"fmt"
	"os"

	"skip-analyzer/infrastructure/config"

	"github.com/spf13/cobra"
)

var (
	cfgFile string
	cfg     *config.Config
	cfgErr  error
)

var rootCmd = &cobra.Command{
	Use:   "skip-analyzer",
	Short: "Find skippable segments in videos",
	Long: `skip-analyzer scans a video for stretches worth skipping (openings,
recaps, filler) by combining visual scene changes with audio onsets:

  - Sample frames and detect abrupt scene changes
  - Decode audio in overlapping windows and pick onset peaks
  - Turn long event-free gaps into skip intervals and merge neighbours
  - Cache the result next to the video until the file changes

Example:
  skip-analyzer analyze "/videos/Episode 01.mkv"`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	// A missing file yields the defaults; only a broken one is an error.
	// Commands that need config check cfgErr.
	cfg, cfgErr = config.Load(cfgFile)
}

// GetConfig returns the loaded configuration
func GetConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, fmt.Errorf("failed to load %s: %w", cfgFile, cfgErr)
	}
	if cfg == nil {
		return config.Default(), nil
	}
	return cfg, nil
}
