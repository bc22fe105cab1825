package cmd

import (
	"fmt"
	"os"
	"strconv"

	"skip-analyzer/infrastructure/config"

	"github.com/AlecAivazis/survey/v2"
	"github.com/spf13/cobra"
)

// Prompter interface for interactive prompts (allows mocking in tests)
type Prompter interface {
	Input(message string, defaultValue string) (string, error)
	Confirm(message string, defaultValue bool) (bool, error)
	Select(message string, options []string, defaultValue string) (string, error)
}

// SurveyPrompter implements Prompter using the survey library
type SurveyPrompter struct{}

func (p *SurveyPrompter) Input(message string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Input{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

func (p *SurveyPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	result := defaultValue
	prompt := &survey.Confirm{
		Message: message,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return false, err
	}
	return result, nil
}

func (p *SurveyPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	result := ""
	prompt := &survey.Select{
		Message: message,
		Options: options,
		Default: defaultValue,
	}
	if err := survey.AskOne(prompt, &result); err != nil {
		return "", err
	}
	return result, nil
}

// DefaultPrompter is the prompter used in production
var DefaultPrompter Prompter = &SurveyPrompter{}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Create configuration file interactively",
	Long: `Prompts for configuration values and creates config.yaml.

This command guides you through locating ffmpeg, choosing where analysis
results are cached, and how logs are written. Detection thresholds keep
their defaults and can be tuned in the file afterwards.`,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	path := cfgFile
	if path == "" {
		path = config.DefaultPath
	}
	return RunSetupWithPrompter(DefaultPrompter, path, DefaultOutput)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	// Check if config already exists
	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm("config.yaml already exists. Overwrite?", false)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to skip-analyzer setup!")
	fmt.Fprintln(out)

	cfg := config.Default()

	if err := promptFFmpeg(prompter, cfg); err != nil {
		return err
	}

	if err := promptDetection(prompter, cfg); err != nil {
		return err
	}

	if err := promptCache(prompter, cfg); err != nil {
		return err
	}

	if err := promptLogging(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

func promptFFmpeg(prompter Prompter, cfg *config.Config) error {
	ffmpegPath, err := prompter.Input("Path to ffmpeg?", cfg.FFmpeg.Path)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if ffmpegPath != "" {
		cfg.FFmpeg.Path = ffmpegPath
	}

	ffprobePath, err := prompter.Input("Path to ffprobe?", cfg.FFmpeg.FFprobePath)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if ffprobePath != "" {
		cfg.FFmpeg.FFprobePath = ffprobePath
	}

	tempDir, err := prompter.Input("Directory for temporary audio chunks? (empty for system default)", "")
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.FFmpeg.TempDir = tempDir

	return nil
}

func promptDetection(prompter Prompter, cfg *config.Config) error {
	decoder, err := prompter.Select("How should frames be decoded?",
		[]string{config.DecoderFFmpeg, config.DecoderGocv}, cfg.Detection.Decoder)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Detection.Decoder = decoder

	workers, err := prompter.Input("Parallel audio workers?", strconv.Itoa(cfg.Detection.Workers))
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	if workers != "" {
		n, err := strconv.Atoi(workers)
		if err != nil || n < 1 {
			return fmt.Errorf("workers must be a positive number, got %q", workers)
		}
		cfg.Detection.Workers = n
	}

	return nil
}

func promptCache(prompter Prompter, cfg *config.Config) error {
	backend, err := prompter.Select("Where should analysis results be cached?",
		[]string{config.BackendFile, config.BackendS3, config.BackendNone}, cfg.Cache.Backend)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Cache.Backend = backend

	switch backend {
	case config.BackendFile:
		dir, err := prompter.Input("Cache directory?", cfg.Cache.Directory)
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if dir != "" {
			cfg.Cache.Directory = dir
		}

	case config.BackendS3:
		bucket, err := prompter.Input("  Bucket:", "")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		if bucket == "" {
			return fmt.Errorf("bucket is required")
		}
		cfg.Cache.S3.Bucket = bucket

		region, err := prompter.Input("  Region:", "us-east-1")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		cfg.Cache.S3.Region = region

		prefix, err := prompter.Input("  Key prefix:", "skip-analyzer")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		cfg.Cache.S3.Prefix = prefix

		endpoint, err := prompter.Input("  Custom endpoint URL? (empty for AWS)", "")
		if err != nil {
			return fmt.Errorf("prompt cancelled")
		}
		cfg.Cache.S3.Endpoint = endpoint
	}

	return nil
}

func promptLogging(prompter Prompter, cfg *config.Config) error {
	level, err := prompter.Select("Log level?", []string{"debug", "info", "warn", "error"}, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Logging.Level = level

	format, err := prompter.Select("Log format?", []string{"text", "json"}, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("prompt cancelled")
	}
	cfg.Logging.Format = format

	return nil
}
