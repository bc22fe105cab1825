//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"skip-analyzer/cmd"
	"skip-analyzer/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	setupCancelled  bool
	originalContent string
	output          bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	confirmResponses []bool
	selectResponses  []string
	inputIndex       int
	confirmIndex     int
	selectIndex      int
}

func NewMockPrompter(inputs []string, confirms []bool, selects []string) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		confirmResponses: confirms,
		selectResponses:  selects,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if m.inputIndex >= len(m.inputResponses) {
		return defaultValue, nil
	}
	response := m.inputResponses[m.inputIndex]
	m.inputIndex++
	return response, nil
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if m.confirmIndex >= len(m.confirmResponses) {
		return defaultValue, nil
	}
	response := m.confirmResponses[m.confirmIndex]
	m.confirmIndex++
	return response, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	if m.selectIndex >= len(m.selectResponses) {
		return defaultValue, nil
	}
	response := m.selectResponses[m.selectIndex]
	m.selectIndex++
	for _, o := range options {
		if o == response {
			return response, nil
		}
	}
	return "", fmt.Errorf("%q is not an option for %q", response, message)
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		// Create temp directory for each scenario
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config", "config.yaml")
		testCtx.setupCancelled = false
		testCtx.originalContent = ""
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

	ctx.Step(`^no config file exists for setup$`, testCtx.noConfigFileExistsForSetup)
	ctx.Step(`^a config file already exists for setup$`, testCtx.aConfigFileAlreadyExistsForSetup)
	ctx.Step(`^I run the setup command with inputs:$`, testCtx.iRunTheSetupCommandWithInputs)
	ctx.Step(`^I attempt to run the setup command with inputs:$`, testCtx.iAttemptToRunTheSetupCommandWithInputs)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, testCtx.iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)" and inputs:$`, testCtx.iRunTheSetupCommandWithConfirmationAndInputs)
	ctx.Step(`^a config file should exist$`, testCtx.aConfigFileShouldExist)
	ctx.Step(`^the saved config should have cache backend "([^"]*)"$`, testCtx.theSavedConfigShouldHaveCacheBackend)
	ctx.Step(`^the saved config should have cache directory "([^"]*)"$`, testCtx.theSavedConfigShouldHaveCacheDirectory)
	ctx.Step(`^the saved config should have S3 bucket "([^"]*)"$`, testCtx.theSavedConfigShouldHaveS3Bucket)
	ctx.Step(`^the saved config should have ffmpeg path "([^"]*)"$`, testCtx.theSavedConfigShouldHaveFFmpegPath)
	ctx.Step(`^the saved config should have (\d+) workers$`, testCtx.theSavedConfigShouldHaveWorkers)
	ctx.Step(`^the saved config should have log format "([^"]*)"$`, testCtx.theSavedConfigShouldHaveLogFormat)
	ctx.Step(`^the setup should fail with "([^"]*)"$`, testCtx.theSetupShouldFailWith)
	ctx.Step(`^the setup should be cancelled$`, testCtx.theSetupShouldBeCancelled)
	ctx.Step(`^the existing config should be unchanged$`, testCtx.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	return os.MkdirAll(filepath.Dir(s.configPath), 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `ffmpeg:
  path: "/opt/original/ffmpeg"
cache:
  backend: "none"
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func (s *setupContext) run(prompter cmd.Prompter) error {
	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, &s.output)
	return s.err
}

func (s *setupContext) iRunTheSetupCommandWithInputs(table *godog.Table) error {
	inputs, confirms, selects := parseInputTable(table)
	if err := s.run(NewMockPrompter(inputs, confirms, selects)); err != nil {
		return fmt.Errorf("setup command failed: %w", err)
	}
	return nil
}

func (s *setupContext) iAttemptToRunTheSetupCommandWithInputs(table *godog.Table) error {
	inputs, confirms, selects := parseInputTable(table)
	s.run(NewMockPrompter(inputs, confirms, selects))
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmation(confirmation string) error {
	confirm := strings.ToLower(confirmation) == "y"
	s.run(NewMockPrompter(nil, []bool{confirm}, nil))
	if !confirm {
		s.setupCancelled = strings.Contains(s.output.String(), "Setup cancelled.")
	}
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmationAndInputs(confirmation string, table *godog.Table) error {
	confirm := strings.ToLower(confirmation) == "y"
	inputs, confirms, selects := parseInputTable(table)

	// Prepend the overwrite confirmation
	allConfirms := append([]bool{confirm}, confirms...)
	if err := s.run(NewMockPrompter(inputs, allConfirms, selects)); err != nil {
		return fmt.Errorf("setup command failed: %w", err)
	}
	return nil
}

// selectPrompts names the rows answered by picking from a list
var selectPrompts = map[string]bool{
	"decoder":       true,
	"cache backend": true,
	"log level":     true,
	"log format":    true,
}

func parseInputTable(table *godog.Table) ([]string, []bool, []string) {
	var inputs []string
	var confirms []bool
	var selects []string

	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		prompt := strings.ToLower(row.Cells[0].Value)
		value := row.Cells[1].Value

		switch {
		case strings.HasPrefix(prompt, "overwrite"):
			confirms = append(confirms, strings.ToLower(value) == "y")
		case selectPrompts[prompt]:
			selects = append(selects, value)
		default:
			inputs = append(inputs, value)
		}
	}

	return inputs, confirms, selects
}

func (s *setupContext) savedConfig() (*config.Config, error) {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

func (s *setupContext) aConfigFileShouldExist() error {
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveCacheBackend(expected string) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Backend != expected {
		return fmt.Errorf("expected cache backend %q, got %q", expected, cfg.Cache.Backend)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveCacheDirectory(expected string) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.Directory != expected {
		return fmt.Errorf("expected cache directory %q, got %q", expected, cfg.Cache.Directory)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveS3Bucket(expected string) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.Cache.S3.Bucket != expected {
		return fmt.Errorf("expected bucket %q, got %q", expected, cfg.Cache.S3.Bucket)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveFFmpegPath(expected string) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.FFmpeg.Path != expected {
		return fmt.Errorf("expected ffmpeg path %q, got %q", expected, cfg.FFmpeg.Path)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveWorkers(expected int) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.Detection.Workers != expected {
		return fmt.Errorf("expected %d workers, got %d", expected, cfg.Detection.Workers)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHaveLogFormat(expected string) error {
	cfg, err := s.savedConfig()
	if err != nil {
		return err
	}
	if cfg.Logging.Format != expected {
		return fmt.Errorf("expected log format %q, got %q", expected, cfg.Logging.Format)
	}
	return nil
}

func (s *setupContext) theSetupShouldFailWith(text string) error {
	if s.err == nil {
		return fmt.Errorf("expected setup to fail")
	}
	if !strings.Contains(s.err.Error(), text) {
		return fmt.Errorf("expected error to mention %q, got: %v", text, s.err)
	}
	return nil
}

func (s *setupContext) theSetupShouldBeCancelled() error {
	if !s.setupCancelled {
		return fmt.Errorf("expected setup to be cancelled")
	}
	return nil
}

func (s *setupContext) theExistingConfigShouldBeUnchanged() error {
	content, err := os.ReadFile(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to read config: %w", err)
	}
	if string(content) != s.originalContent {
		return fmt.Errorf("config content was changed")
	}
	return nil
}
