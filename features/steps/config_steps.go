//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"skip-analyzer/cmd"
	"skip-analyzer/infrastructure/config"

	"github.com/cucumber/godog"
	"github.com/sethvargo/go-envconfig"
)

type configContext struct {
	tempDir    string
	configPath string
	env        map[string]string
	cfg        *config.Config
	loadErr    error
	output     bytes.Buffer
}

var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		testCtx.tempDir = tempDir
		testCtx.configPath = filepath.Join(tempDir, "config.yaml")
		testCtx.env = make(map[string]string)
		testCtx.cfg = nil
		testCtx.loadErr = nil
		testCtx.output.Reset()
		return c, nil
	})

	ctx.After(func(c context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		if testCtx.tempDir != "" {
			os.RemoveAll(testCtx.tempDir)
		}
		return c, nil
	})

	ctx.Step(`^a configuration file containing:$`, testCtx.aConfigurationFileContaining)
	ctx.Step(`^no configuration file exists$`, testCtx.noConfigurationFileExists)
	ctx.Step(`^the environment variable "([^"]*)" is "([^"]*)"$`, testCtx.theEnvironmentVariableIs)
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^I attempt to load the configuration$`, testCtx.iAttemptToLoadTheConfiguration)
	ctx.Step(`^the cache backend should be "([^"]*)"$`, testCtx.theCacheBackendShouldBe)
	ctx.Step(`^the frame stride should be (\d+)$`, testCtx.theFrameStrideShouldBe)
	ctx.Step(`^the minimum skip duration should be ([0-9.]+) seconds$`, testCtx.theMinimumSkipDurationShouldBe)
	ctx.Step(`^the ffmpeg path should be "([^"]*)"$`, testCtx.theFFmpegPathShouldBe)
	ctx.Step(`^I should receive a configuration error mentioning "([^"]*)"$`, testCtx.iShouldReceiveAConfigurationErrorMentioning)
	ctx.Step(`^I show the configuration$`, testCtx.iShowTheConfiguration)
	ctx.Step(`^the shown configuration should contain "([^"]*)"$`, testCtx.theShownConfigurationShouldContain)
}

func (c *configContext) aConfigurationFileContaining(content *godog.DocString) error {
	return os.WriteFile(c.configPath, []byte(content.Content), 0644)
}

func (c *configContext) noConfigurationFileExists() error {
	if _, err := os.Stat(c.configPath); err == nil {
		return fmt.Errorf("unexpected config file at %s", c.configPath)
	}
	return nil
}

func (c *configContext) theEnvironmentVariableIs(name, value string) error {
	c.env[name] = value
	return nil
}

func (c *configContext) load() (*config.Config, error) {
	return config.LoadWithLookuper(c.configPath, envconfig.MapLookuper(c.env))
}

func (c *configContext) iLoadTheConfiguration() error {
	cfg, err := c.load()
	if err != nil {
		return fmt.Errorf("unexpected error loading config: %w", err)
	}
	c.cfg = cfg
	return nil
}

func (c *configContext) iAttemptToLoadTheConfiguration() error {
	c.cfg, c.loadErr = c.load()
	return nil
}

func (c *configContext) theCacheBackendShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.Cache.Backend != expected {
		return fmt.Errorf("expected cache backend %q, got %q", expected, c.cfg.Cache.Backend)
	}
	return nil
}

func (c *configContext) theFrameStrideShouldBe(expected int) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.Detection.FrameStride != expected {
		return fmt.Errorf("expected frame stride %d, got %d", expected, c.cfg.Detection.FrameStride)
	}
	return nil
}

func (c *configContext) theMinimumSkipDurationShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	want, err := strconv.ParseFloat(expected, 64)
	if err != nil {
		return err
	}
	if c.cfg.Detection.MinSkipDuration != want {
		return fmt.Errorf("expected min skip duration %v, got %v", want, c.cfg.Detection.MinSkipDuration)
	}
	return nil
}

func (c *configContext) theFFmpegPathShouldBe(expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	if c.cfg.FFmpeg.Path != expected {
		return fmt.Errorf("expected ffmpeg path %q, got %q", expected, c.cfg.FFmpeg.Path)
	}
	return nil
}

func (c *configContext) iShouldReceiveAConfigurationErrorMentioning(text string) error {
	if c.loadErr == nil {
		return fmt.Errorf("expected an error but got none")
	}
	if !strings.Contains(c.loadErr.Error(), text) {
		return fmt.Errorf("expected error to mention %q, got: %v", text, c.loadErr)
	}
	return nil
}

func (c *configContext) iShowTheConfiguration() error {
	cfg, err := c.load()
	if err != nil {
		return err
	}
	return cmd.RunConfigShowWithDependencies(cfg, &c.output)
}

func (c *configContext) theShownConfigurationShouldContain(text string) error {
	if !strings.Contains(c.output.String(), text) {
		return fmt.Errorf("expected output to contain %q, got:\n%s", text, c.output.String())
	}
	return nil
}
