//go:build integration

package steps

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-music-remover/infrastructure/config"

	"github.com/cucumber/godog"
)

type configContext struct {
	tempDir    string
	configPath string
	cfg        *config.Config
	found      bool
	loadErr    error
}

// SharedConfigContext is reset before each scenario via Before hook
var SharedConfigContext = &configContext{}

func InitializeConfigScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedConfigContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "config-test-*")
		if err != nil {
			return c, err
		}
		*testCtx = configContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config.yaml"),
		}
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
	ctx.Step(`^I load the configuration$`, testCtx.iLoadTheConfiguration)
	ctx.Step(`^I attempt to load the configuration$`, testCtx.iAttemptToLoadTheConfiguration)
	ctx.Step(`^the defaults should be used$`, testCtx.theDefaultsShouldBeUsed)
	ctx.Step(`^the configured "([^"]*)" should be "([^"]*)"$`, testCtx.theConfiguredValueShouldBe)
	ctx.Step(`^loading should fail mentioning "([^"]*)"$`, testCtx.loadingShouldFailMentioning)
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

func (c *configContext) iLoadTheConfiguration() error {
	cfg, found, err := config.LoadOrDefault(c.configPath)
	if err != nil {
		return fmt.Errorf("unexpected error loading config: %w", err)
	}
	c.cfg = cfg
	c.found = found
	return nil
}

func (c *configContext) iAttemptToLoadTheConfiguration() error {
	c.cfg, c.found, c.loadErr = config.LoadOrDefault(c.configPath)
	return nil
}

func (c *configContext) theDefaultsShouldBeUsed() error {
	if c.found {
		return fmt.Errorf("expected no config file to be read")
	}
	if *c.cfg != *config.Default() {
		return fmt.Errorf("expected defaults, got %+v", *c.cfg)
	}
	return nil
}

func (c *configContext) theConfiguredValueShouldBe(key, expected string) error {
	if c.cfg == nil {
		return fmt.Errorf("config was not loaded")
	}
	actual, err := config.NewConfigManager(c.cfg, c.configPath).Get(key)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("expected %s %q, got %q", key, expected, actual)
	}
	return nil
}

func (c *configContext) loadingShouldFailMentioning(text string) error {
	if c.loadErr == nil {
		return fmt.Errorf("expected an error but got none")
	}
	if !strings.Contains(c.loadErr.Error(), text) {
		return fmt.Errorf("expected error mentioning %q, got %v", text, c.loadErr)
	}
	return nil
}
