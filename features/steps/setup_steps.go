//go:build integration

package steps

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"video-music-remover/cmd"
	"video-music-remover/infrastructure/config"

	"github.com/cucumber/godog"
)

type setupContext struct {
	tempDir         string
	configPath      string
	originalContent string
	output          bytes.Buffer
	err             error
}

var SharedSetupContext = &setupContext{}

// MockPrompter implements cmd.Prompter for testing
type MockPrompter struct {
	inputResponses   []string
	selectResponses  []string
	confirmResponses []bool
}

func NewMockPrompter(inputs, selects []string, confirms []bool) *MockPrompter {
	return &MockPrompter{
		inputResponses:   inputs,
		selectResponses:  selects,
		confirmResponses: confirms,
	}
}

func (m *MockPrompter) Input(message string, defaultValue string) (string, error) {
	if len(m.inputResponses) == 0 {
		return defaultValue, nil
	}
	response := m.inputResponses[0]
	m.inputResponses = m.inputResponses[1:]
	return response, nil
}

func (m *MockPrompter) Select(message string, options []string, defaultValue string) (string, error) {
	if len(m.selectResponses) == 0 {
		return defaultValue, nil
	}
	response := m.selectResponses[0]
	m.selectResponses = m.selectResponses[1:]
	for _, option := range options {
		if option == response {
			return response, nil
		}
	}
	return "", fmt.Errorf("%q is not one of %v", response, options)
}

func (m *MockPrompter) Confirm(message string, defaultValue bool) (bool, error) {
	if len(m.confirmResponses) == 0 {
		return defaultValue, nil
	}
	response := m.confirmResponses[0]
	m.confirmResponses = m.confirmResponses[1:]
	return response, nil
}

func InitializeSetupScenario(ctx *godog.ScenarioContext) {
	testCtx := SharedSetupContext

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		tempDir, err := os.MkdirTemp("", "setup-test-*")
		if err != nil {
			return c, err
		}
		*testCtx = setupContext{
			tempDir:    tempDir,
			configPath: filepath.Join(tempDir, "config", "config.yaml"),
		}
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
	ctx.Step(`^I run the setup command with answers:$`, testCtx.iRunTheSetupCommandWithAnswers)
	ctx.Step(`^I run the setup command with confirmation "([^"]*)"$`, testCtx.iRunTheSetupCommandWithConfirmation)
	ctx.Step(`^a config file should exist$`, testCtx.aConfigFileShouldExist)
	ctx.Step(`^the saved config should have "([^"]*)" set to "([^"]*)"$`, testCtx.theSavedConfigShouldHave)
	ctx.Step(`^the setup should fail$`, testCtx.theSetupShouldFail)
	ctx.Step(`^the setup output should contain "([^"]*)"$`, testCtx.theSetupOutputShouldContain)
	ctx.Step(`^the existing config should be unchanged$`, testCtx.theExistingConfigShouldBeUnchanged)
}

func (s *setupContext) noConfigFileExistsForSetup() error {
	return os.MkdirAll(filepath.Dir(s.configPath), 0755)
}

func (s *setupContext) aConfigFileAlreadyExistsForSetup() error {
	if err := os.MkdirAll(filepath.Dir(s.configPath), 0755); err != nil {
		return err
	}

	content := `tools:
  ffmpeg: /original/ffmpeg
separation:
  model: mdx_extra
`
	s.originalContent = content
	return os.WriteFile(s.configPath, []byte(content), 0644)
}

func (s *setupContext) iRunTheSetupCommandWithAnswers(table *godog.Table) error {
	inputs, selects := parseAnswerTable(table)
	prompter := NewMockPrompter(inputs, selects, nil)

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, &s.output)
	return nil
}

func (s *setupContext) iRunTheSetupCommandWithConfirmation(confirmation string) error {
	confirm := strings.ToLower(confirmation) == "y"
	prompter := NewMockPrompter(nil, nil, []bool{confirm})

	s.err = cmd.RunSetupWithPrompter(prompter, s.configPath, &s.output)
	return nil
}

// parseAnswerTable splits "| prompt | answer |" rows into free text answers
// and choices; engine, model and format are choices
func parseAnswerTable(table *godog.Table) ([]string, []string) {
	var inputs, selects []string

	for i, row := range table.Rows {
		if i == 0 {
			continue // Skip header row
		}
		prompt := strings.ToLower(row.Cells[0].Value)
		value := row.Cells[1].Value

		switch prompt {
		case "engine", "model", "format":
			selects = append(selects, value)
		default:
			inputs = append(inputs, value)
		}
	}

	return inputs, selects
}

func (s *setupContext) aConfigFileShouldExist() error {
	if s.err != nil {
		return fmt.Errorf("setup command failed: %w", s.err)
	}
	if _, err := os.Stat(s.configPath); os.IsNotExist(err) {
		return fmt.Errorf("config file does not exist at %s", s.configPath)
	}
	return nil
}

func (s *setupContext) theSavedConfigShouldHave(key, expected string) error {
	cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	actual, err := config.NewConfigManager(cfg, s.configPath).Get(key)
	if err != nil {
		return err
	}
	if actual != expected {
		return fmt.Errorf("expected %s %q, got %q", key, expected, actual)
	}
	return nil
}

func (s *setupContext) theSetupShouldFail() error {
	if s.err == nil {
		return fmt.Errorf("expected setup to fail")
	}
	return nil
}

func (s *setupContext) theSetupOutputShouldContain(text string) error {
	if !strings.Contains(s.output.String(), text) {
		return fmt.Errorf("expected %q in setup output %q", text, s.output.String())
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
