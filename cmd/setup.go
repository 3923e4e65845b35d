package cmd

import (
	"fmt"
	"os"

	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/config"
	"video-music-remover/infrastructure/demucs"

	"github.com/AlecAivazis/survey/v2"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// ErrPromptCancelled is returned when the user aborts a prompt
var ErrPromptCancelled = errors.New("prompt cancelled")

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

This command asks where ffmpeg, python and demucs are installed and which
separation model, engine and output format remove-music uses by default.`,
	Args: cobra.NoArgs,
	RunE: runSetup,
}

func init() {
	rootCmd.AddCommand(setupCmd)
}

func runSetup(cmd *cobra.Command, args []string) error {
	return RunSetupWithPrompter(DefaultPrompter, cfgFile, DefaultOutput)
}

// RunSetupWithPrompter runs the setup with a given prompter (for testing)
func RunSetupWithPrompter(prompter Prompter, configPath string, out OutputWriter) error {
	if configPath == "" {
		configPath = config.DefaultPath
	}

	if _, err := os.Stat(configPath); err == nil {
		overwrite, err := prompter.Confirm(fmt.Sprintf("%s already exists. Overwrite?", configPath), false)
		if err != nil {
			return ErrPromptCancelled
		}
		if !overwrite {
			fmt.Fprintln(out, "Setup cancelled.")
			return nil
		}
	}

	fmt.Fprintln(out, "Welcome to video-music-remover setup!")
	fmt.Fprintln(out)

	cfg := config.Default()

	if err := promptTools(prompter, cfg); err != nil {
		return err
	}

	if err := promptSeparation(prompter, cfg); err != nil {
		return err
	}

	if err := promptPaths(prompter, cfg); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := config.Save(cfg, configPath); err != nil {
		return errors.Wrap(err, "failed to save configuration")
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Configuration saved to %s\n", configPath)
	return nil
}

// ask returns the answer, or fallback when the answer is empty
func ask(prompter Prompter, message, fallback string) (string, error) {
	answer, err := prompter.Input(message, fallback)
	if err != nil {
		return "", ErrPromptCancelled
	}
	if answer == "" {
		return fallback, nil
	}
	return answer, nil
}

func promptTools(prompter Prompter, cfg *config.Config) error {
	var err error

	if cfg.Tools.FFmpeg, err = ask(prompter, "Path to ffmpeg?", cfg.Tools.FFmpeg); err != nil {
		return err
	}

	engines := []string{string(demucs.EngineWorker), string(demucs.EngineCLI)}
	engine, err := prompter.Select("How should demucs be run?", engines, cfg.Separation.Engine)
	if err != nil {
		return ErrPromptCancelled
	}
	cfg.Separation.Engine = engine

	if demucs.Engine(engine) == demucs.EngineCLI {
		cfg.Tools.Demucs, err = ask(prompter, "Path to the demucs executable?", cfg.Tools.Demucs)
	} else {
		cfg.Tools.Python, err = ask(prompter, "Python interpreter with demucs installed?", cfg.Tools.Python)
	}
	return err
}

func promptSeparation(prompter Prompter, cfg *config.Config) error {
	var models []string
	for _, m := range separation.Models() {
		models = append(models, string(m))
	}
	model, err := prompter.Select("Default separation model?", models, cfg.Separation.Model)
	if err != nil {
		return ErrPromptCancelled
	}
	cfg.Separation.Model = model

	formats := []string{string(separation.FormatMP3), string(separation.FormatWAV), string(separation.FormatFLAC)}
	format, err := prompter.Select("Format of the separated vocals?", formats, cfg.Separation.OutputFormat)
	if err != nil {
		return ErrPromptCancelled
	}
	cfg.Separation.OutputFormat = format

	// Empty lets demucs pick cuda when available
	device, err := prompter.Input("Device for separation (cpu, cuda, empty for automatic)?", cfg.Separation.Device)
	if err != nil {
		return ErrPromptCancelled
	}
	cfg.Separation.Device = device

	return nil
}

func promptPaths(prompter Prompter, cfg *config.Config) error {
	tempDir, err := prompter.Input("Directory for temporary files (empty for the system default)?", "")
	if err != nil {
		return ErrPromptCancelled
	}
	cfg.Paths.TempDirectory = tempDir

	logFile, err := prompter.Input("Log file to append progress to (empty for none)?", "")
	if err != nil {
		return ErrPromptCancelled
	}
	if err := config.ValidateLogFile(logFile); err != nil {
		return err
	}
	cfg.Paths.LogFile = logFile

	return nil
}
