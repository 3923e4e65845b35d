package config

import (
	"os"
	"path/filepath"
	"strings"

	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/demucs"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the config file is looked up unless --config is given
const DefaultPath = "config/config.yaml"

// Config represents the complete application configuration
type Config struct {
	Tools      ToolsConfig      `yaml:"tools"`
	Separation SeparationConfig `yaml:"separation"`
	Paths      PathsConfig      `yaml:"paths"`
}

// ToolsConfig contains executable paths. Bare names are resolved from PATH.
type ToolsConfig struct {
	FFmpeg string `yaml:"ffmpeg"`
	Python string `yaml:"python"`
	Demucs string `yaml:"demucs"`
}

// SeparationConfig contains the model defaults
type SeparationConfig struct {
	Model        string `yaml:"model"`
	Engine       string `yaml:"engine"`
	Device       string `yaml:"device,omitempty"`
	OutputFormat string `yaml:"output_format"`
}

// PathsConfig contains working locations
type PathsConfig struct {
	TempDirectory string `yaml:"temp_directory,omitempty"`
	LogFile       string `yaml:"log_file,omitempty"`
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills empty values
func (c *Config) ApplyDefaults() {
	if c.Tools.FFmpeg == "" {
		c.Tools.FFmpeg = "ffmpeg"
	}
	if c.Tools.Python == "" {
		c.Tools.Python = "python3"
	}
	if c.Tools.Demucs == "" {
		c.Tools.Demucs = "demucs"
	}
	if c.Separation.Model == "" {
		c.Separation.Model = string(separation.DefaultModel)
	}
	if c.Separation.Engine == "" {
		c.Separation.Engine = string(demucs.DefaultEngine)
	}
	if c.Separation.OutputFormat == "" {
		c.Separation.OutputFormat = string(separation.DefaultOutputFormat)
	}
}

// Validate checks the values that have a fixed set of choices
func (c *Config) Validate() error {
	if _, err := separation.ParseModel(c.Separation.Model); err != nil {
		return errors.Wrap(err, "separation.model")
	}
	if _, err := demucs.ParseEngine(c.Separation.Engine); err != nil {
		return errors.Wrap(err, "separation.engine")
	}
	if _, err := separation.ParseOutputFormat(c.Separation.OutputFormat); err != nil {
		return errors.Wrap(err, "separation.output_format")
	}
	if err := ValidateLogFile(c.Paths.LogFile); err != nil {
		return errors.Wrap(err, "paths.log_file")
	}
	return nil
}

// ValidateLogFile accepts an empty path or one ending in .log
func ValidateLogFile(path string) error {
	if path != "" && !strings.HasSuffix(path, ".log") {
		return errors.WithHint(
			errors.Newf("log file %q must end with .log", path),
			"for example: --log remove-music.log",
		)
	}
	return nil
}

// Load reads and parses the configuration from the specified YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrapf(err, "invalid config file %s", path)
	}

	return &cfg, nil
}

// LoadOrDefault loads path, falling back to defaults when the file does not
// exist. The boolean reports whether a file was read.
func LoadOrDefault(path string) (*Config, bool, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, false, err
	}
	return cfg, true, nil
}

// Save writes the configuration to the specified YAML file
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to serialize config")
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}

	return nil
}
