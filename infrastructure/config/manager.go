package config

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"
)

// ErrUnknownKey is returned for a key that is not part of the config
var ErrUnknownKey = errors.New("unknown config key")

// ConfigManager reads and updates single config values by dotted key
type ConfigManager struct {
	config     *Config
	configPath string
}

// NewConfigManager creates a new config manager
func NewConfigManager(cfg *Config, configPath string) *ConfigManager {
	return &ConfigManager{
		config:     cfg,
		configPath: configPath,
	}
}

func (m *ConfigManager) fields() map[string]*string {
	return map[string]*string{
		"tools.ffmpeg":             &m.config.Tools.FFmpeg,
		"tools.python":             &m.config.Tools.Python,
		"tools.demucs":             &m.config.Tools.Demucs,
		"separation.model":         &m.config.Separation.Model,
		"separation.engine":        &m.config.Separation.Engine,
		"separation.device":        &m.config.Separation.Device,
		"separation.output_format": &m.config.Separation.OutputFormat,
		"paths.temp_directory":     &m.config.Paths.TempDirectory,
		"paths.log_file":           &m.config.Paths.LogFile,
	}
}

// Keys returns every settable key, sorted
func (m *ConfigManager) Keys() []string {
	var keys []string
	for key := range m.fields() {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Get returns the value of key
func (m *ConfigManager) Get(key string) (string, error) {
	field, ok := m.fields()[strings.ToLower(strings.TrimSpace(key))]
	if !ok {
		return "", errors.Newf("%w: %q", ErrUnknownKey, key)
	}
	return *field, nil
}

// Set validates and stores value under key, then saves the file
func (m *ConfigManager) Set(key, value string) error {
	key = strings.ToLower(strings.TrimSpace(key))
	field, ok := m.fields()[key]
	if !ok {
		return errors.WithHint(
			errors.Newf("%w: %q", ErrUnknownKey, key),
			"valid keys: "+strings.Join(m.Keys(), ", "),
		)
	}

	previous := *field
	*field = strings.TrimSpace(value)
	m.config.ApplyDefaults()
	if err := m.config.Validate(); err != nil {
		*field = previous
		return err
	}

	return Save(m.config, m.configPath)
}

// Show renders the configuration as YAML
func (m *ConfigManager) Show() (string, error) {
	data, err := yaml.Marshal(m.config)
	if err != nil {
		return "", errors.Wrap(err, "failed to serialize config")
	}
	return string(data), nil
}
