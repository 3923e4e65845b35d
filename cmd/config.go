package cmd

import (
	"fmt"

	"video-music-remover/infrastructure/config"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show or change configuration values",
	Long: `Show the effective configuration or change a single value in the
configuration file.

Examples:
  video-music-remover config show
  video-music-remover config set separation.model mdx_extra
  video-music-remover config set tools.ffmpeg /opt/ffmpeg/bin/ffmpeg`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Change a configuration value",
	Long: `Change a configuration value and save the configuration file.

Keys:
  tools.ffmpeg, tools.python, tools.demucs,
  separation.model, separation.engine, separation.device, separation.output_format,
  paths.temp_directory, paths.log_file`,
	Args: cobra.ExactArgs(2),
	RunE: runConfigSet,
}

func init() {
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configSetCmd)
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	if !cfgFound {
		fmt.Fprintf(DefaultOutput, "# %s not found, showing defaults\n", cfgFile)
	}
	return RunConfigShowWithDependencies(cfg, cfgFile, DefaultOutput)
}

// RunConfigShowWithDependencies prints cfg as yaml
func RunConfigShowWithDependencies(cfg *config.Config, configPath string, out OutputWriter) error {
	shown, err := config.NewConfigManager(cfg, configPath).Show()
	if err != nil {
		return err
	}
	fmt.Fprint(out, shown)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	return RunConfigSetWithDependencies(cfg, cfgFile, args[0], args[1], DefaultOutput)
}

// RunConfigSetWithDependencies changes one value and saves configPath
func RunConfigSetWithDependencies(cfg *config.Config, configPath, key, value string, out OutputWriter) error {
	mgr := config.NewConfigManager(cfg, configPath)

	if err := mgr.Set(key, value); err != nil {
		return err
	}

	fmt.Fprintf(out, "Set %s = %q in %s\n", key, value, configPath)
	return nil
}
