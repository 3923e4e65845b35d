package cmd

import (
	"context"
	"fmt"

	"video-music-remover/infrastructure/command"
	"video-music-remover/infrastructure/demucs"
	"video-music-remover/infrastructure/diagnostics"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// ErrUnhealthy is returned when at least one health check failed
var ErrUnhealthy = errors.New("health check failed")

var healthDebug bool

var healthCheckCmd = &cobra.Command{
	Use:   "health-check",
	Short: "Check that ffmpeg, ffprobe and demucs are available",
	Long: `Runs every external tool the remove-music command depends on and
reports which ones are missing.

With --debug the commands and their output are logged.`,
	Args: cobra.NoArgs,
	RunE: runHealthCheck,
}

func init() {
	rootCmd.AddCommand(healthCheckCmd)
	healthCheckCmd.Flags().BoolVar(&healthDebug, "debug", false, "Log the commands run by each check")
}

// HealthChecker runs the tool checks
type HealthChecker interface {
	Run(ctx context.Context, settings diagnostics.Settings) diagnostics.Report
}

func runHealthCheck(cmd *cobra.Command, args []string) error {
	if healthDebug {
		log.SetLevel(log.DebugLevel)
	}

	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	engine, err := demucs.ParseEngine(cfg.Separation.Engine)
	if err != nil {
		return err
	}

	settings := diagnostics.Settings{
		FFmpegPath:    cfg.Tools.FFmpeg,
		PythonPath:    cfg.Tools.Python,
		DemucsPath:    cfg.Tools.Demucs,
		Engine:        engine,
		TempDirectory: cfg.Paths.TempDirectory,
	}

	checker := diagnostics.NewChecker(&command.ExecRunner{})
	return RunHealthCheckWithDependencies(cmd.Context(), checker, settings, DefaultOutput)
}

// RunHealthCheckWithDependencies runs the checks with an injected checker (for testing)
func RunHealthCheckWithDependencies(ctx context.Context, checker HealthChecker, settings diagnostics.Settings, out OutputWriter) error {
	report := checker.Run(ctx, settings)

	for _, item := range report.Items {
		if item.Status == diagnostics.StatusPass {
			fmt.Fprintf(out, "[INFO] %s\n", item.Message)
			continue
		}
		fmt.Fprintf(out, "[ERROR] %s\n", item.Message)
		if item.Hint != "" {
			fmt.Fprintf(out, "        %s\n", item.Hint)
		}
	}

	if report.HasFailures {
		fmt.Fprintln(out, "There are some issues")
		return ErrUnhealthy
	}

	fmt.Fprintln(out, "Everything is ok")
	return nil
}
