package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"video-music-remover/infrastructure/config"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

// OutputWriter is where commands print their results
type OutputWriter interface {
	Write(p []byte) (n int, err error)
}

// DefaultOutput is the default output writer for commands
var DefaultOutput OutputWriter = os.Stdout

var (
	cfgFile  string
	cfg      *config.Config
	cfgFound bool
	cfgErr   error
)

var rootCmd = &cobra.Command{
	Use:   "video-music-remover",
	Short: "Remove background music from videos while keeping speech",
	Long: `video-music-remover extracts every audio track of a video, separates the
vocals from the music with a pretrained Demucs model and writes a new video
whose audio tracks contain only the vocals. Video, subtitle and other
streams are copied untouched.

Requires ffmpeg, ffprobe and the demucs python package.

Example:
  video-music-remover remove-music ./videos ./no-music --model ht_demucs`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Interrupts cancel the running command.
func Execute() {
	log.SetHandler(cli.New(os.Stderr))
	log.SetLevel(log.InfoLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		printError(err)
		stop()
		os.Exit(1)
	}
}

func printError(err error) {
	fmt.Fprintf(os.Stderr, "[ERROR] %v\n", err)
	if hint := errors.FlattenHints(err); hint != "" {
		fmt.Fprintf(os.Stderr, "        %s\n", hint)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./"+config.DefaultPath+")")
}

func initConfig() {
	if cfgFile == "" {
		cfgFile = config.DefaultPath
	}

	// The config file is optional; defaults apply when it is missing
	cfg, cfgFound, cfgErr = config.LoadOrDefault(cfgFile)
}

// GetConfig returns the loaded configuration, or the error that prevented loading it
func GetConfig() (*config.Config, error) {
	if cfgErr != nil {
		return nil, cfgErr
	}
	if cfg == nil {
		return config.Default(), nil
	}
	return cfg, nil
}
