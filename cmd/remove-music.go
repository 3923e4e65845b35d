package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"video-music-remover/application/batch"
	"video-music-remover/application/pipeline"
	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/config"
	"video-music-remover/infrastructure/demucs"
	"video-music-remover/infrastructure/ffmpeg"
	"video-music-remover/infrastructure/filesystem"
	"video-music-remover/infrastructure/report"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var (
	removeModel          string
	removeLogFile        string
	removeDeleteOriginal bool
)

var removeMusicCmd = &cobra.Command{
	Use:   "remove-music <input> <output>",
	Short: "Remove the music from a video or a directory of videos",
	Long: `Separates the vocals of every audio track and writes a new video with
vocal-only audio into the output directory. Video, subtitle and other
streams are copied as they are.

The input is a single .mp4, .mkv or .webm file, or a directory whose
supported files are processed one after another. In directory mode files
whose output already exists are skipped, so an interrupted run can simply
be started again.

Examples:
  video-music-remover remove-music lecture.mp4 ./out
  video-music-remover remove-music ./videos ./out --model mdx_extra --log run.log
  video-music-remover remove-music ./videos ./out --delete-original`,
	Args: cobra.ExactArgs(2),
	RunE: runRemoveMusic,
}

func init() {
	rootCmd.AddCommand(removeMusicCmd)
	removeMusicCmd.Flags().StringVarP(&removeModel, "model", "m", "", "Separation model: "+modelNames())
	removeMusicCmd.Flags().StringVar(&removeLogFile, "log", "", "Also append progress to this file (must end with .log)")
	removeMusicCmd.Flags().BoolVar(&removeDeleteOriginal, "delete-original", false, "Delete each original video once its new version was created")
}

func modelNames() string {
	var names []string
	for _, m := range separation.Models() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

// InstallVerifier checks that an external tool can be run
type InstallVerifier interface {
	VerifyInstalled(ctx context.Context) error
}

// verifyTimeout bounds each tool check before a batch starts
const verifyTimeout = 5 * time.Second

// RemoveMusicDependencies are the collaborators of the remove-music command.
// Every Verifier must pass before the first file is touched.
type RemoveMusicDependencies struct {
	Verifiers     []InstallVerifier
	Prober        media.Prober
	Extractor     media.TrackExtractor
	Remuxer       media.Remuxer
	FileSystem    media.FileSystem
	Registry      separation.Registry
	Reporter      job.Reporter
	TempDirectory string
}

func runRemoveMusic(cmd *cobra.Command, args []string) error {
	cfg, err := GetConfig()
	if err != nil {
		return err
	}

	input, err := removeMusicInput(cfg, args[0], args[1])
	if err != nil {
		return err
	}

	logFile := removeLogFile
	if logFile == "" {
		logFile = cfg.Paths.LogFile
	}
	if err := config.ValidateLogFile(logFile); err != nil {
		return err
	}

	engine, err := demucs.ParseEngine(cfg.Separation.Engine)
	if err != nil {
		return err
	}
	format, err := separation.ParseOutputFormat(cfg.Separation.OutputFormat)
	if err != nil {
		return err
	}

	logger, closer, err := report.NewLogger(os.Stdout, logFile)
	if err != nil {
		return err
	}
	defer closer.Close()

	prober := ffmpeg.NewProber()
	remuxer := ffmpeg.NewRemuxer(ffmpeg.WithFFmpegPath(cfg.Tools.FFmpeg))

	deps := RemoveMusicDependencies{
		Verifiers:  []InstallVerifier{remuxer, prober},
		Prober:     prober,
		Extractor:  ffmpeg.NewExtractor(ffmpeg.WithExtractorFFmpegPath(cfg.Tools.FFmpeg)),
		Remuxer:    remuxer,
		FileSystem: filesystem.NewChecker(),
		Registry: demucs.NewRegistry(demucs.Options{
			Engine:     engine,
			PythonPath: cfg.Tools.Python,
			DemucsPath: cfg.Tools.Demucs,
			Device:     cfg.Separation.Device,
			Format:     format,
		}),
		Reporter:      job.NewDispatcher(report.NewLogReporter(logger)),
		TempDirectory: cfg.Paths.TempDirectory,
	}

	return RunRemoveMusicWithDependencies(cmd.Context(), deps, input, DefaultOutput)
}

// removeMusicInput combines the arguments, the flags and the config defaults
func removeMusicInput(cfg *config.Config, inputPath, outputPath string) (batch.Input, error) {
	name := removeModel
	if name == "" {
		name = cfg.Separation.Model
	}
	model, err := separation.ParseModel(name)
	if err != nil {
		return batch.Input{}, errors.WithHint(err, "available models: "+modelNames())
	}

	return batch.Input{
		InputPath:      inputPath,
		OutputPath:     outputPath,
		Model:          model,
		DeleteOriginal: removeDeleteOriginal,
	}, nil
}

// RunRemoveMusicWithDependencies runs a batch with injected dependencies (for testing)
func RunRemoveMusicWithDependencies(ctx context.Context, deps RemoveMusicDependencies, input batch.Input, out OutputWriter) error {
	// no job can succeed without its tools
	for _, v := range deps.Verifiers {
		verifyCtx, cancel := context.WithTimeout(ctx, verifyTimeout)
		err := v.VerifyInstalled(verifyCtx)
		cancel()
		if err != nil {
			return errors.WithHint(err, "run 'video-music-remover health-check' to see which tools are missing")
		}
	}

	var opts []pipeline.Option
	if deps.TempDirectory != "" {
		opts = append(opts, pipeline.WithTempDirectory(deps.TempDirectory))
	}

	runner := pipeline.NewService(deps.Prober, deps.Extractor, deps.Remuxer, deps.FileSystem, deps.Reporter, opts...)
	svc := batch.NewService(deps.FileSystem, runner, deps.Registry, deps.Reporter)

	summary, err := svc.Run(ctx, input)
	if err != nil {
		return err
	}

	printSummary(out, summary)

	if summary.HasFailures() {
		return errors.Newf("%d of %d files could not be processed", len(summary.Failed), summary.Attempted())
	}
	return nil
}

func printSummary(out OutputWriter, summary *batch.Summary) {
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Succeeded: %d\n", len(summary.Succeeded))
	fmt.Fprintf(out, "Failed:    %d\n", len(summary.Failed))
	fmt.Fprintf(out, "Skipped:   %d\n", summary.Skipped)

	for _, f := range summary.Failed {
		fmt.Fprintf(out, "  %s (%s): %v\n", f.Job.SourcePath, f.Stage, f.Err)
	}

	if len(summary.DeletionFailures) > 0 {
		fmt.Fprintf(out, "Originals not deleted: %d\n", len(summary.DeletionFailures))
		for _, f := range summary.DeletionFailures {
			fmt.Fprintf(out, "  %s: %v\n", f.Job.SourcePath, f.Err)
		}
	}
}
