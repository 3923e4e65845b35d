package demucs

import (
	"context"
	"os"
	"path/filepath"

	"video-music-remover/domain/separation"
	"video-music-remover/infrastructure/command"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// CLISeparator runs the demucs executable once per track. The model is
// loaded again on every call.
type CLISeparator struct {
	demucsPath string
	model      separation.Model
	format     separation.OutputFormat
	device     string
	runner     command.Runner
	stat       func(string) (os.FileInfo, error)
}

// NewCLISeparator creates a separator backed by the demucs command line
func NewCLISeparator(runner command.Runner, demucsPath string, model separation.Model, format separation.OutputFormat, device string) *CLISeparator {
	return &CLISeparator{
		demucsPath: demucsPath,
		model:      model,
		format:     format,
		device:     device,
		runner:     runner,
		stat:       os.Stat,
	}
}

// Args returns the demucs arguments separating inputPath into outputDir
func (c *CLISeparator) Args(inputPath, outputDir string) []string {
	args := []string{
		"--two-stems", separation.StemVocals,
		"-n", c.model.Pretrained(),
		"--filename", "{stem}.{ext}",
		"-o", outputDir,
	}
	switch c.format {
	case separation.FormatMP3:
		args = append(args, "--mp3")
	case separation.FormatFLAC:
		args = append(args, "--flac")
	}
	if c.device != "" {
		args = append(args, "-d", c.device)
	}
	return append(args, inputPath)
}

// VocalsPath is where demucs writes the vocals stem for outputDir
func (c *CLISeparator) VocalsPath(outputDir string) string {
	return filepath.Join(outputDir, c.model.Pretrained(), separation.StemVocals+c.format.Extension())
}

// Separate implements separation.Separator
func (c *CLISeparator) Separate(ctx context.Context, inputPath, outputDir string) (string, error) {
	// separating is a lengthy process, if we want to halt now is the time
	if err := ctx.Err(); err != nil {
		return "", err
	}

	logger := log.WithFields(log.Fields{
		"input":  inputPath,
		"output": outputDir,
		"model":  c.model.Pretrained(),
	})
	logger.Debug("running demucs command")

	if err := c.runner.Run(ctx, c.demucsPath, c.Args(inputPath, outputDir)...); err != nil {
		return "", errors.Wrap(err, "demucs failed")
	}

	vocals := c.VocalsPath(outputDir)
	if _, err := c.stat(vocals); err != nil {
		return "", errors.Wrapf(err, "demucs produced no vocals stem at %s", vocals)
	}

	logger.Debug("finished demucs command")
	return vocals, nil
}

// Close implements separation.Separator. There is nothing to release.
func (c *CLISeparator) Close() error {
	return nil
}

// Ensure CLISeparator implements separation.Separator
var _ separation.Separator = (*CLISeparator)(nil)
