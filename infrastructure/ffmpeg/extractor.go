package ffmpeg

import (
	"context"
	"fmt"

	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/infrastructure/command"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// Extractor implements media.TrackExtractor using ffmpeg
type Extractor struct {
	ffmpegPath string
	runner     command.Runner
}

// ExtractorOption is a functional option for configuring Extractor
type ExtractorOption func(*Extractor)

// WithExtractorFFmpegPath sets a custom ffmpeg executable path
func WithExtractorFFmpegPath(path string) ExtractorOption {
	return func(e *Extractor) {
		e.ffmpegPath = path
	}
}

// WithExtractorCommandRunner sets a custom command runner (for testing)
func WithExtractorCommandRunner(runner command.Runner) ExtractorOption {
	return func(e *Extractor) {
		e.runner = runner
	}
}

// NewExtractor creates a new FFmpeg-based track extractor
func NewExtractor(opts ...ExtractorOption) *Extractor {
	e := &Extractor{
		ffmpegPath: "ffmpeg",
		runner:     &command.ExecRunner{},
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// ExtractTracks implements media.TrackExtractor. Every audio stream is
// copied as-is into workDir/track_N.mka.
func (e *Extractor) ExtractTracks(ctx context.Context, probe *media.ProbeResult, workDir string) ([]media.AudioTrack, error) {
	audio := probe.AudioStreams()
	if len(audio) == 0 {
		return nil, errors.Wrapf(job.ErrNoAudioStreams, "%s", probe.Path)
	}

	tracks := make([]media.AudioTrack, 0, len(audio))
	for ordinal, stream := range audio {
		track := media.NewAudioTrack(stream, ordinal, workDir)

		args := []string{
			"-i", probe.Path,
			"-map", fmt.Sprintf("0:a:%d", ordinal),
			"-c", "copy",
			"-y", // Overwrite output file if it exists
			track.ExtractedPath,
		}

		log.WithFields(log.Fields{
			"source":  probe.Path,
			"stream":  stream.Index,
			"ordinal": ordinal,
			"codec":   stream.CodecName,
		}).Debug("extracting audio track")

		if err := e.runner.Run(ctx, e.ffmpegPath, args...); err != nil {
			return nil, errors.Wrapf(err, "extracting audio track %d", ordinal)
		}

		tracks = append(tracks, track)
	}

	return tracks, nil
}

// VerifyInstalled checks that ffmpeg is available
func (e *Extractor) VerifyInstalled(ctx context.Context) error {
	_, err := e.runner.Output(ctx, e.ffmpegPath, "-version")
	if err != nil {
		return errors.Wrap(err, "ffmpeg not found or not executable")
	}
	return nil
}

// Ensure Extractor implements media.TrackExtractor
var _ media.TrackExtractor = (*Extractor)(nil)
