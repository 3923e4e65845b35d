package ffmpeg

import (
	"context"
	"fmt"

	"video-music-remover/domain/media"
	"video-music-remover/infrastructure/command"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// Remuxer implements media.Remuxer using ffmpeg
type Remuxer struct {
	ffmpegPath string
	runner     command.Runner
}

// RemuxerOption is a functional option for configuring Remuxer
type RemuxerOption func(*Remuxer)

// WithFFmpegPath sets a custom ffmpeg executable path
func WithFFmpegPath(path string) RemuxerOption {
	return func(r *Remuxer) {
		r.ffmpegPath = path
	}
}

// WithCommandRunner sets a custom command runner (for testing)
func WithCommandRunner(runner command.Runner) RemuxerOption {
	return func(r *Remuxer) {
		r.runner = runner
	}
}

// NewRemuxer creates a new FFmpeg-based remuxer
func NewRemuxer(opts ...RemuxerOption) *Remuxer {
	r := &Remuxer{
		ffmpegPath: "ffmpeg",
		runner:     &command.ExecRunner{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Remux implements media.Remuxer
func (r *Remuxer) Remux(ctx context.Context, req *media.RemuxRequest) error {
	if err := req.Validate(); err != nil {
		return errors.Wrap(err, "invalid remux request")
	}

	args := RemuxArgs(req)

	log.WithFields(log.Fields{
		"source":      req.SourcePath,
		"destination": req.DestinationPath,
		"tracks":      len(req.Tracks),
	}).Debug("remuxing")

	if err := r.runner.Run(ctx, r.ffmpegPath, args...); err != nil {
		return errors.Wrap(err, "ffmpeg remux failed")
	}

	return nil
}

// RemuxArgs builds the ffmpeg arguments for req. Input 0 is the source and
// input k+1 holds the vocals of audio slot k. Streams are mapped in source
// order so each vocal track lands where its audio stream was.
func RemuxArgs(req *media.RemuxRequest) []string {
	args := []string{"-y", "-i", req.SourcePath}
	for _, t := range req.Tracks {
		args = append(args, "-i", t.VocalsPath)
	}

	slot := 0
	for _, s := range req.Probe.Streams {
		switch {
		case s.Kind == media.KindAudio:
			args = append(args, "-map", fmt.Sprintf("%d:a:0", slot+1))
			slot++
		case s.Kind == media.KindAttachment && req.Container.DropsAttachments():
			log.WithFields(log.Fields{
				"source": req.SourcePath,
				"stream": s.Index,
			}).Warn("dropping attachment stream unsupported by the mp4 muxer")
		default:
			args = append(args, "-map", fmt.Sprintf("0:%d", s.Index))
		}
	}

	args = append(args, "-map_metadata", "0", "-map_chapters", "0", "-c", "copy")
	if codec := req.Container.AudioCodec(); codec != "copy" {
		args = append(args, "-c:a", codec)
	}

	for _, t := range req.Tracks {
		if t.Language != "" {
			args = append(args, fmt.Sprintf("-metadata:s:a:%d", t.Ordinal), "language="+t.Language)
		}
		if t.Title != "" {
			args = append(args, fmt.Sprintf("-metadata:s:a:%d", t.Ordinal), "title="+t.Title)
		}
	}

	return append(args, req.DestinationPath)
}

// VerifyInstalled checks that ffmpeg is available
func (r *Remuxer) VerifyInstalled(ctx context.Context) error {
	_, err := r.runner.Output(ctx, r.ffmpegPath, "-version")
	if err != nil {
		return errors.Wrap(err, "ffmpeg not found or not executable")
	}
	return nil
}

// Ensure Remuxer implements media.Remuxer
var _ media.Remuxer = (*Remuxer)(nil)
