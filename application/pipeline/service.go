package pipeline

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"

	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// tempPattern names the per-job workspace
const tempPattern = "music-remover-*"

// Service runs one job through extraction, separation and remux
type Service struct {
	prober    media.Prober
	extractor media.TrackExtractor
	remuxer   media.Remuxer
	fs        media.FileSystem
	reporter  job.Reporter
	tempDir   string
}

// Option is a functional option for configuring Service
type Option func(*Service)

// WithTempDirectory places job workspaces under dir instead of the system temp directory
func WithTempDirectory(dir string) Option {
	return func(s *Service) {
		s.tempDir = dir
	}
}

// NewService creates a new pipeline service
func NewService(
	prober media.Prober,
	extractor media.TrackExtractor,
	remuxer media.Remuxer,
	fs media.FileSystem,
	reporter job.Reporter,
	opts ...Option,
) *Service {
	if reporter == nil {
		reporter = job.Discard
	}
	s := &Service{
		prober:    prober,
		extractor: extractor,
		remuxer:   remuxer,
		fs:        fs,
		reporter:  reporter,
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// PartialPath is the hidden file a remux writes before it is renamed to
// destination. It keeps the extension so ffmpeg picks the right muxer.
func PartialPath(destination string) string {
	dir, name := filepath.Split(destination)
	ext := filepath.Ext(name)
	return filepath.Join(dir, "."+strings.TrimSuffix(name, ext)+".partial"+ext)
}

// Process runs j with the loaded model sep. The returned error carries the
// failed stage (see job.StageOf) and one of the job error kinds. The job's
// temp workspace is removed whatever the outcome.
func (s *Service) Process(ctx context.Context, j job.ProcessingJob, sep separation.Separator) error {
	tracker := job.NewTracker()
	s.reporter.Report(job.JobEvent(job.EventJobStarted, j))

	// extracting
	if err := s.advance(tracker, j, job.StageExtracting); err != nil {
		return err
	}
	workDir, err := s.fs.MkdirTemp(s.tempDir, tempPattern)
	if err != nil {
		return s.fail(tracker, j, job.ExtractionError(errors.Wrap(err, "creating temp workspace")))
	}
	defer s.cleanup(j, workDir)

	probe, err := s.prober.Probe(ctx, j.SourcePath)
	if err != nil {
		return s.fail(tracker, j, job.ExtractionError(err))
	}
	tracks, err := s.extractor.ExtractTracks(ctx, probe, workDir)
	if err != nil {
		return s.fail(tracker, j, job.ExtractionError(err))
	}
	if len(tracks) != probe.AudioCount() {
		return s.fail(tracker, j, job.ExtractionError(
			errors.Newf("extracted %d tracks from %d audio streams", len(tracks), probe.AudioCount()),
		))
	}

	// separating
	if err := s.advance(tracker, j, job.StageSeparating); err != nil {
		return err
	}
	if err := s.separate(ctx, j, sep, tracks, workDir); err != nil {
		return s.fail(tracker, j, job.SeparationError(err))
	}

	// remuxing
	if err := s.advance(tracker, j, job.StageRemuxing); err != nil {
		return err
	}
	if err := s.remux(ctx, j, probe, tracks); err != nil {
		return s.fail(tracker, j, job.RemuxError(err))
	}

	if err := tracker.Advance(job.StageDone); err != nil {
		return err
	}
	s.reporter.Report(job.JobEvent(job.EventJobSucceeded, j))
	return nil
}

func (s *Service) separate(ctx context.Context, j job.ProcessingJob, sep separation.Separator, tracks []media.AudioTrack, workDir string) error {
	total := len(tracks)
	for i := range tracks {
		e := job.JobEvent(job.EventTrackSeparationStarted, j)
		e.Track, e.TotalTracks = i+1, total
		s.reporter.Report(e)

		outputDir := filepath.Join(workDir, "intermediate", strconv.Itoa(tracks[i].Ordinal))
		if err := s.fs.MkdirAll(outputDir); err != nil {
			return errors.Wrap(err, "creating separation directory")
		}

		vocals, err := sep.Separate(ctx, tracks[i].ExtractedPath, outputDir)
		if err != nil {
			return errors.Wrapf(err, "track %d/%d", i+1, total)
		}
		tracks[i].VocalsPath = vocals

		e.Kind = job.EventTrackSeparationFinished
		s.reporter.Report(e)
	}
	return nil
}

func (s *Service) remux(ctx context.Context, j job.ProcessingJob, probe *media.ProbeResult, tracks []media.AudioTrack) error {
	partial := PartialPath(j.DestinationPath)
	req := &media.RemuxRequest{
		SourcePath:      j.SourcePath,
		DestinationPath: partial,
		Container:       j.Container,
		Probe:           probe,
		Tracks:          tracks,
	}

	if err := s.remuxer.Remux(ctx, req); err != nil {
		s.discard(partial)
		return err
	}
	if err := s.fs.Rename(partial, j.DestinationPath); err != nil {
		s.discard(partial)
		return errors.Wrap(err, "moving output into place")
	}
	return nil
}

func (s *Service) discard(partial string) {
	if s.fs.Exists(partial) {
		if err := s.fs.Remove(partial); err != nil {
			log.WithError(err).WithField("path", partial).Warn("could not remove partial output")
		}
	}
}

func (s *Service) advance(tracker *job.Tracker, j job.ProcessingJob, next job.Stage) error {
	if err := tracker.Advance(next); err != nil {
		return err
	}
	e := job.JobEvent(job.EventStageStarted, j)
	e.Stage = next
	s.reporter.Report(e)
	return nil
}

func (s *Service) fail(tracker *job.Tracker, j job.ProcessingJob, err error) error {
	if ferr := tracker.Fail(err); ferr != nil {
		return errors.CombineErrors(err, ferr)
	}
	e := job.JobEvent(job.EventJobFailed, j)
	e.Stage = tracker.FailedAt()
	e.Err = err
	s.reporter.Report(e)
	return err
}

func (s *Service) cleanup(j job.ProcessingJob, workDir string) {
	if err := s.fs.RemoveAll(workDir); err != nil {
		e := job.JobEvent(job.EventCleanupFailed, j)
		e.Err = err
		s.reporter.Report(e)
	}
}
