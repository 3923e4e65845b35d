package batch

import (
	"context"

	"video-music-remover/application/scan"
	"video-music-remover/domain/job"
	"video-music-remover/domain/media"
	"video-music-remover/domain/separation"

	"github.com/apex/log"
	"github.com/cockroachdb/errors"
)

// JobRunner processes a single job with a loaded model
type JobRunner interface {
	Process(ctx context.Context, j job.ProcessingJob, sep separation.Separator) error
}

// Service sequences the jobs of a run, one at a time
type Service struct {
	fs       media.FileSystem
	runner   JobRunner
	registry separation.Registry
	reporter job.Reporter
}

// NewService creates a new batch service
func NewService(fs media.FileSystem, runner JobRunner, registry separation.Registry, reporter job.Reporter) *Service {
	if reporter == nil {
		reporter = job.Discard
	}
	return &Service{
		fs:       fs,
		runner:   runner,
		registry: registry,
		reporter: reporter,
	}
}

// Input contains all input parameters for a remove-music run
type Input struct {
	InputPath      string           // Video file or directory of videos
	OutputPath     string           // Existing directory the new videos are written to
	Model          separation.Model // Empty means the default model
	DeleteOriginal bool             // Remove each source after its output was created
}

// Failure is a job that did not complete, or whose original could not be deleted
type Failure struct {
	Job   job.ProcessingJob
	Stage job.Stage
	Err   error
}

// Summary is the outcome of a run
type Summary struct {
	Succeeded        []job.ProcessingJob
	Failed           []Failure
	Skipped          int
	DeletionFailures []Failure
}

// HasFailures returns true when at least one job failed
func (s *Summary) HasFailures() bool {
	return len(s.Failed) > 0
}

// Attempted returns the number of jobs that were started
func (s *Summary) Attempted() int {
	return len(s.Succeeded) + len(s.Failed)
}

// Run validates the input and processes every job it resolves to. A failing
// job is recorded and the run moves on; only invalid paths, an unreadable
// input directory, a model that cannot be loaded or cancellation end the run
// early. The summary is returned in every case once validation has passed.
func (s *Service) Run(ctx context.Context, input Input) (*Summary, error) {
	summary := &Summary{}

	skipCounter := job.ReporterFunc(func(e job.Event) {
		if e.Kind == job.EventFileSkipped {
			summary.Skipped++
		}
		s.reporter.Report(e)
	})

	plan, err := scan.NewResolver(s.fs, skipCounter).Resolve(scan.Request{
		InputPath:  input.InputPath,
		OutputPath: input.OutputPath,
		Model:      input.Model,
	})
	if err != nil {
		return nil, err
	}

	s.reporter.Report(job.Event{
		Kind:        job.EventBatchStarted,
		Source:      plan.InputPath,
		Destination: plan.OutputPath,
		Model:       plan.Model.String(),
	})

	session := separation.NewSession(s.registry, plan.Model)
	defer func() {
		if err := session.Close(); err != nil {
			log.WithError(err).Warn("separation model did not shut down cleanly")
		}
	}()

	for j, err := range plan.Jobs() {
		if err != nil {
			return summary, err
		}
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		sep, err := s.separator(ctx, session)
		if err != nil {
			return summary, err
		}

		if err := s.runner.Process(ctx, j, sep); err != nil {
			summary.Failed = append(summary.Failed, Failure{Job: j, Stage: job.StageOf(err), Err: err})
			continue
		}
		summary.Succeeded = append(summary.Succeeded, j)

		if input.DeleteOriginal {
			if err := s.deleteOriginal(j); err != nil {
				summary.DeletionFailures = append(summary.DeletionFailures, Failure{Job: j, Stage: job.StageDeleting, Err: err})
			}
		}
	}

	s.reporter.Report(job.Event{
		Kind:      job.EventBatchFinished,
		Succeeded: len(summary.Succeeded),
		Failed:    len(summary.Failed),
		Skipped:   summary.Skipped,
	})

	return summary, nil
}

// separator loads the model on the first job, and again after a crash
func (s *Service) separator(ctx context.Context, session *separation.Session) (separation.Separator, error) {
	loads := session.Loads()

	sep, err := session.Separator(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "loading separation model %s", session.Model())
	}
	if session.Loads() > loads {
		s.reporter.Report(job.Event{Kind: job.EventModelLoaded, Model: session.Model().Pretrained()})
	}
	return sep, nil
}

func (s *Service) deleteOriginal(j job.ProcessingJob) error {
	s.reporter.Report(job.JobEvent(job.EventDeletionStarted, j))

	if err := s.fs.Remove(j.SourcePath); err != nil {
		err = job.DeletionError(err)
		e := job.JobEvent(job.EventDeletionFailed, j)
		e.Err = err
		s.reporter.Report(e)
		return err
	}

	s.reporter.Report(job.JobEvent(job.EventDeletionFinished, j))
	return nil
}
