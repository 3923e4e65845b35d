package report

import (
	"io"
	"os"
	"path/filepath"

	"video-music-remover/domain/job"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
	"github.com/apex/log/handlers/multi"
	"github.com/apex/log/handlers/text"
	"github.com/cockroachdb/errors"
)

// LogReporter renders processing events as log entries
type LogReporter struct {
	logger log.Interface
}

// NewLogReporter creates a reporter writing to logger
func NewLogReporter(logger log.Interface) *LogReporter {
	return &LogReporter{logger: logger}
}

// Report implements job.Reporter
func (r *LogReporter) Report(e job.Event) {
	name := filepath.Base(e.Source)
	entry := r.logger.WithFields(fields(e))

	switch e.Kind {
	case job.EventBatchStarted:
		entry.Info("Mass processing started")
	case job.EventModelLoaded:
		entry.Infof("separation model %s loaded", e.Model)
	case job.EventFileSkipped:
		entry.Infof("%q: output already exists, skipping", name)
	case job.EventJobStarted:
		entry.Infof("Processing file %q", name)
	case job.EventStageStarted:
		switch e.Stage {
		case job.StageExtracting:
			entry.Infof("%q: extracting audio tracks...", name)
		case job.StageRemuxing:
			entry.Infof("%q: creating a new video with no music...", name)
		default:
			entry.Debugf("%q: %s", name, e.Stage)
		}
	case job.EventTrackSeparationStarted:
		entry.Infof("%q: start separating vocal... %d/%d", name, e.Track, e.TotalTracks)
	case job.EventTrackSeparationFinished:
		entry.Infof("%q: vocal separated successfully %d/%d", name, e.Track, e.TotalTracks)
	case job.EventJobSucceeded:
		entry.Infof("%q: a new video with no music has been created", name)
	case job.EventJobFailed:
		entry.WithError(e.Err).Errorf("an error occurred while processing file %q, skipping the file", name)
	case job.EventDeletionStarted:
		entry.Infof("%q: Post-Processing(optional): deleting original video...", name)
	case job.EventDeletionFinished:
		entry.Infof("%q: original video deleted", name)
	case job.EventDeletionFailed:
		entry.WithError(e.Err).Warnf("%q: could not delete the original video", name)
	case job.EventCleanupFailed:
		entry.WithError(e.Err).Warnf("%q: could not remove temporary files", name)
	case job.EventBatchFinished:
		entry.Infof("Processing finished: %d succeeded, %d failed, %d skipped", e.Succeeded, e.Failed, e.Skipped)
	}
}

func fields(e job.Event) log.Fields {
	f := log.Fields{}
	if e.JobID != "" {
		f["job"] = e.JobID
	}
	if e.Stage != "" && e.Kind == job.EventJobFailed {
		f["stage"] = string(e.Stage)
	}
	return f
}

// NewLogger builds the logger used for progress output: a cli handler on
// console and, when logFile is set, a text handler appending to that file.
// The returned closer closes the log file.
func NewLogger(console io.Writer, logFile string) (*log.Logger, io.Closer, error) {
	handlers := []log.Handler{cli.New(console)}
	var closer io.Closer = nopCloser{}

	if logFile != "" {
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "opening log file %s", logFile)
		}
		handlers = append(handlers, text.New(f))
		closer = f
	}

	return &log.Logger{
		Handler: multi.New(handlers...),
		Level:   log.InfoLevel,
	}, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Ensure LogReporter implements job.Reporter
var _ job.Reporter = (*LogReporter)(nil)

