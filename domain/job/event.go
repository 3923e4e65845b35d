package job

import "time"

// EventKind identifies what a ProcessingEvent reports
type EventKind string

const (
	EventBatchStarted            EventKind = "batch_started"
	EventBatchFinished           EventKind = "batch_finished"
	EventFileSkipped             EventKind = "file_skipped"
	EventJobStarted              EventKind = "job_started"
	EventStageStarted            EventKind = "stage_started"
	EventTrackSeparationStarted  EventKind = "track_separation_started"
	EventTrackSeparationFinished EventKind = "track_separation_finished"
	EventJobSucceeded            EventKind = "job_succeeded"
	EventJobFailed               EventKind = "job_failed"
	EventDeletionStarted         EventKind = "deletion_started"
	EventDeletionFinished        EventKind = "deletion_finished"
	EventDeletionFailed          EventKind = "deletion_failed"
	EventCleanupFailed           EventKind = "cleanup_failed"
	EventModelLoaded             EventKind = "model_loaded"
)

// Event is an immutable progress notification
type Event struct {
	Kind        EventKind
	Time        time.Time
	JobID       string
	Source      string
	Destination string
	Stage       Stage
	Track       int // 1-based
	TotalTracks int
	Model       string
	Err         error

	// batch counters, set on EventBatchFinished
	Succeeded int
	Failed    int
	Skipped   int
}

// Reporter consumes events. Reporters observe only; they never influence
// the processing outcome.
type Reporter interface {
	Report(event Event)
}

// ReporterFunc adapts a function to Reporter
type ReporterFunc func(Event)

func (f ReporterFunc) Report(event Event) {
	f(event)
}

// Dispatcher fans events out to every attached reporter
type Dispatcher struct {
	reporters []Reporter
	now       func() time.Time
}

// NewDispatcher creates a dispatcher with the given reporters
func NewDispatcher(reporters ...Reporter) *Dispatcher {
	return &Dispatcher{reporters: reporters, now: time.Now}
}

// Attach adds a reporter
func (d *Dispatcher) Attach(r Reporter) {
	d.reporters = append(d.reporters, r)
}

// Report stamps the event time if unset and forwards it
func (d *Dispatcher) Report(event Event) {
	if event.Time.IsZero() {
		event.Time = d.now()
	}
	for _, r := range d.reporters {
		r.Report(event)
	}
}

// Discard is a reporter that drops every event
var Discard Reporter = ReporterFunc(func(Event) {})

// JobEvent builds an event about j
func JobEvent(kind EventKind, j ProcessingJob) Event {
	return Event{
		Kind:        kind,
		JobID:       j.ID,
		Source:      j.SourcePath,
		Destination: j.DestinationPath,
	}
}
