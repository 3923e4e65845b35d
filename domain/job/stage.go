package job

import "fmt"

// Stage is a step of the per-job state machine
type Stage string

const (
	StagePending    Stage = "pending"
	StageExtracting Stage = "extracting"
	StageSeparating Stage = "separating"
	StageRemuxing   Stage = "remuxing"
	StageDone       Stage = "done"
	StageFailed     Stage = "failed"

	// StageDeleting labels the optional post-processing step. It is not
	// part of the state machine: a job is already Done when it runs.
	StageDeleting Stage = "deleting-original"
)

var nextStage = map[Stage]Stage{
	StagePending:    StageExtracting,
	StageExtracting: StageSeparating,
	StageSeparating: StageRemuxing,
	StageRemuxing:   StageDone,
}

// IsTerminal returns true for Done and Failed
func (s Stage) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// Tracker enforces Pending -> Extracting -> Separating -> Remuxing -> Done,
// with Failed reachable from any non-terminal stage
type Tracker struct {
	stage    Stage
	failedAt Stage
	reason   error
}

// NewTracker creates a tracker in the Pending stage
func NewTracker() *Tracker {
	return &Tracker{stage: StagePending}
}

// Stage returns the current stage
func (t *Tracker) Stage() Stage {
	return t.stage
}

// Advance moves to next, which must directly follow the current stage
func (t *Tracker) Advance(next Stage) error {
	expected, ok := nextStage[t.stage]
	if !ok {
		return fmt.Errorf("cannot leave terminal stage %s", t.stage)
	}
	if next != expected {
		return fmt.Errorf("invalid transition %s -> %s: expected %s", t.stage, next, expected)
	}
	t.stage = next
	return nil
}

// Fail moves to Failed, remembering the stage the failure happened in
func (t *Tracker) Fail(reason error) error {
	if t.stage.IsTerminal() {
		return fmt.Errorf("cannot fail a job in terminal stage %s", t.stage)
	}
	t.failedAt = t.stage
	t.reason = reason
	t.stage = StageFailed
	return nil
}

// FailedAt returns the stage the job failed in, empty unless Failed
func (t *Tracker) FailedAt() Stage {
	return t.failedAt
}

// Reason returns the failure reason, nil unless Failed
func (t *Tracker) Reason() error {
	return t.reason
}
