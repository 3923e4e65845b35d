package job

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds. They are attached as markers so errors.Is keeps working
// after further wrapping.
var (
	ErrExtraction = errors.New("extraction failed")
	ErrSeparation = errors.New("separation failed")
	ErrRemux      = errors.New("remux failed")
	ErrDeletion   = errors.New("deleting original failed")
)

// ErrNoAudioStreams is returned when a source has nothing to process
var ErrNoAudioStreams = errors.New("no audio streams found")

// StageError is a per-job failure tied to the stage it happened in
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageError(stage Stage, kind error, err error) error {
	if err == nil {
		return nil
	}
	return errors.Mark(&StageError{Stage: stage, Err: err}, kind)
}

// ExtractionError marks err as a failure of the extraction stage
func ExtractionError(err error) error {
	return stageError(StageExtracting, ErrExtraction, err)
}

// SeparationError marks err as a failure of the separation stage
func SeparationError(err error) error {
	return stageError(StageSeparating, ErrSeparation, err)
}

// RemuxError marks err as a failure of the remux stage
func RemuxError(err error) error {
	return stageError(StageRemuxing, ErrRemux, err)
}

// DeletionError marks err as a failure to delete an original after success
func DeletionError(err error) error {
	return stageError(StageDeleting, ErrDeletion, err)
}

// StageOf returns the stage recorded on err, or "" if none
func StageOf(err error) Stage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
