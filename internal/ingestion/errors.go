package ingestion

import (
	"errors"
	"fmt"
)

// ErrNothingToResume is returned when every step of a dataset import has
// already completed
var ErrNothingToResume = errors.New("dataset import is already complete")

var (
	// ErrMissingFile is returned when a required file is absent from the request
	ErrMissingFile = errors.New("missing file")
	// ErrAbandoned is the result error of a run whose consumer stopped early
	ErrAbandoned = errors.New("dataset creation abandoned")
	// errPanic wraps a panic recovered inside a step
	errPanic = errors.New("panic during ingestion step")
)

// DatasetCreationError is a failure of the first step. Nothing is cached.
type DatasetCreationError struct {
	Err error
}

func (e *DatasetCreationError) Error() string {
	return fmt.Sprintf("failed to create dataset: %v", e.Err)
}

func (e *DatasetCreationError) Unwrap() error {
	return e.Err
}

// UploadStepError is a failed file upload. The dataset keeps the import
// status of the last successful step.
type UploadStepError struct {
	Step      Step
	DatasetID string
	Err       error
}

func (e *UploadStepError) Error() string {
	return fmt.Sprintf("dataset %s: %s: %v", e.DatasetID, e.Step, e.Err)
}

func (e *UploadStepError) Unwrap() error {
	return e.Err
}
