package pipeline

import (
	"errors"
	"fmt"
)

// ErrAlreadyActive is returned when a run is requested for a project that
// already has one in flight in this process.
var ErrAlreadyActive = errors.New("a generation run is already active for this project")

// StepError tags a per-page failure with the pipeline step it happened in,
// so the stored error message and the logs name the step consistently.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s step failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }
