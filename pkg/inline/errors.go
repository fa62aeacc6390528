package inline

import (
	"errors"
	"fmt"
)

// ErrSubmissionFailed matches every *SubmissionError.
var ErrSubmissionFailed = errors.New("inline: submission failed")

// SubmissionError wraps a persist failure together with the patch that was
// being saved.
type SubmissionError struct {
	Patch map[string]any
	Err   error
}

func (e *SubmissionError) Error() string {
	if e == nil || e.Err == nil {
		return ErrSubmissionFailed.Error()
	}
	return fmt.Sprintf("%s: %v", ErrSubmissionFailed.Error(), e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Is(target error) bool {
	return target == ErrSubmissionFailed
}
