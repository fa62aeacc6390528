package upload

import (
	"errors"
	"fmt"
)

var (
	// ErrUploadFailed matches every *Error of KindUploadFailed.
	ErrUploadFailed = errors.New("upload: upload failed")
	// ErrUnacceptableInput matches every *Error of KindUnacceptableInput.
	ErrUnacceptableInput = errors.New("upload: file type not accepted")
)

// Kind classifies field-local upload notices.
type Kind int

const (
	KindUploadFailed Kind = iota + 1
	KindUnacceptableInput
)

func (k Kind) String() string {
	switch k {
	case KindUploadFailed:
		return "upload_failed"
	case KindUnacceptableInput:
		return "unacceptable_input"
	default:
		return "unknown"
	}
}

// Error is a field-local, non-fatal upload notice. It never becomes a form
// error.
type Error struct {
	Kind Kind
	File string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ErrUploadFailed.Error()
	}
	switch e.Kind {
	case KindUnacceptableInput:
		return fmt.Sprintf("upload: the file %q is not an accepted file type", e.File)
	default:
		if e.Err != nil {
			return fmt.Sprintf("upload: uploading %q failed: %v", e.File, e.Err)
		}
		return fmt.Sprintf("upload: uploading %q failed", e.File)
	}
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	switch target {
	case ErrUploadFailed:
		return e.Kind == KindUploadFailed
	case ErrUnacceptableInput:
		return e.Kind == KindUnacceptableInput
	}
	return false
}
