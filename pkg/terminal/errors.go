package terminal

import "errors"

var (
	// ErrAborted signals the user aborted input (e.g., Ctrl+C).
	ErrAborted = errors.New("terminal: aborted")
	// ErrUnsupportedEditor is returned for editors the session cannot drive.
	ErrUnsupportedEditor = errors.New("terminal: unsupported editor")
)
