package scanning

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreadableFile matches every *UnreadableFileError.
	ErrUnreadableFile = errors.New("unreadable file")
	// ErrRecognition wraps failures of the OCR engine itself.
	ErrRecognition = errors.New("text recognition failed")
)

// UnreadableFileError reports input that cannot be decoded: a corrupt file or
// an unsupported format. It is fatal for the upload.
type UnreadableFileError struct {
	Name   string
	Reason string
	Err    error
}

func (e *UnreadableFileError) Error() string {
	msg := fmt.Sprintf("unreadable file %q: %s", e.Name, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnreadableFileError) Unwrap() error { return e.Err }

func (e *UnreadableFileError) Is(target error) bool { return target == ErrUnreadableFile }

func unreadable(name, reason string, err error) error {
	return &UnreadableFileError{Name: name, Reason: reason, Err: err}
}
