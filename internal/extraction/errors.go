package extraction

import (
	"errors"
	"fmt"
)

var (
	// ErrAIExtraction matches every *AIError.
	ErrAIExtraction = errors.New("ai extraction failed")
	// ErrExtractionFailed matches *FailedError: AI failed and fallback was disabled.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrEmptyResponse is returned by generators when the model produced no usable text.
	ErrEmptyResponse = errors.New("empty response from model")
)

// AIErrorKind classifies an AI extraction failure.
type AIErrorKind string

const (
	KindMalformedResponse  AIErrorKind = "malformed_response"
	KindServiceUnavailable AIErrorKind = "service_unavailable"
)

// AIError is the only error the AI extractor returns.
type AIError struct {
	Kind AIErrorKind
	Err  error
}

func (e *AIError) Error() string {
	return fmt.Sprintf("ai extraction %s: %v", e.Kind, e.Err)
}

func (e *AIError) Unwrap() error { return e.Err }

func (e *AIError) Is(target error) bool { return target == ErrAIExtraction }

func malformed(format string, args ...any) error {
	return &AIError{Kind: KindMalformedResponse, Err: fmt.Errorf(format, args...)}
}

// FailedError is returned by the orchestrator when AI failed and regex
// fallback was not permitted.
type FailedError struct {
	Err error
}

func (e *FailedError) Error() string {
	return fmt.Sprintf("extraction failed: %v", e.Err)
}

func (e *FailedError) Unwrap() error { return e.Err }

func (e *FailedError) Is(target error) bool { return target == ErrExtractionFailed }
