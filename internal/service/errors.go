package service

import (
	"errors"
	"fmt"
)

// FailureKind classifies why a file could not be processed.
type FailureKind string

const (
	KindExtraction          FailureKind = "extraction"
	KindInferenceConnection FailureKind = "inference_connection"
	KindInferenceDecode     FailureKind = "inference_decode"
)

// ProcessingError is the failure result of one pipeline stage.
type ProcessingError struct {
	Kind FailureKind
	// StatusCode is set for non-2xx inference responses.
	StatusCode int
	Err        error
}

func (e *ProcessingError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s (status %d): %v", e.Kind, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

func newProcessingError(kind FailureKind, err error) *ProcessingError {
	return &ProcessingError{Kind: kind, Err: err}
}

// FailureKindOf returns the kind of a *ProcessingError in err's chain.
func FailureKindOf(err error) (FailureKind, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}
