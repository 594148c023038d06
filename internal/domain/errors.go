package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidConfig     = errors.New("invalid config")
	ErrSubmission        = errors.New("submission failed")
	ErrStatusCheck       = errors.New("status check failed")
	ErrArtifactNotFound  = errors.New("artifact not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrMalformedRecord   = errors.New("malformed job record")
)

// VideoGenerationError is what callers of the lifecycle controller receive.
// It always wraps one of the sentinel errors above so callers can branch with
// errors.Is.
type VideoGenerationError struct {
	Op  string
	Key string
	Err error
}

func (e *VideoGenerationError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("video generation: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("video generation: %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *VideoGenerationError) Unwrap() error {
	return e.Err
}
