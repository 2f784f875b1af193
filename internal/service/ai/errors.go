package ai

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration matches every failure returned by a generator.
	ErrGeneration = errors.New("generation failed")
	// ErrEmptyResponse marks a reply without any usable text.
	ErrEmptyResponse = errors.New("empty response")
)

// GenerationError wraps a transport, auth, quota or decoding failure of the
// generation provider.
type GenerationError struct {
	Provider  string
	RequestID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation %s: %v", e.Provider, e.RequestID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrGeneration) match any GenerationError.
func (e *GenerationError) Is(target error) bool {
	return target == ErrGeneration
}
