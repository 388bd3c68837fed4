package generation

import (
	"errors"
	"fmt"
)

var (
	// ErrGeneration is returned when the service produced empty or unusable output.
	ErrGeneration = errors.New("generation failed")

	// ErrUnderGenerated is returned when fewer questions than requested survived parsing.
	ErrUnderGenerated = errors.New("question set under-generated")

	// ErrNoProfiles is returned when no provider profile is configured.
	ErrNoProfiles = errors.New("no provider profiles configured")
)

// UnderGeneratedError carries the questions that were produced.
type UnderGeneratedError struct {
	Want    int
	Partial []Question
}

func (e *UnderGeneratedError) Error() string {
	return fmt.Sprintf("%s: got %d of %d questions", ErrUnderGenerated, len(e.Partial), e.Want)
}

func (e *UnderGeneratedError) Unwrap() error {
	return ErrUnderGenerated
}
