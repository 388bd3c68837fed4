package toolgateway

import (
	"errors"

	"github.com/harun/ikigai/pkg/store"
)

var (
	// ErrToolNotFound is returned for an unregistered tool name
	ErrToolNotFound = errors.New("tool not found")

	// ErrValidation is returned when parameters fail the tool schema or
	// cannot be decoded
	ErrValidation = errors.New("validation failed")

	// ErrMalformedResponse is returned when a tool's output does not have
	// the shape its typed response expects
	ErrMalformedResponse = errors.New("malformed tool response")

	// ErrTransientIO covers timeouts and storage failures
	ErrTransientIO = store.ErrTransientIO
)
