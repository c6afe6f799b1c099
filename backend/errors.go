package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable indicates the backend could not be contacted (dial failure, timeout).
	ErrUnreachable = errors.New("backend unreachable")
	// ErrMalformedResponse indicates a 2xx response whose body lacks the expected shape.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: HTTP %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: HTTP %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...))
}
