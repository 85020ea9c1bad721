package api

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the backend could not be reached at all. Callers
	// retry on their own schedule.
	ErrUnreachable = errors.New("api: server unreachable")

	// ErrUnauthenticated means the backend rejected or did not receive a
	// credential.
	ErrUnauthenticated = errors.New("api: unauthenticated")
)

// TransportError describes one failed backend call. Status is 0 when no
// response was received.
type TransportError struct {
	Op     string
	Status int
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsUnreachable reports whether err means the backend could not be reached.
func IsUnreachable(err error) bool {
	return errors.Is(err, ErrUnreachable)
}
