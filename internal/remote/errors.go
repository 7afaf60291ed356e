package remote

import (
	"errors"
	"fmt"
)

// NetworkError means the remote store could not be reached or answered
// with a server-side failure. Retryable: the queue item stays put and is
// retried on the next cycle. Never surfaced to mutation callers.
type NetworkError struct {
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("remote unreachable: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RejectionError means the remote store accepted the connection but
// rejected the payload. Terminal: retrying an invalid payload can never
// succeed, so the sync engine dead-letters the item immediately instead
// of burning retries on it.
type RejectionError struct {
	Status  int
	Message string
}

func (e *RejectionError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("remote rejected request (status %d)", e.Status)
	}
	return fmt.Sprintf("remote rejected request (status %d): %s", e.Status, e.Message)
}

// IsNetwork reports whether err is a retryable network failure.
func IsNetwork(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne)
}

// IsRejection reports whether err is a terminal remote rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
