package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid startup configuration. Fatal at boot,
	// never produced per request.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrBackendUnavailable marks a retrieval backend that errored or timed
	// out. Recovered locally by proceeding with the other backend.
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrNoCandidateDocument means entity resolution found nothing above the
	// confidence floor. Callers treat it as "no document filter," not a failure.
	ErrNoCandidateDocument = errors.New("no candidate document")

	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")
	ErrTemporary        = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
