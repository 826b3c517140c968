// Package errors provides common domain error types for Genminute.
//
// This package defines sentinel errors for common domain conditions like
// "not found" or "validation error" that can be used across all packages.
// Using typed errors enables consistent error handling patterns with
// errors.Is() checks.
//
// Usage:
//
//	import gmerrors "github.com/Welshcorki/Genminute/pkg/errors"
//
//	// Return a domain error
//	return nil, gmerrors.ErrNotFound
//
//	// Check for domain errors
//	if gmerrors.IsNotFound(err) {
//	    // handle not found case
//	}
package errors

import "errors"

// Domain errors - common sentinel errors for domain conditions.
var (
	// ErrNotFound indicates the requested resource was not found.
	ErrNotFound = errors.New("not found")

	// ErrValidation indicates invalid input or validation failure.
	ErrValidation = errors.New("validation error")

	// ErrNoIdentity indicates no user identity was supplied for an operation
	// that performs an external side effect on a user's behalf.
	ErrNoIdentity = errors.New("no user identity")

	// ErrNoAuthorization indicates the identified user has no stored
	// delegated authorization for the external service.
	ErrNoAuthorization = errors.New("no stored authorization")

	// ErrEmptyTranscript indicates transcription produced no segments.
	ErrEmptyTranscript = errors.New("empty transcript")

	// ErrInvalidState indicates the operation is not valid for the current state.
	ErrInvalidState = errors.New("invalid state")
)

// IsNotFound reports whether any error in err's chain is ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsValidation reports whether any error in err's chain is ErrValidation.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation)
}

// IsNoIdentity reports whether any error in err's chain is ErrNoIdentity.
func IsNoIdentity(err error) bool {
	return errors.Is(err, ErrNoIdentity)
}

// IsNoAuthorization reports whether any error in err's chain is ErrNoAuthorization.
func IsNoAuthorization(err error) bool {
	return errors.Is(err, ErrNoAuthorization)
}

// IsIdentity reports whether err is either kind of identity failure.
func IsIdentity(err error) bool {
	return IsNoIdentity(err) || IsNoAuthorization(err)
}

// IsEmptyTranscript reports whether any error in err's chain is ErrEmptyTranscript.
func IsEmptyTranscript(err error) bool {
	return errors.Is(err, ErrEmptyTranscript)
}

// IsInvalidState reports whether any error in err's chain is ErrInvalidState.
func IsInvalidState(err error) bool {
	return errors.Is(err, ErrInvalidState)
}
