package domain

import (
	perr "contribot/internal/platform/errors"
)

// ErrCredentialRejected marks a run aborted because the upstream token was refused.
// Errors returned for it wrap the gateway's cause
var ErrCredentialRejected = perr.New(perr.ErrorCodeUnauthorized, "upstream credential rejected")

type credentialError struct{ cause error }

// CredentialRejected wraps cause so errors.Is(err, ErrCredentialRejected) holds
func CredentialRejected(cause error) error { return &credentialError{cause: cause} }

func (e *credentialError) Error() string {
	return ErrCredentialRejected.Error() + ": " + e.cause.Error()
}

func (e *credentialError) Is(target error) bool { return target == ErrCredentialRejected }

func (e *credentialError) Unwrap() error { return e.cause }
