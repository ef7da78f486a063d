package services

import "errors"

var (
	// ErrNotOwner is returned when the viewer tries to change a row they do
	// not own, or a row that is no longer in the ledger.
	ErrNotOwner = errors.New("transaction is not owned by the current user")

	// ErrNotConfigured is returned by every data operation while the hosted
	// backend has no usable URL and key.
	ErrNotConfigured = errors.New("backend is not configured")

	// ErrNoSession means the caller must sign in again.
	ErrNoSession = errors.New("no active session")

	// ErrAuthUnavailable means the identity provider could not be reached.
	// The session is kept; the caller may retry.
	ErrAuthUnavailable = errors.New("identity provider unavailable")
)
