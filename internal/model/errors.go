package model

import "errors"

var (
	// ErrSessionNotFound is returned when a session is not found in the registry.
	ErrSessionNotFound = errors.New("session not found")

	// ErrProviderMisconfigured is returned when no execution backend is configured.
	ErrProviderMisconfigured = errors.New("execution provider is not configured")

	// ErrSubmissionRejected is returned when the backend accepts the request but
	// returns no submission token.
	ErrSubmissionRejected = errors.New("execution backend returned no token")

	// ErrExecutionTimeout is returned when the poll budget is exhausted before
	// the backend reports a terminal status.
	ErrExecutionTimeout = errors.New("execution timed out")
)
