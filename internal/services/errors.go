// Package services defines the business logic around coaching sessions: the
// persona catalog, per-user session ownership, transcript caching and search.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into user-facing messages or HTTP status codes is performed at
// the handler layer.
package services

import "errors"

var (
	// ErrNoActiveSession indicates that the user has not selected a persona yet
	// or has signed out.
	ErrNoActiveSession = errors.New("no active session")

	// ErrUnknownPersona is returned when a persona id is not in the catalog.
	ErrUnknownPersona = errors.New("unknown persona")

	// ErrTooLong is returned when a submitted message exceeds the configured
	// maximum length.
	ErrTooLong = errors.New("message too long")

	// ErrSessionNotFound indicates that a cached session does not exist or is
	// not accessible to the current user.
	ErrSessionNotFound = errors.New("session not found")

	// ErrInvalidCatalog is returned when a persona catalog file is malformed.
	ErrInvalidCatalog = errors.New("invalid persona catalog")
)
