// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// Codes are lowercase snake_case. Generic codes mirror HTTP status semantics;
// session-specific codes describe conditions a client can act on (pick a
// persona first, shorten the message, …). Clients branch on the code, never on
// the message.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "no_active_session",
//	  "message": "select a persona first"
//	}
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeMethodNotAllowed = "method_not_allowed"
	ErrCodeInternal         = "internal_error"

	// Session-specific:
	ErrCodeNoActiveSession = "no_active_session"
	ErrCodeUnknownPersona  = "unknown_persona"
	ErrCodeTooLong         = "too_long"
	ErrCodeSessionNotFound = "session_not_found"
	ErrCodeTurnFailed      = "turn_failed"
	ErrCodeListFailed      = "list_failed"
	ErrCodeStreamFailed    = "stream_failed"
)
