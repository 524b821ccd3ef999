// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP
// responses (via the `fail()` helper in this package). These codes give
// clients a stable, machine-readable error taxonomy that supplements
// human-readable messages.
//
// Conventions:
//   - Codes are lowercase, snake_case, and domain-agnostic unless explicitly noted.
//   - Generic codes (e.g., bad_request, forbidden, conflict) mirror common HTTP
//     status semantics to aid interoperability.
//   - Domain-specific codes (e.g., access_undetermined, send_failed) are
//     reserved for business outcomes that the status alone cannot convey.
//     In particular, access_undetermined tells the client to retry where
//     forbidden tells it to stop.
package handlers

const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeUnauthorized = "unauthorized"
	ErrCodeForbidden    = "forbidden"
	ErrCodeNotFound     = "not_found"
	ErrCodeConflict     = "conflict"
	ErrCodeRateLimited  = "too_many_requests"
	ErrCodeInternal     = "internal_error"

	// Domain-specific:
	ErrCodeAccessUndetermined = "access_undetermined"
	ErrCodeSendFailed         = "send_failed"
	ErrCodeUnlockFailed       = "unlock_failed"
	ErrCodeInsufficientTokens = "insufficient_tokens"
	ErrCodeMethodNotAllowed   = "method_not_allowed"
)
