// Package chat – session error values.
//
// This file centralizes the error taxonomy for conversation setup and message
// operations so callers (WebSocket handler, REST handlers) can map predictable
// cases to user-facing responses consistently.
package chat

import "errors"

var (
	// ErrAccessDenied indicates the unlock gate found no active relation
	// between the pair. It is terminal for the open attempt; a fresh unlock
	// is required before the conversation can be opened again.
	ErrAccessDenied = errors.New("conversation is not unlocked")

	// ErrAccessUndetermined indicates the gate query itself failed.
	// Deliberately distinct from ErrAccessDenied: a transient infra fault is
	// not an authorization verdict, and callers should retry with backoff.
	ErrAccessUndetermined = errors.New("unlock check failed")

	// ErrPersistence wraps store failures (history fetch, append, mark-read).
	// Append failures roll back the optimistic entry and are retriable.
	ErrPersistence = errors.New("persistence error")

	// ErrTransport wraps bus subscribe failures during Open. Retriable; the
	// session is left unopened rather than silently without live delivery.
	ErrTransport = errors.New("realtime transport error")

	// ErrNotReady is returned by Send before Open has completed.
	ErrNotReady = errors.New("session not ready")

	// ErrBlankMessage is returned by Send when the text is empty after
	// trimming.
	ErrBlankMessage = errors.New("message text is blank")

	// ErrClosed is returned by operations on a closed session.
	ErrClosed = errors.New("session closed")
)
