// Package services defines the business logic for contact unlocks, messages,
// and feedback. This file centralizes common service-level error values so
// that they can be consistently returned by service methods and checked by
// callers.
//
// These errors are intended for internal use by the service layer; translation
// into user-facing messages or HTTP status codes is performed at the
// handler layer.
package services

import "errors"

var (
	// ErrUnlockNotFound indicates that no active unlock relation exists for
	// the pair, so the requested operation (feedback, chat open) cannot
	// proceed.
	ErrUnlockNotFound = errors.New("no active unlock for this pair")

	// ErrUnlockExists is returned when a client tries to unlock a provider
	// they already hold an active unlock for.
	ErrUnlockExists = errors.New("contact already unlocked")

	// ErrSelfUnlock is returned when a user tries to unlock themselves.
	ErrSelfUnlock = errors.New("cannot unlock own contact")

	// ErrInsufficientTokens is returned when the client's token balance does
	// not cover the unlock cost.
	ErrInsufficientTokens = errors.New("insufficient token balance")

	// ErrInvalidFeedback is returned when a feedback type is outside the
	// allowed set (positive, neutral, negative).
	ErrInvalidFeedback = errors.New("feedback type must be positive, neutral or negative")

	// ErrCommentTooLong is returned when a feedback comment exceeds the
	// maximum length.
	ErrCommentTooLong = errors.New("comment too long")

	// ErrEmptyMessage is returned when a message to append is blank after
	// normalization.
	ErrEmptyMessage = errors.New("message text is empty")

	// ErrSelfMessage is returned when sender and receiver are the same user.
	ErrSelfMessage = errors.New("cannot message yourself")

	// ErrMessageTooLong is returned when a message exceeds the configured
	// rune cap.
	ErrMessageTooLong = errors.New("message too long")
)
