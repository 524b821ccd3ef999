// Package services – FeedbackService
//
// This file implements the FeedbackService, which governs how a client closes
// an engagement: submitting feedback (positive, neutral, or negative, with an
// optional comment) records the verdict and revokes the pair's chat access by
// marking the active unlock relation as closed. Both writes happen in one
// transaction so an engagement can never end up reviewed but still open.
// Service-level errors (ErrInvalidFeedback, ErrCommentTooLong,
// ErrUnlockNotFound) are returned for predictable cases so handlers can map
// them to HTTP results consistently.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conectapro/chat-backend/internal/repo"
)

// maxCommentRunes caps the optional feedback comment.
const maxCommentRunes = 500

// FeedbackService implements the use-cases around engagement feedback.
type FeedbackService struct {
	// DB is the database handle used for all feedback operations.
	DB *gorm.DB
}

// Submit records feedback from clientID about providerID and closes the
// active unlock relation between them.
//
// Semantics and validation:
//   - feedbackType must be "positive", "neutral" or "negative"; otherwise
//     ErrInvalidFeedback.
//   - comment is optional, trimmed, and limited to 500 runes; otherwise
//     ErrCommentTooLong.
//   - An active unlock relation for (clientID, providerID) must exist;
//     otherwise ErrUnlockNotFound. Role assignment is exact: only the client
//     of the engagement submits feedback.
//
// Concurrency & atomicity:
//   - The feedback insert and the unlock closure run inside one transaction.
//     If the relation was closed concurrently, the whole submission fails
//     with ErrUnlockNotFound and no feedback row is written.
func (s *FeedbackService) Submit(ctx context.Context, clientID, providerID, feedbackType, comment string) error {
	tr := otel.Tracer("services/FeedbackService")
	ctx, span := tr.Start(ctx, "Submit",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("provider.id", providerID),
			attribute.String("feedback.type", feedbackType),
		),
	)
	defer span.End()

	switch feedbackType {
	case "positive", "neutral", "negative":
	default:
		return ErrInvalidFeedback
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > maxCommentRunes {
		return ErrCommentTooLong
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := repo.CloseUnlock(ctx, tx, clientID, providerID)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrUnlockNotFound
		}

		_, err = repo.CreateFeedback(ctx, tx, clientID, providerID, feedbackType, comment)
		return err
	})
}
