// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Feedback
// model.
//
// The repository follows a "thin" approach: it performs persistence and
// simple query composition, leaving business rules (active-unlock checks,
// comment limits, closing the engagement) to the services package.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/conectapro/chat-backend/internal/domain"
)

// CreateFeedback inserts a feedback row for the given engagement.
//
// Type must be one of "positive", "neutral", "negative"; validation is
// enforced at the service layer and by the DB check constraint. On success,
// it returns the persisted row. On failure, it returns a DB error.
func CreateFeedback(ctx context.Context, db *gorm.DB, clientID, providerID, feedbackType, comment string) (*domain.Feedback, error) {
	fb := &domain.Feedback{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: providerID,
		Type:       feedbackType,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(fb).Error; err != nil {
		return nil, err
	}
	return fb, nil
}

// ListFeedbackForProvider returns a provider's feedback, newest first.
// A limit <= 0 returns all rows.
func ListFeedbackForProvider(ctx context.Context, db *gorm.DB, providerID string, limit int) ([]domain.Feedback, error) {
	var out []domain.Feedback
	q := db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
