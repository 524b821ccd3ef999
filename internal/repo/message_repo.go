// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model: the append-only conversation log and the read-receipt mutation.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions. They follow the "thin repository"
// approach: no business logic, only persistence and query composition.
//
// Error semantics:
//   - When a message is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/conectapro/chat-backend/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// InsertMessage appends a new message from senderID to receiverID. The id is
// a fresh UUID, the timestamp is the authoritative server time (UTC), and
// read_by is seeded with the sender only; InsertMessage never grows read_by
// further (MarkMessagesRead is the only mutator that does).
func InsertMessage(ctx context.Context, db *gorm.DB, senderID, receiverID, text string) (*domain.Message, error) {
	m := &domain.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Timestamp:  time.Now().UTC(),
		ReadBy:     domain.StringList{senderID},
	}
	if err := db.WithContext(ctx).Create(m).Error; err != nil {
		return nil, err
	}
	return m, nil
}

// ListMessagesBetween returns every message exchanged between the unordered
// pair {userA, userB}, in either direction, ordered deterministically
// (Timestamp ASC, ID ASC). No pagination: conversations are fetched whole.
func ListMessagesBetween(ctx context.Context, db *gorm.DB, userA, userB string) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("timestamp ASC, id ASC").
		Find(&out).Error
	return out, err
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// MarkMessagesRead adds readerID to read_by on each of the given messages and
// returns the rows that actually changed.
//
// Semantics:
//   - Only rows whose receiver_id equals readerID are touched; a reader
//     cannot mark their own sent messages through this path.
//   - Idempotent: rows already containing readerID are skipped, so a repeat
//     call returns an empty slice rather than an error.
//   - Runs in one transaction so a batch is applied atomically.
func MarkMessagesRead(ctx context.Context, db *gorm.DB, messageIDs []string, readerID string) ([]domain.Message, error) {
	if len(messageIDs) == 0 {
		return nil, nil
	}
	var updated []domain.Message
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var msgs []domain.Message
		if err := tx.
			Where("id IN ? AND receiver_id = ?", messageIDs, readerID).
			Find(&msgs).Error; err != nil {
			return err
		}
		now := time.Now().UTC()
		for i := range msgs {
			m := msgs[i]
			if m.ReadByContains(readerID) {
				continue
			}
			m.ReadBy = append(m.ReadBy, readerID)
			m.UpdatedAt = now
			if err := tx.Model(&domain.Message{}).
				Where("id = ?", m.ID).
				Updates(map[string]any{"read_by": m.ReadBy, "updated_at": now}).Error; err != nil {
				return err
			}
			updated = append(updated, m)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
