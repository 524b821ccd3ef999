// Package services – UnlockService
//
// This file implements the UnlockService, which owns the contact-unlock
// relation: the gate check consulted when a conversation opens, and the
// unlock action itself (spend tokens, create the relation). It enforces the
// single-active-relation rule per pair and keeps "no relation" strictly apart
// from "query failed" so callers can distinguish denial from an undetermined
// check.
package services

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conectapro/chat-backend/internal/repo"
)

// UnlockService implements the use-cases around contact unlocks. It also
// satisfies the chat.Gate port.
type UnlockService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB

	// UnlockCost is the token price of one contact unlock.
	UnlockCost int
}

// NewUnlockService constructs an UnlockService with the default unlock cost.
func NewUnlockService(db *gorm.DB) *UnlockService {
	return &UnlockService{DB: db, UnlockCost: 1}
}

// IsConversationActive reports whether the unordered pair {userA, userB}
// holds an active unlock relation, in either client/provider role assignment.
//
// Returns:
//   - (true, nil): at least one active relation exists.
//   - (false, nil): the store answered and found nothing; access denied.
//   - (false, err): the query itself failed; access undetermined. Callers
//     must not treat this as a denial.
func (s *UnlockService) IsConversationActive(ctx context.Context, userA, userB string) (bool, error) {
	tr := otel.Tracer("services/UnlockService")
	ctx, span := tr.Start(ctx, "IsConversationActive",
		trace.WithAttributes(
			attribute.String("user.a", userA),
			attribute.String("user.b", userB),
		),
	)
	defer span.End()

	_, err := repo.ActiveUnlockBetween(ctx, s.DB, userA, userB)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Unlock spends the client's tokens and creates an active unlock relation
// for (clientID, providerID).
//
// Validation and semantics:
//   - clientID must differ from providerID; otherwise ErrSelfUnlock.
//   - At most one active relation per pair: if one exists (in either role
//     assignment), ErrUnlockExists.
//   - The token debit and the relation insert run in one transaction; an
//     insufficient balance yields ErrInsufficientTokens and nothing is
//     written.
func (s *UnlockService) Unlock(ctx context.Context, clientID, providerID string) error {
	tr := otel.Tracer("services/UnlockService")
	ctx, span := tr.Start(ctx, "Unlock",
		trace.WithAttributes(
			attribute.String("client.id", clientID),
			attribute.String("provider.id", providerID),
		),
	)
	defer span.End()

	if clientID == providerID {
		return ErrSelfUnlock
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := repo.ActiveUnlockBetween(ctx, tx, clientID, providerID); err == nil {
			return ErrUnlockExists
		} else if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		affected, err := repo.DebitTokens(ctx, tx, clientID, s.UnlockCost)
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInsufficientTokens
		}

		_, err = repo.CreateUnlock(ctx, tx, clientID, providerID)
		return err
	})
}
