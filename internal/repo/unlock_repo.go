// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// UnlockRelation and TokenAccount models.
//
// Functions:
//
//   - ActiveUnlockBetween(ctx, db, userA, userB) -> *domain.UnlockRelation, error
//     Finds the active (feedback_submitted = false) relation between the
//     unordered pair, in either role assignment.
//
//   - CreateUnlock(ctx, db, clientID, providerID) -> *domain.UnlockRelation, error
//     Inserts a fresh active relation.
//
//   - CloseUnlock(tx, clientID, providerID) -> int64, error
//     Marks the active relation closed; returns rows affected so the caller
//     can distinguish "nothing to close".
//
//   - DebitTokens(tx, userID, amount) -> int64, error
//     Conditionally decrements a token balance; zero rows affected means the
//     balance was insufficient (or the account is missing).
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/conectapro/chat-backend/internal/domain"
)

// ActiveUnlockBetween returns the active unlock relation between the
// unordered pair {userA, userB}, checking both client/provider role
// assignments. Returns ErrNotFound when no active relation exists; other
// errors are raw DB failures and must not be conflated with absence.
func ActiveUnlockBetween(ctx context.Context, db *gorm.DB, userA, userB string) (*domain.UnlockRelation, error) {
	var rel domain.UnlockRelation
	err := db.WithContext(ctx).
		Where("((client_id = ? AND provider_id = ?) OR (client_id = ? AND provider_id = ?)) AND feedback_submitted = ?",
			userA, userB, userB, userA, false).
		First(&rel).Error
	if err != nil {
		return nil, err
	}
	return &rel, nil
}

// CreateUnlock inserts a new active relation for (clientID, providerID).
// Uniqueness of the active relation per pair is enforced by the service
// layer, which checks ActiveUnlockBetween inside the same transaction.
func CreateUnlock(ctx context.Context, db *gorm.DB, clientID, providerID string) (*domain.UnlockRelation, error) {
	rel := &domain.UnlockRelation{
		ID:         uuid.NewString(),
		ClientID:   clientID,
		ProviderID: providerID,
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(rel).Error; err != nil {
		return nil, err
	}
	return rel, nil
}

// CloseUnlock marks the active relation for (clientID, providerID) as closed.
// Role assignment is exact here: only the client closes an engagement.
func CloseUnlock(ctx context.Context, db *gorm.DB, clientID, providerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.UnlockRelation{}).
		Where("client_id = ? AND provider_id = ? AND feedback_submitted = ?", clientID, providerID, false).
		Updates(map[string]any{"feedback_submitted": true, "updated_at": time.Now().UTC()})
	return res.RowsAffected, res.Error
}

// GetTokenAccount fetches a user's token account, or ErrNotFound.
func GetTokenAccount(ctx context.Context, db *gorm.DB, userID string) (*domain.TokenAccount, error) {
	var acc domain.TokenAccount
	if err := db.WithContext(ctx).Where("user_id = ?", userID).First(&acc).Error; err != nil {
		return nil, err
	}
	return &acc, nil
}

// DebitTokens decrements userID's balance by amount iff the balance covers
// it. Zero rows affected means insufficient balance or no account; the
// caller decides how to report that.
func DebitTokens(ctx context.Context, db *gorm.DB, userID string, amount int) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.TokenAccount{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"updated_at": time.Now().UTC(),
		})
	return res.RowsAffected, res.Error
}
