// Unlock and feedback HTTP handlers.
//
// This file exposes the engagement lifecycle around a conversation:
//   - POST /providers/{id}/unlock    (spend tokens, open the pair for chat)
//   - POST /providers/{id}/feedback  (record verdict, close the engagement)
//   - GET  /providers/{id}/feedback  (public feedback listing)
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/conectapro/chat-backend/internal/domain"
	"github.com/conectapro/chat-backend/internal/repo"
	"github.com/conectapro/chat-backend/internal/services"
	"github.com/conectapro/chat-backend/internal/utils"
)

// SubmitFeedbackRequest is the JSON payload for closing an engagement.
type SubmitFeedbackRequest struct {
	// Type is the verdict: positive, neutral or negative.
	Type string `json:"type" binding:"required"`
	// Comment optionally elaborates (max 500 characters).
	Comment string `json:"comment"`
}

// FeedbackListResponse wraps a provider's public feedback.
type FeedbackListResponse struct {
	Feedback []domain.Feedback `json:"feedback"`
}

// Unlock spends the caller's tokens to unlock the provider's contact,
// creating the active relation that the chat gate checks.
func (h *Handlers) Unlock(c *gin.Context) {
	self, okAuth := currentUser(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	providerID := strings.TrimSpace(c.Param("id"))
	if providerID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid provider id")
		return
	}

	err := h.unlockSvc.Unlock(c.Request.Context(), self, providerID)
	switch {
	case err == nil:
		ok(c, http.StatusCreated, gin.H{"status": "unlocked"})
	case errors.Is(err, services.ErrSelfUnlock):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUnlockExists):
		fail(c, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, services.ErrInsufficientTokens):
		fail(c, http.StatusPaymentRequired, ErrCodeInsufficientTokens, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeUnlockFailed, "unlock failed")
	}
}

// SubmitFeedback records the caller's verdict on the provider and closes the
// active unlock, revoking further chat access for the pair.
func (h *Handlers) SubmitFeedback(c *gin.Context) {
	self, okAuth := currentUser(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	providerID := strings.TrimSpace(c.Param("id"))
	if providerID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid provider id")
		return
	}

	var req SubmitFeedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "type is required")
		return
	}

	err := h.fbSvc.Submit(c.Request.Context(), self, providerID, req.Type, req.Comment)
	switch {
	case err == nil:
		noContent(c)
	case errors.Is(err, services.ErrInvalidFeedback), errors.Is(err, services.ErrCommentTooLong):
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
	case errors.Is(err, services.ErrUnlockNotFound):
		fail(c, http.StatusNotFound, ErrCodeNotFound, err.Error())
	default:
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "feedback submission failed")
	}
}

// ListFeedback returns a provider's feedback, newest first. Public: the
// marketplace shows verdicts on the provider profile. The optional ?limit=
// query caps the page size (default 50, max 200).
func (h *Handlers) ListFeedback(c *gin.Context) {
	providerID := strings.TrimSpace(c.Param("id"))
	if providerID == "" {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid provider id")
		return
	}
	limit := utils.LimitOrDefault(c.Query("limit"), 50, 200)
	items, err := repo.ListFeedbackForProvider(c.Request.Context(), h.db, providerID, limit)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load feedback")
		return
	}
	ok(c, http.StatusOK, FeedbackListResponse{Feedback: items})
}
