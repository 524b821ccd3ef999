// Conversation HTTP handlers.
//
// This file exposes REST endpoints for 1:1 conversations:
//   - GET  /conversations/{peer}/messages  (full ordered history, ETag-aware)
//   - POST /conversations/{peer}/messages  (append a message, idempotent retry)
//
// Handlers are transport-thin:
//   - validate & normalize inputs
//   - consult the unlock gate the same way a live session would
//   - delegate to application services
//   - implement conditional responses (ETag) and idempotency semantics
//
// Idempotency:
// If the client supplies an Idempotency-Key header and a previous successful
// send exists for (user, peer, key), the handler returns the recorded message
// and sets `Idempotency-Replayed: true`. This lets a client retry after an
// optimistic rollback without double-sending.
package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/conectapro/chat-backend/internal/chat"
	"github.com/conectapro/chat-backend/internal/domain"
	"github.com/conectapro/chat-backend/internal/repo"
	"github.com/conectapro/chat-backend/internal/services"
)

//
// Service contracts
//

// ConversationService is the slice of MessageService the handlers need.
type ConversationService interface {
	History(ctx context.Context, userA, userB string) ([]domain.Message, error)
	Append(ctx context.Context, senderID, receiverID, text string) (domain.Message, error)
	MarkRead(ctx context.Context, messageIDs []string, readerID string) (int, error)
}

// UnlockService covers the gate check and the unlock action.
type UnlockService interface {
	IsConversationActive(ctx context.Context, userA, userB string) (bool, error)
	Unlock(ctx context.Context, clientID, providerID string) error
}

// FeedbackService closes engagements.
type FeedbackService interface {
	Submit(ctx context.Context, clientID, providerID, feedbackType, comment string) error
}

// Handlers bundles the API endpoints and their dependencies.
type Handlers struct {
	msgSvc    ConversationService
	unlockSvc UnlockService
	fbSvc     FeedbackService

	// db is used directly for lightweight aggregate and idempotency
	// queries, the same thin-repo style the services use.
	db *gorm.DB

	// bus plus the session tunables feed the WebSocket endpoint.
	bus          chat.Bus
	typingWindow time.Duration
	sendTimeout  time.Duration

	idempotencyTTL time.Duration
}

// New constructs a Handlers instance bound to the given services.
func New(msgSvc ConversationService, unlockSvc UnlockService, fbSvc FeedbackService, db *gorm.DB, bus chat.Bus, typingWindow, sendTimeout, idemTTL time.Duration) *Handlers {
	return &Handlers{
		msgSvc:         msgSvc,
		unlockSvc:      unlockSvc,
		fbSvc:          fbSvc,
		db:             db,
		bus:            bus,
		typingWindow:   typingWindow,
		sendTimeout:    sendTimeout,
		idempotencyTTL: idemTTL,
	}
}

// currentUser extracts the authenticated user id from the Gin context (set
// by middleware.Auth). The second return is false when no identity is
// present; callers must refuse the operation in that case.
func currentUser(c *gin.Context) (string, bool) {
	if v, ok := c.Get("userID"); ok {
		if s, ok := v.(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

//
// DTOs
//

// PostMessageRequest is the JSON payload for sending a message.
type PostMessageRequest struct {
	// Text is the message body. It must be non-empty after trimming.
	Text string `json:"text" binding:"required,min=1"`
}

// MessageResponse is the JSON envelope for a single persisted message.
type MessageResponse struct {
	Message domain.Message `json:"message"`
}

// HistoryResponse contains the full ordered conversation history.
type HistoryResponse struct {
	Messages []domain.Message `json:"messages"`
	// UnreadMarked is the number of messages marked read by this fetch
	// (only when mark_read=true was requested).
	UnreadMarked int `json:"unread_marked"`
}

//
// Helpers
//

// checkGate runs the unlock gate and writes the appropriate error response
// when the conversation is not open. Returns true when the caller may
// proceed. Denial and undetermined are deliberately different codes: 403
// tells the client to stop, 503 tells it to retry.
func (h *Handlers) checkGate(c *gin.Context, self, peer string) bool {
	active, err := h.unlockSvc.IsConversationActive(c.Request.Context(), self, peer)
	if err != nil {
		fail(c, http.StatusServiceUnavailable, ErrCodeAccessUndetermined, "could not verify conversation access, retry")
		return false
	}
	if !active {
		fail(c, http.StatusForbidden, ErrCodeForbidden, "conversation is not unlocked")
		return false
	}
	return true
}

// conversationETag derives a weak ETag from the conversation aggregate:
// message count plus the greatest updated_at (read receipts bump it).
func conversationETag(count int64, maxUpdated *time.Time) string {
	var ts int64
	if maxUpdated != nil {
		ts = maxUpdated.UTC().UnixNano()
	}
	return fmt.Sprintf(`W/"conv-%d-%d"`, count, ts)
}

//
// Handlers
//

// GetHistory returns the full ordered message history with the peer.
//
// Query parameters:
//   - mark_read=true: additionally mark all unread-to-me messages read in
//     one batched call (what a conversation open does).
//
// Conditional requests: the response carries a weak ETag; a matching
// If-None-Match yields 304 without touching the message rows. mark_read=true
// disables the shortcut because it has to reach the rows.
func (h *Handlers) GetHistory(c *gin.Context) {
	self, okAuth := currentUser(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	peer := strings.TrimSpace(c.Param("peer"))
	if peer == "" || peer == self {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid peer")
		return
	}
	if !h.checkGate(c, self, peer) {
		return
	}

	ctx := c.Request.Context()
	markRead := c.Query("mark_read") == "true"
	count, maxUpd, err := repo.ConversationStats(ctx, h.db, self, peer)
	if err == nil {
		etag := conversationETag(count, maxUpd)
		c.Header("ETag", etag)
		// A mark_read request mutates read receipts, so it never takes the
		// conditional shortcut; the mutation bumps updated_at and would
		// invalidate the presented ETag anyway.
		if !markRead {
			if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
				c.Status(http.StatusNotModified)
				return
			}
		}
	}

	msgs, err := h.msgSvc.History(ctx, self, peer)
	if err != nil {
		fail(c, http.StatusInternalServerError, ErrCodeInternal, "could not load messages")
		return
	}

	marked := 0
	if markRead {
		var unread []string
		for i := range msgs {
			if msgs[i].ReceiverID == self && !msgs[i].ReadByContains(self) {
				unread = append(unread, msgs[i].ID)
			}
		}
		if len(unread) > 0 {
			if n, err := h.msgSvc.MarkRead(ctx, unread, self); err == nil {
				marked = n
			}
			// mark-read failure never blocks returning the history
		}
	}

	ok(c, http.StatusOK, HistoryResponse{Messages: msgs, UnreadMarked: marked})
}

// PostMessage appends a message to the conversation with the peer.
//
// When an Idempotency-Key header accompanies the request, a replayed key
// returns the originally persisted message with Idempotency-Replayed: true
// instead of inserting again.
func (h *Handlers) PostMessage(c *gin.Context) {
	self, okAuth := currentUser(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	peer := strings.TrimSpace(c.Param("peer"))
	if peer == "" || peer == self {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid peer")
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "text is required")
		return
	}
	if !h.checkGate(c, self, peer) {
		return
	}

	ctx := c.Request.Context()
	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	if idemKey != "" {
		if rec, err := repo.GetIdempotency(ctx, h.db, self, peer, idemKey, time.Now().UTC()); err == nil {
			if m, err := repo.GetMessage(ctx, h.db, rec.MessageID); err == nil {
				c.Header("Idempotency-Replayed", "true")
				ok(c, rec.Status, MessageResponse{Message: *m})
				return
			}
		}
	}

	m, err := h.msgSvc.Append(ctx, self, peer, req.Text)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrSelfMessage), errors.Is(err, services.ErrMessageTooLong):
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, err.Error())
		default:
			fail(c, http.StatusInternalServerError, ErrCodeSendFailed, "message not sent, retry")
		}
		return
	}

	if idemKey != "" {
		if _, err := repo.CreateIdempotency(ctx, h.db, self, peer, idemKey, m.ID, http.StatusCreated, h.idempotencyTTL); err != nil && !errors.Is(err, repo.ErrDuplicate) {
			// best effort: a lost record only costs the replay shortcut
		}
	}
	ok(c, http.StatusCreated, MessageResponse{Message: m})
}
