package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/conectapro/chat-backend/internal/domain"
)

func TestUnlock_RequiresAuth(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/providers/p1/unlock", "", "", nil)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d; want 401", w.Code)
	}
}

func TestUnlock_DebitsAndOpensGate(t *testing.T) {
	e := newEnv(t)
	if err := e.db.Create(&domain.TokenAccount{UserID: "c1", Balance: 3}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodPost, "/providers/p1/unlock", "c1", "", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	var acct domain.TokenAccount
	if err := e.db.First(&acct, "user_id = ?", "c1").Error; err != nil {
		t.Fatalf("load account: %v", err)
	}
	if acct.Balance != 2 {
		t.Fatalf("balance = %d; want 2 after debit", acct.Balance)
	}

	// The pair is now open for chat.
	if h := e.do(t, http.MethodGet, "/conversations/p1/messages", "c1", "", nil); h.Code != http.StatusOK {
		t.Fatalf("history after unlock = %d; want 200", h.Code)
	}
}

func TestUnlock_DuplicateIsConflict(t *testing.T) {
	e := newEnv(t)
	e.unlockPair(t, "c1", "p1")

	w := e.do(t, http.MethodPost, "/providers/p1/unlock", "c1", "", nil)
	if w.Code != http.StatusConflict {
		t.Fatalf("status = %d; want 409", w.Code)
	}
	if errCode(t, w) != ErrCodeConflict {
		t.Fatalf("code = %q", errCode(t, w))
	}
}

func TestUnlock_InsufficientTokens(t *testing.T) {
	e := newEnv(t)
	if err := e.db.Create(&domain.TokenAccount{UserID: "c1", Balance: 0}).Error; err != nil {
		t.Fatalf("seed: %v", err)
	}

	w := e.do(t, http.MethodPost, "/providers/p1/unlock", "c1", "", nil)
	if w.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d; want 402", w.Code)
	}
	if errCode(t, w) != ErrCodeInsufficientTokens {
		t.Fatalf("code = %q", errCode(t, w))
	}
}

func TestUnlock_SelfIsBadRequest(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/providers/c1/unlock", "c1", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestSubmitFeedback_ClosesEngagement(t *testing.T) {
	e := newEnv(t)
	e.unlockPair(t, "c1", "p1")

	w := e.do(t, http.MethodPost, "/providers/p1/feedback", "c1", `{"type":"positive","comment":"great work"}`, nil)
	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d body = %s", w.Code, w.Body.String())
	}

	// Feedback revokes chat access for the pair.
	if h := e.do(t, http.MethodGet, "/conversations/p1/messages", "c1", "", nil); h.Code != http.StatusForbidden {
		t.Fatalf("history after feedback = %d; want 403", h.Code)
	}

	// The verdict is publicly listed.
	list := e.do(t, http.MethodGet, "/providers/p1/feedback", "", "", nil)
	if list.Code != http.StatusOK {
		t.Fatalf("list status = %d", list.Code)
	}
	var resp FeedbackListResponse
	if err := json.Unmarshal(list.Body.Bytes(), &resp); err != nil {
		t.Fatalf("list body: %v", err)
	}
	if len(resp.Feedback) != 1 || resp.Feedback[0].Type != "positive" {
		t.Fatalf("feedback = %+v", resp.Feedback)
	}
}

func TestSubmitFeedback_InvalidType(t *testing.T) {
	e := newEnv(t)
	e.unlockPair(t, "c1", "p1")

	w := e.do(t, http.MethodPost, "/providers/p1/feedback", "c1", `{"type":"glowing"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestSubmitFeedback_CommentTooLong(t *testing.T) {
	e := newEnv(t)
	e.unlockPair(t, "c1", "p1")

	long := strings.Repeat("x", 501)
	w := e.do(t, http.MethodPost, "/providers/p1/feedback", "c1", `{"type":"neutral","comment":"`+long+`"}`, nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d; want 400", w.Code)
	}
}

func TestSubmitFeedback_WithoutUnlockIsNotFound(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodPost, "/providers/p1/feedback", "c1", `{"type":"negative"}`, nil)
	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d; want 404", w.Code)
	}
}

func TestListFeedback_RespectsLimit(t *testing.T) {
	e := newEnv(t)
	for _, client := range []string{"c1", "c2", "c3"} {
		e.unlockPair(t, client, "p1")
		w := e.do(t, http.MethodPost, "/providers/p1/feedback", client, `{"type":"positive"}`, nil)
		if w.Code != http.StatusNoContent {
			t.Fatalf("feedback from %s: %d", client, w.Code)
		}
	}

	w := e.do(t, http.MethodGet, "/providers/p1/feedback?limit=2", "", "", nil)
	var resp FeedbackListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("body: %v", err)
	}
	if len(resp.Feedback) != 2 {
		t.Fatalf("got %d items; want 2", len(resp.Feedback))
	}

	// Out-of-range limits fall back to the default.
	all := e.do(t, http.MethodGet, "/providers/p1/feedback?limit=9999", "", "", nil)
	json.Unmarshal(all.Body.Bytes(), &resp)
	if len(resp.Feedback) != 3 {
		t.Fatalf("got %d items with clamped limit; want 3", len(resp.Feedback))
	}
}
