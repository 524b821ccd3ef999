// Package domain defines the persistence models for messages, contact
// unlocks, and feedback. These types are mapped with GORM and form the core
// data layer of the marketplace chat backend.
package domain

import (
	"time"
)

// Message represents a single 1:1 chat message between two marketplace users.
// A message always has exactly one sender and one receiver; there is no group
// chat. After creation a message is mutated only by growing ReadBy.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - SenderID / ReceiverID: the two participants; both indexed so that a
//     conversation can be fetched from either side.
//   - Text: message body, non-empty after normalization.
//   - Timestamp: authoritative creation time, assigned at persistence.
//   - ReadBy: set of participant ids that have read the message, serialized
//     as a JSON array. The sender is always seeded at creation.
type Message struct {
	ID         string     `json:"id"          gorm:"type:char(36);primaryKey"`
	SenderID   string     `json:"sender_id"   gorm:"type:varchar(64);not null;index:idx_msg_sender,priority:1"`
	ReceiverID string     `json:"receiver_id" gorm:"type:varchar(64);not null;index:idx_msg_receiver,priority:1"`
	Text       string     `json:"text"        gorm:"type:text;not null"`
	Timestamp  time.Time  `json:"timestamp"   gorm:"index:idx_msg_sender,priority:2;index:idx_msg_receiver,priority:2"`
	ReadBy     StringList `json:"read_by"     gorm:"type:text"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// ReadByContains reports whether userID is already a member of ReadBy.
func (m *Message) ReadByContains(userID string) bool {
	for _, id := range m.ReadBy {
		if id == userID {
			return true
		}
	}
	return false
}

// UnlockRelation represents a contact unlock: a persisted grant that allows a
// specific client/provider pair to exchange messages. The relation is created
// when the client spends tokens to unlock the provider's contact details and
// is closed (FeedbackSubmitted = true) when the client submits feedback for
// the engagement. A closed relation no longer grants chat access.
//
// A pair may accumulate multiple historical relations (re-unlock after
// closing), but at most one active relation exists per pair at a time.
type UnlockRelation struct {
	ID                string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ClientID          string    `json:"client_id"   gorm:"type:varchar(64);not null;index:idx_unlock_pair,priority:1"`
	ProviderID        string    `json:"provider_id" gorm:"type:varchar(64);not null;index:idx_unlock_pair,priority:2"`
	FeedbackSubmitted bool      `json:"feedback_submitted" gorm:"not null;default:false"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TableName returns the database table name for UnlockRelation.
func (UnlockRelation) TableName() string { return "unlocked_contacts" }

// Feedback records the client's verdict on a provider engagement. Submitting
// feedback closes the active unlock relation for the pair; the two writes
// happen in one transaction (see services.FeedbackService).
type Feedback struct {
	ID         string    `json:"id"          gorm:"type:char(36);primaryKey"`
	ClientID   string    `json:"client_id"   gorm:"type:varchar(64);not null;index"`
	ProviderID string    `json:"provider_id" gorm:"type:varchar(64);not null;index"`
	Type       string    `json:"type"        gorm:"type:varchar(16);not null;check:type IN ('positive','neutral','negative')"`
	Comment    string    `json:"comment"     gorm:"type:varchar(500)"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }

// TokenAccount keeps the simulated token balance used to pay for contact
// unlocks. Real payment processing is out of scope; top-ups happen through
// the simulated purchase flow outside this service.
type TokenAccount struct {
	UserID    string    `json:"user_id" gorm:"type:varchar(64);primaryKey"`
	Balance   int       `json:"balance" gorm:"not null;default:0"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName returns the database table name for TokenAccount.
func (TokenAccount) TableName() string { return "token_accounts" }
