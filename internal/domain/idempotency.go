package domain

import "time"

// Idempotency records the result of a previously processed message send,
// keyed by (user_id, peer_id, key). It lets a client retry a failed POST
// (for example after an optimistic rollback on a flaky connection) without
// duplicating the message: the originally persisted message id is returned
// instead of re-executing the insert.
type Idempotency struct {
	ID        string    `gorm:"type:TEXT NOT NULL;primaryKey"`
	UserID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_peer_key,priority:1"`
	PeerID    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_peer_key,priority:2"`
	Key       string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_user_peer_key,priority:3"`
	MessageID string    `gorm:"type:TEXT NOT NULL"`
	Status    int       `gorm:"type:INTEGER NOT NULL"`
	CreatedAt time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime"`
	ExpiresAt time.Time `gorm:"type:DATETIME NOT NULL;index"`
}

// TableName implements the GORM tabler interface.
func (Idempotency) TableName() string { return "idempotency" }
