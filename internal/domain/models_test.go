package domain

import (
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newDomainDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:domain_models?mode=memory&cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return db
}

func TestTableNames(t *testing.T) {
	if (Message{}).TableName() != "messages" {
		t.Fatalf("Message.TableName() = %q; want %q", (Message{}).TableName(), "messages")
	}
	if (UnlockRelation{}).TableName() != "unlocked_contacts" {
		t.Fatalf("UnlockRelation.TableName() = %q; want %q", (UnlockRelation{}).TableName(), "unlocked_contacts")
	}
	if (Feedback{}).TableName() != "feedback" {
		t.Fatalf("Feedback.TableName() = %q; want %q", (Feedback{}).TableName(), "feedback")
	}
	if (TokenAccount{}).TableName() != "token_accounts" {
		t.Fatalf("TokenAccount.TableName() = %q; want %q", (TokenAccount{}).TableName(), "token_accounts")
	}
	if (Idempotency{}).TableName() != "idempotency" {
		t.Fatalf("Idempotency.TableName() = %q; want %q", (Idempotency{}).TableName(), "idempotency")
	}
}

func TestMessage_ReadByRoundTrip(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	m := Message{
		ID:         "11111111-1111-1111-1111-111111111111",
		SenderID:   "client-1",
		ReceiverID: "provider-1",
		Text:       "hello",
		Timestamp:  time.Now().UTC(),
		ReadBy:     StringList{"client-1"},
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var got Message
	if err := db.First(&got, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.ReadBy) != 1 || got.ReadBy[0] != "client-1" {
		t.Fatalf("ReadBy = %v; want [client-1]", got.ReadBy)
	}
	if !got.ReadByContains("client-1") {
		t.Fatalf("ReadByContains(sender) = false; want true")
	}
	if got.ReadByContains("provider-1") {
		t.Fatalf("ReadByContains(receiver) = true before any read")
	}

	got.ReadBy = append(got.ReadBy, "provider-1")
	if err := db.Save(&got).Error; err != nil {
		t.Fatalf("save: %v", err)
	}
	var again Message
	if err := db.First(&again, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !again.ReadByContains("provider-1") {
		t.Fatalf("ReadBy lost receiver after update: %v", again.ReadBy)
	}
}

func TestMessage_NilReadByPersistsAsEmptyArray(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Message{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	m := Message{
		ID:         "22222222-2222-2222-2222-222222222222",
		SenderID:   "a",
		ReceiverID: "b",
		Text:       "x",
		Timestamp:  time.Now().UTC(),
	}
	if err := db.Create(&m).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	var raw string
	if err := db.Raw("SELECT read_by FROM messages WHERE id = ?", m.ID).Scan(&raw).Error; err != nil {
		t.Fatalf("raw select: %v", err)
	}
	if raw != "[]" {
		t.Fatalf("stored read_by = %q; want %q", raw, "[]")
	}

	var got Message
	if err := db.First(&got, "id = ?", m.ID).Error; err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.ReadBy == nil || len(got.ReadBy) != 0 {
		t.Fatalf("ReadBy = %#v; want empty non-nil list", got.ReadBy)
	}
}

func TestFeedback_TypeCheckConstraint(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Feedback{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	bad := Feedback{
		ID:         "33333333-3333-3333-3333-333333333333",
		ClientID:   "c",
		ProviderID: "p",
		Type:       "meh",
		CreatedAt:  time.Now().UTC(),
	}
	if err := db.Create(&bad).Error; err == nil {
		t.Fatalf("expected check constraint violation for type %q", bad.Type)
	}

	good := bad
	good.ID = "44444444-4444-4444-4444-444444444444"
	good.Type = "positive"
	if err := db.Create(&good).Error; err != nil {
		t.Fatalf("valid type rejected: %v", err)
	}
}

func TestIdempotency_UniquePerUserPeerKey(t *testing.T) {
	db := newDomainDB(t)
	if err := db.AutoMigrate(&Idempotency{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	rec := Idempotency{
		ID:        "55555555-5555-5555-5555-555555555555",
		UserID:    "u",
		PeerID:    "p",
		Key:       "k",
		MessageID: "m",
		Status:    201,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := db.Create(&rec).Error; err != nil {
		t.Fatalf("create: %v", err)
	}

	dup := rec
	dup.ID = "66666666-6666-6666-6666-666666666666"
	if err := db.Create(&dup).Error; err == nil {
		t.Fatalf("expected unique violation for duplicate (user, peer, key)")
	}

	other := rec
	other.ID = "77777777-7777-7777-7777-777777777777"
	other.Key = "k2"
	if err := db.Create(&other).Error; err != nil {
		t.Fatalf("distinct key rejected: %v", err)
	}
}
