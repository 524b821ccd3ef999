package repo

import (
	"context"
	"testing"
	"time"
)

func TestIdempotency_CreateAndReplay(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	rec, err := CreateIdempotency(ctx, db, "alice", "bob", "key-1", "msg-1", 201, time.Hour)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if rec.MessageID != "msg-1" || rec.Status != 201 {
		t.Fatalf("record mismatch: %+v", rec)
	}

	got, err := GetIdempotency(ctx, db, "alice", "bob", "key-1", now)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.MessageID != "msg-1" {
		t.Fatalf("replayed message id = %q; want msg-1", got.MessageID)
	}
}

func TestIdempotency_DuplicateKeyRejected(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "alice", "bob", "key-1", "msg-1", 201, time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := CreateIdempotency(ctx, db, "alice", "bob", "key-1", "msg-2", 201, time.Hour); err != ErrDuplicate {
		t.Fatalf("err = %v; want ErrDuplicate", err)
	}

	// Same key against a different peer is a distinct tuple.
	if _, err := CreateIdempotency(ctx, db, "alice", "carol", "key-1", "msg-3", 201, time.Hour); err != nil {
		t.Fatalf("distinct peer rejected: %v", err)
	}
}

func TestIdempotency_ExpiryAndBlankKey(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	if _, err := CreateIdempotency(ctx, db, "alice", "bob", "key-1", "msg-1", 201, time.Minute); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Lookup after the TTL finds nothing.
	future := time.Now().UTC().Add(2 * time.Minute)
	if _, err := GetIdempotency(ctx, db, "alice", "bob", "key-1", future); err != ErrNotFound {
		t.Fatalf("expired lookup err = %v; want ErrNotFound", err)
	}

	if _, err := GetIdempotency(ctx, db, "alice", "bob", "  ", time.Now()); err != ErrNotFound {
		t.Fatalf("blank key err = %v; want ErrNotFound", err)
	}
}
