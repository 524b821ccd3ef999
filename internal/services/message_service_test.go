package services

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/conectapro/chat-backend/internal/chat"
)

// recordingBus captures published events; failures are injectable.
type recordingBus struct {
	mu        sync.Mutex
	published []struct {
		Key string
		Ev  chat.Event
	}
	err error
}

func (b *recordingBus) Subscribe(key string, handler func(chat.Event)) (chat.Subscription, error) {
	return nil, errors.New("not used")
}

func (b *recordingBus) Publish(key string, ev chat.Event) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.published = append(b.published, struct {
		Key string
		Ev  chat.Event
	}{key, ev})
	return nil
}

func TestAppend_PersistsNormalizedAndPublishes(t *testing.T) {
	db := newServiceDB(t)
	bus := &recordingBus{}
	svc := &MessageService{DB: db, Bus: bus}
	ctx := context.Background()

	m, err := svc.Append(ctx, "alice", "bob", "  hi there\r\n")
	if err != nil {
		t.Fatalf("append: %v", err)
	}
	if m.Text != "hi there" {
		t.Fatalf("text = %q; want normalized", m.Text)
	}
	if len(m.ReadBy) != 1 || m.ReadBy[0] != "alice" {
		t.Fatalf("ReadBy = %v; want [alice]", m.ReadBy)
	}

	if len(bus.published) != 1 {
		t.Fatalf("published %d events; want 1", len(bus.published))
	}
	if bus.published[0].Key != chat.ChannelKey("alice", "bob") {
		t.Fatalf("published on %q; want canonical key", bus.published[0].Key)
	}
	ev, ok := bus.published[0].Ev.(chat.MessageInserted)
	if !ok || ev.Message.ID != m.ID {
		t.Fatalf("published event = %+v", bus.published[0].Ev)
	}
}

func TestAppend_Validation(t *testing.T) {
	db := newServiceDB(t)
	svc := &MessageService{DB: db}
	ctx := context.Background()

	if _, err := svc.Append(ctx, "u", "u", "hi"); !errors.Is(err, ErrSelfMessage) {
		t.Fatalf("err = %v; want ErrSelfMessage", err)
	}
	if _, err := svc.Append(ctx, "a", "b", "   "); !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("err = %v; want ErrEmptyMessage", err)
	}
}

func TestAppend_RejectsOverlongText(t *testing.T) {
	db := newServiceDB(t)
	svc := &MessageService{DB: db, MaxTextRunes: 5}
	ctx := context.Background()

	// Over the cap: rejected whole, never a silent mid-text cut.
	if _, err := svc.Append(ctx, "a", "b", "abcdefgh"); !errors.Is(err, ErrMessageTooLong) {
		t.Fatalf("err = %v; want ErrMessageTooLong", err)
	}
	if msgs, err := svc.History(ctx, "a", "b"); err != nil || len(msgs) != 0 {
		t.Fatalf("history after rejection = %d msgs, err %v; want empty", len(msgs), err)
	}

	// Exactly at the cap, counted in runes, still goes through.
	m, err := svc.Append(ctx, "a", "b", "héllo")
	if err != nil {
		t.Fatalf("append at cap: %v", err)
	}
	if m.Text != "héllo" {
		t.Fatalf("text = %q; want unmodified", m.Text)
	}
}

func TestAppend_PublishFailureDoesNotFailSend(t *testing.T) {
	db := newServiceDB(t)
	bus := &recordingBus{err: errors.New("hub closed")}
	svc := &MessageService{DB: db, Bus: bus}

	m, err := svc.Append(context.Background(), "a", "b", "hi")
	if err != nil {
		t.Fatalf("append: %v", err)
	}

	// The row exists even though the event was dropped.
	history, err := svc.History(context.Background(), "a", "b")
	if err != nil || len(history) != 1 || history[0].ID != m.ID {
		t.Fatalf("history = (%v, %v); want the persisted message", history, err)
	}
}

func TestMarkRead_PublishesUpdatePerChangedRow(t *testing.T) {
	db := newServiceDB(t)
	bus := &recordingBus{}
	svc := &MessageService{DB: db, Bus: bus}
	ctx := context.Background()

	m1, _ := svc.Append(ctx, "bob", "alice", "one")
	m2, _ := svc.Append(ctx, "bob", "alice", "two")
	bus.mu.Lock()
	bus.published = nil // drop the insert events
	bus.mu.Unlock()

	n, err := svc.MarkRead(ctx, []string{m1.ID, m2.ID}, "alice")
	if err != nil {
		t.Fatalf("mark read: %v", err)
	}
	if n != 2 {
		t.Fatalf("changed %d rows; want 2", n)
	}
	if len(bus.published) != 2 {
		t.Fatalf("published %d update events; want 2", len(bus.published))
	}
	for _, p := range bus.published {
		if _, ok := p.Ev.(chat.MessageUpdated); !ok {
			t.Fatalf("published %T; want MessageUpdated", p.Ev)
		}
	}

	// Idempotent repeat: no rows, no events.
	n, err = svc.MarkRead(ctx, []string{m1.ID, m2.ID}, "alice")
	if err != nil || n != 0 {
		t.Fatalf("repeat = (%d, %v); want (0, nil)", n, err)
	}
	if len(bus.published) != 2 {
		t.Fatalf("repeat published events: %d", len(bus.published))
	}
}

func TestHistory_OrderedAscending(t *testing.T) {
	db := newServiceDB(t)
	svc := &MessageService{DB: db}
	ctx := context.Background()

	if _, err := svc.Append(ctx, "alice", "bob", "first"); err != nil {
		t.Fatalf("append: %v", err)
	}
	if _, err := svc.Append(ctx, "bob", "alice", "second"); err != nil {
		t.Fatalf("append: %v", err)
	}

	history, err := svc.History(ctx, "bob", "alice")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0].Text != "first" || history[1].Text != "second" {
		t.Fatalf("history order wrong: %+v", history)
	}
}
