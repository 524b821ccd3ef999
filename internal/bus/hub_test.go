package bus

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/conectapro/chat-backend/internal/chat"
	"github.com/conectapro/chat-backend/internal/domain"
)

// collector accumulates delivered events behind a lock.
type collector struct {
	mu     sync.Mutex
	events []chat.Event
}

func (c *collector) handler(ev chat.Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func (c *collector) snapshot() []chat.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]chat.Event, len(c.events))
	copy(out, c.events)
	return out
}

func waitForCount(t *testing.T, c *collector, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if c.len() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out: delivered %d events, want %d", c.len(), n)
}

func insertEvent(id string) chat.Event {
	return chat.MessageInserted{Message: domain.Message{ID: id, SenderID: "a", ReceiverID: "b", Text: id}}
}

func TestHub_DeliversInPublishOrder(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	var c collector
	sub, err := h.Subscribe("chat:a:b", c.handler)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer sub.Close()

	const n = 50
	for i := 0; i < n; i++ {
		if err := h.Publish("chat:a:b", insertEvent(string(rune('A'+i%26)))); err != nil {
			t.Fatalf("publish %d: %v", i, err)
		}
	}
	waitForCount(t, &c, n)

	got := c.snapshot()
	for i, ev := range got {
		want := string(rune('A' + i%26))
		if ev.(chat.MessageInserted).Message.ID != want {
			t.Fatalf("event %d out of order: got %q want %q", i, ev.(chat.MessageInserted).Message.ID, want)
		}
	}
}

func TestHub_FanOutToAllSubscribers(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	var c1, c2 collector
	s1, _ := h.Subscribe("chat:a:b", c1.handler)
	s2, _ := h.Subscribe("chat:a:b", c2.handler)
	defer s1.Close()
	defer s2.Close()

	if err := h.Publish("chat:a:b", insertEvent("m1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitForCount(t, &c1, 1)
	waitForCount(t, &c2, 1)
}

func TestHub_ChannelsAreIsolated(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	var c collector
	sub, _ := h.Subscribe("chat:a:b", c.handler)
	defer sub.Close()

	if err := h.Publish("chat:a:c", insertEvent("other")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if c.len() != 0 {
		t.Fatalf("received %d events from a foreign channel", c.len())
	}
}

func TestHub_UnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	var c collector
	sub, _ := h.Subscribe("chat:a:b", c.handler)

	if err := h.Publish("chat:a:b", insertEvent("m1")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	waitForCount(t, &c, 1)

	sub.Close()
	sub.Close() // idempotent

	if err := h.Publish("chat:a:b", insertEvent("m2")); err != nil {
		t.Fatalf("publish after unsubscribe: %v", err)
	}
	time.Sleep(30 * time.Millisecond)
	if c.len() != 1 {
		t.Fatalf("delivered %d events; want 1 after unsubscribe", c.len())
	}
}

func TestHub_SlowSubscriberDoesNotBlockPublish(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	block := make(chan struct{})
	started := make(chan struct{})
	var once sync.Once
	sub, _ := h.Subscribe("chat:a:b", func(chat.Event) {
		once.Do(func() { close(started) })
		<-block
	})
	defer sub.Close()

	// First event occupies the handler; fill the queue past capacity.
	if err := h.Publish("chat:a:b", insertEvent("head")); err != nil {
		t.Fatalf("publish: %v", err)
	}
	<-started

	done := make(chan struct{})
	go func() {
		for i := 0; i < defaultQueueSize*2; i++ {
			_ = h.Publish("chat:a:b", insertEvent("flood"))
		}
		close(done)
	}()

	select {
	case <-done:
		// Publishes past the bounded queue dropped instead of blocking.
	case <-time.After(2 * time.Second):
		t.Fatalf("publish blocked on a slow subscriber")
	}
	close(block)
}

func TestHub_ClosedRejectsUse(t *testing.T) {
	h := NewHub(zerolog.Nop())

	var c collector
	sub, _ := h.Subscribe("chat:a:b", c.handler)
	_ = sub

	h.Close()
	h.Close() // idempotent

	if _, err := h.Subscribe("chat:a:b", c.handler); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("subscribe after close err = %v; want ErrHubClosed", err)
	}
	if err := h.Publish("chat:a:b", insertEvent("m")); !errors.Is(err, ErrHubClosed) {
		t.Fatalf("publish after close err = %v; want ErrHubClosed", err)
	}
}

func TestHub_ConcurrentPublishSubscribe(t *testing.T) {
	h := NewHub(zerolog.Nop())
	defer h.Close()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var c collector
			sub, err := h.Subscribe("chat:a:b", c.handler)
			if err != nil {
				t.Errorf("subscribe: %v", err)
				return
			}
			for i := 0; i < 20; i++ {
				if err := h.Publish("chat:a:b", insertEvent("x")); err != nil {
					t.Errorf("publish: %v", err)
					return
				}
			}
			sub.Close()
		}()
	}
	wg.Wait()
}
