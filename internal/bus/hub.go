// Package bus provides the in-process realtime event hub backing chat
// conversations. It implements the chat.Bus port: named channels (one per
// conversation pair, see chat.ChannelKey) with fan-out to any number of
// subscribers.
//
// Delivery semantics:
//   - Per subscriber, events are delivered in publish order by a dedicated
//     drain goroutine, so a handler never runs concurrently with itself.
//   - Each subscriber has a bounded queue. A full queue drops the event:
//     typing broadcasts are ephemeral by contract, and durable message
//     events are recoverable through a history refetch, so blocking the
//     publisher is never worth it. Drops are counted and logged.
//   - There is no cross-subscriber ordering guarantee and no backfill for
//     events missed while unsubscribed.
package bus

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/conectapro/chat-backend/internal/chat"
)

// ErrHubClosed is returned by Subscribe and Publish after Close.
var ErrHubClosed = errors.New("bus: hub closed")

// defaultQueueSize bounds each subscriber's event queue.
const defaultQueueSize = 64

var (
	// busPublished counts events published per channel-agnostic event kind.
	busPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_events_published_total",
			Help: "Total events published to the realtime hub.",
		},
		[]string{"type"},
	)

	// busDropped counts events dropped due to a full subscriber queue.
	busDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_bus_events_dropped_total",
			Help: "Events dropped because a subscriber queue was full.",
		},
		[]string{"type"},
	)

	// busSubscribers gauges currently attached subscribers.
	busSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_bus_subscribers",
			Help: "Currently attached hub subscribers.",
		},
	)
)

func init() {
	prometheus.MustRegister(busPublished, busDropped, busSubscribers)
}

// eventKind labels metrics without unbounded cardinality.
func eventKind(ev chat.Event) string {
	switch ev.(type) {
	case chat.MessageInserted:
		return "message_inserted"
	case chat.MessageUpdated:
		return "message_updated"
	case chat.TypingStateChanged:
		return "typing"
	default:
		return "unknown"
	}
}

// Hub is the in-process pub/sub fan-out. Safe for concurrent use.
type Hub struct {
	log       zerolog.Logger
	queueSize int

	mu       sync.RWMutex
	closed   bool
	channels map[string]map[*subscriber]struct{}
}

// NewHub constructs an empty hub.
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		log:       log,
		queueSize: defaultQueueSize,
		channels:  make(map[string]map[*subscriber]struct{}),
	}
}

// subscriber is one attachment to a channel with its own ordered queue.
// The queue channel is never closed; detachment is signalled through done so
// a concurrent Publish can never hit a closed channel.
type subscriber struct {
	hub     *Hub
	key     string
	handler func(chat.Event)
	queue   chan chat.Event
	done    chan struct{}
	once    sync.Once
}

// Subscribe attaches handler to channelKey and starts its drain goroutine.
// The returned Subscription must be closed to release the attachment.
func (h *Hub) Subscribe(channelKey string, handler func(chat.Event)) (chat.Subscription, error) {
	sub := &subscriber{
		hub:     h,
		key:     channelKey,
		handler: handler,
		queue:   make(chan chat.Event, h.queueSize),
		done:    make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	set, ok := h.channels[channelKey]
	if !ok {
		set = make(map[*subscriber]struct{})
		h.channels[channelKey] = set
	}
	set[sub] = struct{}{}
	h.mu.Unlock()

	busSubscribers.Inc()
	go sub.drain()
	return sub, nil
}

// Publish fans ev out to every current subscriber of channelKey. It never
// blocks on a slow consumer.
func (h *Hub) Publish(channelKey string, ev chat.Event) error {
	kind := eventKind(ev)

	h.mu.RLock()
	if h.closed {
		h.mu.RUnlock()
		return ErrHubClosed
	}
	subs := make([]*subscriber, 0, len(h.channels[channelKey]))
	for sub := range h.channels[channelKey] {
		subs = append(subs, sub)
	}
	h.mu.RUnlock()

	busPublished.WithLabelValues(kind).Inc()
	for _, sub := range subs {
		select {
		case sub.queue <- ev:
		default:
			busDropped.WithLabelValues(kind).Inc()
			h.log.Warn().Str("channel", channelKey).Str("type", kind).Msg("subscriber queue full, event dropped")
		}
	}
	return nil
}

// Close detaches every subscriber and rejects further use. Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	var all []*subscriber
	for _, set := range h.channels {
		for sub := range set {
			all = append(all, sub)
		}
	}
	h.channels = make(map[string]map[*subscriber]struct{})
	h.mu.Unlock()

	for _, sub := range all {
		sub.finish()
	}
}

// drain delivers queued events to the handler in order until the
// subscription is closed.
func (s *subscriber) drain() {
	for {
		select {
		case ev := <-s.queue:
			s.handler(ev)
		case <-s.done:
			return
		}
	}
}

// Close implements chat.Subscription. Safe to call more than once.
func (s *subscriber) Close() {
	s.hub.mu.Lock()
	if set, ok := s.hub.channels[s.key]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(s.hub.channels, s.key)
		}
	}
	s.hub.mu.Unlock()
	s.finish()
}

// finish signals detachment exactly once, ending the drain goroutine.
func (s *subscriber) finish() {
	s.once.Do(func() {
		close(s.done)
		busSubscribers.Dec()
	})
}
