// Package chat – Session
//
// This file implements the per-conversation session controller. A Session
// owns the in-memory message list for one open 1:1 conversation, the typing
// debounce timer, optimistic-send bookkeeping, and the wiring between the
// unlock gate, the message store, and the event bus. One Session instance
// exists per open conversation; it is created, opened, and explicitly closed,
// never shared across conversations.
//
// Concurrency model: incoming bus events, Send calls, and the typing timer
// interleave freely. All session state is guarded by a single mutex, and the
// lock is released around every Store and Bus call so an in-flight send never
// stalls delivery of a concurrently arriving peer message.
package chat

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/conectapro/chat-backend/internal/domain"
)

// State is the externally visible lifecycle phase of a Session.
type State int

const (
	// StateInitializing is the phase before Open has been called (or after a
	// retriable Open failure).
	StateInitializing State = iota
	// StateLoading covers the gate check, history fetch, and subscription.
	StateLoading
	// StateReady means history is loaded and live events are flowing.
	StateReady
	// StateDenied is terminal: the gate found no active unlock.
	StateDenied
	// StateClosed is terminal: Close was called.
	StateClosed
)

// String returns a short label for logging.
func (s State) String() string {
	switch s {
	case StateInitializing:
		return "initializing"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StateDenied:
		return "denied"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// SessionConfig carries the collaborators and tunables for one conversation.
type SessionConfig struct {
	SelfID string // the local participant
	PeerID string // the other participant

	Gate  Gate
	Store Store
	Bus   Bus

	// TypingWindow is the debounce window for typing broadcasts. A burst of
	// keystrokes publishes at most one isTyping:true; silence for the window
	// publishes exactly one isTyping:false. Defaults to 2s.
	TypingWindow time.Duration

	// SendTimeout bounds each Store.Append call; expiry is treated as a
	// persistence failure. Defaults to 10s.
	SendTimeout time.Duration

	// Notify, when set, receives peer-originated changes after they are
	// merged into the session (inserts, read-receipt updates, typing). It is
	// invoked outside the session lock and must not block for long.
	Notify func(Event)

	Logger zerolog.Logger
}

// Session is the stateful controller for one open conversation.
type Session struct {
	self, peer string
	gate       Gate
	store      Store
	bus        Bus
	notify     func(Event)
	log        zerolog.Logger

	typingWindow time.Duration
	sendTimeout  time.Duration

	mu          sync.Mutex
	state       State
	messages    []domain.Message
	byID        map[string]int      // message id -> index into messages
	pending     map[string]struct{} // optimistic ids awaiting confirmation
	pendingRead map[string]struct{} // mark-read failures to retry
	peerTyping  bool
	draft       string
	typingSent  bool
	typingTimer *time.Timer
	sub         Subscription
}

// NewSession constructs an unopened Session. Call Open before Send.
func NewSession(cfg SessionConfig) *Session {
	if cfg.TypingWindow <= 0 {
		cfg.TypingWindow = 2 * time.Second
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Session{
		self:         cfg.SelfID,
		peer:         cfg.PeerID,
		gate:         cfg.Gate,
		store:        cfg.Store,
		bus:          cfg.Bus,
		notify:       cfg.Notify,
		log:          cfg.Logger.With().Str("self", cfg.SelfID).Str("peer", cfg.PeerID).Logger(),
		typingWindow: cfg.TypingWindow,
		sendTimeout:  cfg.SendTimeout,
		state:        StateInitializing,
		byID:         map[string]int{},
		pending:      map[string]struct{}{},
		pendingRead:  map[string]struct{}{},
	}
}

// Open runs the conversation setup: gate check, history load, batched
// mark-read of unread-to-me messages, and channel subscription.
//
// Outcomes:
//   - nil: session is Ready (also when already Ready or Loading elsewhere;
//     duplicate opens are idempotent and never create a second subscription).
//   - ErrAccessDenied: terminal, no retry without a fresh unlock.
//   - ErrAccessUndetermined / ErrPersistence / ErrTransport (wrapped): the
//     session returns to Initializing and Open may be retried.
func (s *Session) Open(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateReady, StateLoading:
		s.mu.Unlock()
		return nil
	case StateDenied:
		s.mu.Unlock()
		return ErrAccessDenied
	case StateClosed:
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateLoading
	s.mu.Unlock()

	active, err := s.gate.IsConversationActive(ctx, s.self, s.peer)
	if err != nil {
		s.resetToInitializing()
		return fmt.Errorf("%w: %v", ErrAccessUndetermined, err)
	}
	if !active {
		s.mu.Lock()
		s.state = StateDenied
		s.mu.Unlock()
		return ErrAccessDenied
	}

	history, err := s.store.History(ctx, s.self, s.peer)
	if err != nil {
		s.resetToInitializing()
		return fmt.Errorf("%w: history: %v", ErrPersistence, err)
	}

	// Collect unread-to-me for one batched mark-read after install.
	var unread []string
	for i := range history {
		if history[i].ReceiverID == s.self && !history[i].ReadByContains(s.self) {
			unread = append(unread, history[i].ID)
		}
	}

	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	// History arrives ordered from the store; the stable sort enforces it
	// regardless, keeping equal timestamps in fetch order.
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})
	s.messages = history
	s.reindexLocked(0)
	s.state = StateReady
	s.mu.Unlock()

	// Subscribe after install so merged events always land on a populated
	// list. Anything inserted between the history fetch and this point is
	// recovered only by a manual refresh (no bus backfill).
	sub, err := s.bus.Subscribe(ChannelKey(s.self, s.peer), s.handleEvent)
	if err != nil {
		s.resetToInitializing()
		return fmt.Errorf("%w: subscribe: %v", ErrTransport, err)
	}
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		sub.Close()
		return ErrClosed
	}
	s.sub = sub
	s.mu.Unlock()

	if len(unread) > 0 {
		s.markRead(unread)
	}
	s.log.Debug().Int("history", len(history)).Int("unread", len(unread)).Msg("conversation opened")
	return nil
}

// resetToInitializing rolls the state back after a retriable Open failure.
func (s *Session) resetToInitializing() {
	s.mu.Lock()
	if s.state == StateLoading || s.state == StateReady {
		s.state = StateInitializing
	}
	s.mu.Unlock()
}

// Send appends text as a new message from self to peer.
//
// The message is appended optimistically with a locally generated id and
// timestamp, any pending typing broadcast is cancelled (sending implies
// stop-typing), and the store append is awaited. On success the optimistic
// entry is reconciled in place with the authoritative id and timestamp; its
// position in the list is preserved even if the authoritative timestamp
// differs, since local insertion order already fixed the display order. On
// failure the entry is removed and a persistence error returned; the caller
// may retry with the same text.
func (s *Session) Send(ctx context.Context, text string) (domain.Message, error) {
	text = NormalizeText(text)
	if text == "" {
		return domain.Message{}, ErrBlankMessage
	}

	s.mu.Lock()
	switch s.state {
	case StateClosed:
		s.mu.Unlock()
		return domain.Message{}, ErrClosed
	case StateDenied:
		s.mu.Unlock()
		return domain.Message{}, ErrAccessDenied
	case StateInitializing, StateLoading:
		s.mu.Unlock()
		return domain.Message{}, ErrNotReady
	}

	optimistic := domain.Message{
		ID:         uuid.NewString(),
		SenderID:   s.self,
		ReceiverID: s.peer,
		Text:       text,
		Timestamp:  time.Now().UTC(),
		ReadBy:     domain.StringList{s.self},
	}
	s.insertLocked(optimistic)
	s.pending[optimistic.ID] = struct{}{}
	s.draft = ""
	stopTyping := s.cancelTypingLocked()
	s.mu.Unlock()

	if stopTyping {
		s.publishTyping(false)
	}

	appendCtx, cancel := context.WithTimeout(ctx, s.sendTimeout)
	persisted, err := s.store.Append(appendCtx, s.self, s.peer, text)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, optimistic.ID)
	if err != nil {
		s.removeLocked(optimistic.ID)
		return domain.Message{}, fmt.Errorf("%w: append: %v", ErrPersistence, err)
	}

	// Reconcile in place. The optimistic entry may already have been
	// replaced through a duplicate-id merge; tolerate its absence.
	if pos, ok := s.byID[optimistic.ID]; ok {
		delete(s.byID, optimistic.ID)
		s.messages[pos] = persisted
		s.byID[persisted.ID] = pos
	}
	return persisted, nil
}

// SetTypingText records the local draft and manages the typing broadcast.
//
// A non-empty draft publishes isTyping:true at most once per keystroke burst
// and (re)arms the debounce timer; timer expiry publishes isTyping:false and
// ends the burst. An explicit clear cancels the timer and publishes the stop
// immediately. Broadcast failures are logged and dropped.
func (s *Session) SetTypingText(text string) {
	s.mu.Lock()
	if s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.draft = text

	if text == "" {
		stop := s.cancelTypingLocked()
		s.mu.Unlock()
		if stop {
			s.publishTyping(false)
		}
		return
	}

	start := !s.typingSent
	s.typingSent = true
	if s.typingTimer != nil {
		s.typingTimer.Stop()
	}
	s.typingTimer = time.AfterFunc(s.typingWindow, s.typingExpired)
	s.mu.Unlock()

	if start {
		s.publishTyping(true)
	}
}

// typingExpired ends a keystroke burst after the debounce window.
func (s *Session) typingExpired() {
	s.mu.Lock()
	if !s.typingSent || s.state != StateReady {
		s.mu.Unlock()
		return
	}
	s.typingSent = false
	s.typingTimer = nil
	s.mu.Unlock()
	s.publishTyping(false)
}

// cancelTypingLocked stops the timer and reports whether a stop broadcast is
// still owed. Caller holds the lock.
func (s *Session) cancelTypingLocked() bool {
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	if s.typingSent {
		s.typingSent = false
		return true
	}
	return false
}

// publishTyping pushes a typing broadcast; failures are logged and dropped.
func (s *Session) publishTyping(isTyping bool) {
	ev := TypingStateChanged{SenderID: s.self, IsTyping: isTyping}
	if err := s.bus.Publish(ChannelKey(s.self, s.peer), ev); err != nil {
		s.log.Debug().Err(err).Bool("is_typing", isTyping).Msg("typing broadcast dropped")
	}
}

// handleEvent is the bus callback for the conversation channel. The bus gives
// no ordering guarantee between a typing broadcast and a subsequent insert
// from the same peer, so no such assumption is made here.
func (s *Session) handleEvent(ev Event) {
	switch e := ev.(type) {
	case MessageInserted:
		// Echoes of our own inserts come back on the shared channel.
		if e.Message.SenderID != s.peer {
			return
		}
		s.mu.Lock()
		if s.state != StateReady {
			s.mu.Unlock()
			return
		}
		if pos, ok := s.byID[e.Message.ID]; ok {
			// At-least-once redelivery: replace, never append.
			s.messages[pos] = e.Message
		} else {
			s.insertLocked(e.Message)
		}
		s.mu.Unlock()
		s.emit(ev)
		// Live receipts are marked read immediately, one by one; the minor
		// inefficiency keeps "seen" semantics prompt.
		s.markRead([]string{e.Message.ID})

	case MessageUpdated:
		s.mu.Lock()
		if s.state != StateReady {
			s.mu.Unlock()
			return
		}
		pos, ok := s.byID[e.Message.ID]
		if ok {
			s.messages[pos] = e.Message
		}
		s.mu.Unlock()
		if ok {
			s.emit(ev)
		}

	case TypingStateChanged:
		if e.SenderID != s.peer {
			return
		}
		// No debounce on the receiving side; reflect immediately.
		s.mu.Lock()
		changed := s.peerTyping != e.IsTyping
		s.peerTyping = e.IsTyping
		s.mu.Unlock()
		if changed {
			s.emit(ev)
		}
	}
}

// emit forwards an event to the presentation sink, if any.
func (s *Session) emit(ev Event) {
	if s.notify != nil {
		s.notify(ev)
	}
}

// markRead marks the given messages read by self, folding in any earlier
// failures. A failure is logged and queued for retry on the next event; it
// never blocks message display.
func (s *Session) markRead(ids []string) {
	s.mu.Lock()
	for id := range s.pendingRead {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	if len(ids) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.sendTimeout)
	_, err := s.store.MarkRead(ctx, ids, s.self)
	cancel()

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		for _, id := range ids {
			s.pendingRead[id] = struct{}{}
		}
		s.log.Warn().Err(err).Int("count", len(ids)).Msg("mark read failed, will retry")
		return
	}
	for _, id := range ids {
		delete(s.pendingRead, id)
	}
}

// Close tears the session down: unsubscribes the channel and cancels the
// typing timer. Safe to call multiple times.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	sub := s.sub
	s.sub = nil
	if s.typingTimer != nil {
		s.typingTimer.Stop()
		s.typingTimer = nil
	}
	s.typingSent = false
	s.mu.Unlock()

	if sub != nil {
		sub.Close()
	}
	s.log.Debug().Msg("conversation closed")
}

// State returns the current lifecycle phase.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Messages returns a copy of the ordered message list.
func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// PeerTyping reports whether the peer is currently typing.
func (s *Session) PeerTyping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerTyping
}

// Draft returns the locally recorded draft text.
func (s *Session) Draft() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// insertLocked places m at its timestamp-ordered position: before the first
// strictly later entry, i.e. after any entries sharing its timestamp. Ties
// therefore keep local insertion order (stable ordering). Caller holds the
// lock and has verified the id is not present.
func (s *Session) insertLocked(m domain.Message) {
	pos := sort.Search(len(s.messages), func(i int) bool {
		return s.messages[i].Timestamp.After(m.Timestamp)
	})
	s.messages = append(s.messages, domain.Message{})
	copy(s.messages[pos+1:], s.messages[pos:])
	s.messages[pos] = m
	s.reindexLocked(pos)
}

// removeLocked deletes the message with the given id, if present.
func (s *Session) removeLocked(id string) {
	pos, ok := s.byID[id]
	if !ok {
		return
	}
	delete(s.byID, id)
	s.messages = append(s.messages[:pos], s.messages[pos+1:]...)
	s.reindexLocked(pos)
}

// reindexLocked rebuilds byID from position from onwards.
func (s *Session) reindexLocked(from int) {
	for i := from; i < len(s.messages); i++ {
		s.byID[s.messages[i].ID] = i
	}
}
