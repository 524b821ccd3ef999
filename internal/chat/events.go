package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/conectapro/chat-backend/internal/domain"
)

// Event is the closed set of realtime notifications flowing through a
// conversation channel. Payloads coming off the wire are untyped JSON; they
// are validated and narrowed to one of these variants at the adapter boundary
// (DecodeEvent) before they ever reach a Session.
type Event interface {
	isEvent()
}

// MessageInserted announces a newly persisted message. Delivery is
// at-least-once; consumers dedupe by message id, replacing rather than
// appending on a duplicate.
type MessageInserted struct {
	Message domain.Message
}

// MessageUpdated announces a change to an existing message, in practice a
// grown read_by set. Consumers replace the matching message by id in place.
type MessageUpdated struct {
	Message domain.Message
}

// TypingStateChanged is an ephemeral presence broadcast. It is never
// persisted and has no delivery guarantee; a missed broadcast leaves the
// indicator stale for at most the debounce window.
type TypingStateChanged struct {
	SenderID string
	IsTyping bool
}

func (MessageInserted) isEvent()    {}
func (MessageUpdated) isEvent()     {}
func (TypingStateChanged) isEvent() {}

// Wire type tags.
const (
	eventTypeInserted = "message_inserted"
	eventTypeUpdated  = "message_updated"
	eventTypeTyping   = "typing"
)

// ErrUnknownEvent is returned by DecodeEvent for a type tag outside the
// closed set.
var ErrUnknownEvent = errors.New("unknown event type")

// ErrInvalidEvent is returned by DecodeEvent when a payload is missing
// required fields for its type.
var ErrInvalidEvent = errors.New("invalid event payload")

// envelope is the JSON frame shared by EncodeEvent and DecodeEvent.
type envelope struct {
	Type     string          `json:"type"`
	Message  *domain.Message `json:"message,omitempty"`
	SenderID string          `json:"sender_id,omitempty"`
	IsTyping bool            `json:"is_typing,omitempty"`
}

// EncodeEvent serializes an event into its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	var env envelope
	switch e := ev.(type) {
	case MessageInserted:
		m := e.Message
		env = envelope{Type: eventTypeInserted, Message: &m}
	case MessageUpdated:
		m := e.Message
		env = envelope{Type: eventTypeUpdated, Message: &m}
	case TypingStateChanged:
		env = envelope{Type: eventTypeTyping, SenderID: e.SenderID, IsTyping: e.IsTyping}
	default:
		return nil, fmt.Errorf("%w: %T", ErrUnknownEvent, ev)
	}
	return json.Marshal(env)
}

// DecodeEvent parses and validates a wire envelope, returning exactly one of
// the closed event variants. Malformed or unknown payloads never reach the
// Session.
func DecodeEvent(raw []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEvent, err)
	}
	switch env.Type {
	case eventTypeInserted:
		if env.Message == nil || env.Message.ID == "" || env.Message.SenderID == "" {
			return nil, fmt.Errorf("%w: %s without message", ErrInvalidEvent, env.Type)
		}
		return MessageInserted{Message: *env.Message}, nil
	case eventTypeUpdated:
		if env.Message == nil || env.Message.ID == "" {
			return nil, fmt.Errorf("%w: %s without message", ErrInvalidEvent, env.Type)
		}
		return MessageUpdated{Message: *env.Message}, nil
	case eventTypeTyping:
		if env.SenderID == "" {
			return nil, fmt.Errorf("%w: typing without sender", ErrInvalidEvent)
		}
		return TypingStateChanged{SenderID: env.SenderID, IsTyping: env.IsTyping}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, env.Type)
	}
}
