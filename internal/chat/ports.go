package chat

import (
	"context"

	"github.com/conectapro/chat-backend/internal/domain"
)

// Gate decides whether two parties are permitted to exchange messages.
//
// Implementations must keep "no relation found" and "query failed" apart:
// (false, nil) is a denial, (false, err) is undetermined and retriable. The
// gate is consulted once, at conversation-open time; an open conversation is
// not torn down if the relation is closed concurrently by the other party.
type Gate interface {
	IsConversationActive(ctx context.Context, userA, userB string) (bool, error)
}

// Store is the append-only ordered message log between two parties.
type Store interface {
	// History returns every message between the pair, ascending by
	// timestamp. Unbounded; see the pagination note in DESIGN.md.
	History(ctx context.Context, userA, userB string) ([]domain.Message, error)

	// Append persists a new message with a server-assigned id and timestamp,
	// seeding read_by with the sender only.
	Append(ctx context.Context, senderID, receiverID, text string) (domain.Message, error)

	// MarkRead adds readerID to read_by on the given messages. Idempotent;
	// only rows whose receiver is readerID are touched. Returns the number
	// of rows actually updated.
	MarkRead(ctx context.Context, messageIDs []string, readerID string) (int, error)
}

// Subscription is a live attachment to a conversation channel.
type Subscription interface {
	// Close detaches the subscriber. Safe to call more than once.
	Close()
}

// Bus delivers conversation events. A single channel, named by ChannelKey,
// carries both durable row-change notifications and ephemeral typing
// broadcasts; the event type distinguishes them. Durable events are delivered
// at least once per attached subscriber, in publish order per channel; typing
// broadcasts are best effort.
type Bus interface {
	Subscribe(channelKey string, handler func(Event)) (Subscription, error)
	Publish(channelKey string, ev Event) error
}
