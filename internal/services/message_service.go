// Package services – MessageService
//
// This file implements MessageService, the application-level component that
// owns message persistence for 1:1 conversations. It validates and normalizes
// text, appends messages with server-assigned identity, applies read-receipt
// mutations, and publishes the corresponding realtime events to the bus after
// each successful write. Publishing after persistence is what lets two
// independently connected participants (or two devices of one participant)
// converge on the same conversation state.
//
// MessageService satisfies the chat.Store port; the chat.Session controller
// is its main consumer.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include the participant identifiers.
package services

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/conectapro/chat-backend/internal/chat"
	"github.com/conectapro/chat-backend/internal/domain"
	"github.com/conectapro/chat-backend/internal/repo"
)

// MessageService coordinates message persistence and realtime fan-out.
type MessageService struct {
	DB  *gorm.DB
	Bus chat.Bus

	// MaxTextRunes caps message length in runes; messages over the cap are
	// rejected with ErrMessageTooLong. 0 disables the cap (no persisted
	// length cap exists in the product, so this is a deployment guard only).
	MaxTextRunes int
}

// History returns every message between the pair, ascending by timestamp
// (id as tie-break). Unbounded; see DESIGN.md on pagination.
func (s *MessageService) History(ctx context.Context, userA, userB string) ([]domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "History",
		trace.WithAttributes(
			attribute.String("user.a", userA),
			attribute.String("user.b", userB),
		),
	)
	defer span.End()

	return repo.ListMessagesBetween(ctx, s.DB, userA, userB)
}

// Append normalizes and persists a new message, then publishes a
// MessageInserted event on the pair's channel. The publish is best-effort:
// the write already succeeded, and a subscriber that misses the event
// recovers through a history refetch.
func (s *MessageService) Append(ctx context.Context, senderID, receiverID, text string) (domain.Message, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Append",
		trace.WithAttributes(
			attribute.String("sender.id", senderID),
			attribute.String("receiver.id", receiverID),
		),
	)
	defer span.End()

	if senderID == receiverID {
		return domain.Message{}, ErrSelfMessage
	}
	text = chat.NormalizeText(text)
	if text == "" {
		return domain.Message{}, ErrEmptyMessage
	}
	if s.MaxTextRunes > 0 && utf8.RuneCountInString(text) > s.MaxTextRunes {
		return domain.Message{}, ErrMessageTooLong
	}

	m, err := repo.InsertMessage(ctx, s.DB, senderID, receiverID, text)
	if err != nil {
		return domain.Message{}, err
	}

	if s.Bus != nil {
		if err := s.Bus.Publish(chat.ChannelKey(senderID, receiverID), chat.MessageInserted{Message: *m}); err != nil {
			log.Warn().Err(err).Str("message_id", m.ID).Msg("insert event not published")
		}
	}
	return *m, nil
}

// MarkRead adds readerID to read_by on the given messages and publishes a
// MessageUpdated event for each row that actually changed, so the sender
// sees their message become read. Idempotent: a repeat call updates zero
// rows and publishes nothing.
func (s *MessageService) MarkRead(ctx context.Context, messageIDs []string, readerID string) (int, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("reader.id", readerID),
			attribute.Int("requested", len(messageIDs)),
		),
	)
	defer span.End()

	updated, err := repo.MarkMessagesRead(ctx, s.DB, messageIDs, readerID)
	if err != nil {
		return 0, err
	}

	if s.Bus != nil {
		for i := range updated {
			m := updated[i]
			key := chat.ChannelKey(m.SenderID, m.ReceiverID)
			if err := s.Bus.Publish(key, chat.MessageUpdated{Message: m}); err != nil {
				log.Warn().Err(err).Str("message_id", m.ID).Msg("update event not published")
			}
		}
	}
	return len(updated), nil
}
