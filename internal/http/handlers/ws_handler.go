// WebSocket chat endpoint.
//
// This file attaches a live chat.Session to a WebSocket connection:
//   - GET /conversations/{peer}/ws
//
// One Session exists per connection. The handler opens it (gate check,
// history load, bus subscription), pushes a "ready" snapshot, then forwards
// frames both ways: client "send"/"typing" frames drive Session operations,
// and peer-originated session events stream back as the same envelopes the
// event bus uses (see chat.EncodeEvent).
//
// The gorilla/websocket connection permits one concurrent reader and one
// writer; all writes therefore flow through a single outbound queue drained
// by a dedicated goroutine, and a full queue drops the frame (the client
// recovers state with a history refetch, same as a bus gap).
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/conectapro/chat-backend/internal/chat"
	"github.com/conectapro/chat-backend/internal/domain"
	"github.com/conectapro/chat-backend/internal/http/middleware"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 54 * time.Second // must be < wsPongWait
	wsQueueSize  = 64
)

var wsConnections = promauto.NewGauge(prometheus.GaugeOpts{
	Name: "chat_ws_connections",
	Help: "Open WebSocket chat connections.",
})

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Browser origin enforcement happens at the CORS layer; the upgrade
	// itself accepts any origin so non-browser clients can attach.
	CheckOrigin: func(*http.Request) bool { return true },
}

// wsClientFrame is what the connected client may send.
type wsClientFrame struct {
	Type string `json:"type"` // "send" | "typing"
	Text string `json:"text"`
}

// wsServerFrame covers the non-event frames pushed to the client. Event
// frames (message_inserted, message_updated, typing) use chat.EncodeEvent.
type wsServerFrame struct {
	Type       string           `json:"type"` // "ready" | "ack" | "error"
	Messages   []domain.Message `json:"messages,omitempty"`
	PeerTyping bool             `json:"peer_typing,omitempty"`
	Message    *domain.Message  `json:"message,omitempty"`
	Code       string           `json:"code,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Connect upgrades the request and runs a chat session until either side
// disconnects.
func (h *Handlers) Connect(c *gin.Context) {
	self, okAuth := currentUser(c)
	if !okAuth {
		fail(c, http.StatusUnauthorized, ErrCodeUnauthorized, "authentication required")
		return
	}
	peer := strings.TrimSpace(c.Param("peer"))
	if peer == "" || peer == self {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid peer")
		return
	}

	lg := middleware.LoggerFrom(c).With().Str("ws_self", self).Str("ws_peer", peer).Logger()

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		lg.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	wsConnections.Inc()
	defer wsConnections.Dec()
	defer conn.Close()

	// The outbound queue is fed from this goroutine and from bus callbacks via
	// Notify. Those callbacks can still be in flight when the handler returns,
	// so enqueue checks a closed flag under the same mutex that guards the
	// close; a bare close(out) would let a racing event panic the hub's drain
	// goroutine, where no recovery middleware applies.
	out := make(chan []byte, wsQueueSize)
	var outMu sync.Mutex
	outClosed := false
	enqueue := func(frame []byte) {
		outMu.Lock()
		defer outMu.Unlock()
		if outClosed {
			return
		}
		select {
		case out <- frame:
		default:
			lg.Warn().Msg("websocket outbound queue full, frame dropped")
		}
	}

	session := chat.NewSession(chat.SessionConfig{
		SelfID:       self,
		PeerID:       peer,
		Gate:         h.unlockSvc,
		Store:        h.msgSvc,
		Bus:          h.bus,
		TypingWindow: h.typingWindow,
		SendTimeout:  h.sendTimeout,
		Logger:       lg,
		Notify: func(ev chat.Event) {
			if raw, err := chat.EncodeEvent(ev); err == nil {
				enqueue(raw)
			}
		},
	})

	// Writer: sole owner of conn writes, with keepalive pings.
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(wsPingPeriod)
		defer ticker.Stop()
		for {
			select {
			case frame, okCh := <-out:
				if !okCh {
					return
				}
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()
	// Teardown order: close the session first so the bus subscription is gone
	// before the queue closes, then mark the queue closed under the mutex so
	// a straggling Notify cannot hit a closed channel, then wait for the
	// writer to drain before the deferred conn.Close (queued frames, the
	// open-failure error frame in particular, still reach the client).
	defer func() {
		session.Close()
		outMu.Lock()
		outClosed = true
		close(out)
		outMu.Unlock()
		<-done
	}()

	if err := session.Open(c.Request.Context()); err != nil {
		enqueue(marshalError(openErrorCode(err), err))
		return
	}

	ready, _ := json.Marshal(wsServerFrame{
		Type:       "ready",
		Messages:   session.Messages(),
		PeerTyping: session.PeerTyping(),
	})
	enqueue(ready)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				lg.Debug().Err(err).Msg("websocket read ended")
			}
			return
		}

		var frame wsClientFrame
		if err := json.Unmarshal(raw, &frame); err != nil {
			enqueue(marshalError(ErrCodeBadRequest, errors.New("malformed frame")))
			continue
		}

		switch frame.Type {
		case "typing":
			session.SetTypingText(frame.Text)
		case "send":
			m, err := session.Send(c.Request.Context(), frame.Text)
			if err != nil {
				enqueue(marshalError(sendErrorCode(err), err))
				continue
			}
			ack, _ := json.Marshal(wsServerFrame{Type: "ack", Message: &m})
			enqueue(ack)
		default:
			enqueue(marshalError(ErrCodeBadRequest, errors.New("unknown frame type")))
		}
	}
}

// openErrorCode maps session open failures onto the API error taxonomy.
func openErrorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrAccessDenied):
		return ErrCodeForbidden
	case errors.Is(err, chat.ErrAccessUndetermined):
		return ErrCodeAccessUndetermined
	default:
		return ErrCodeInternal
	}
}

// sendErrorCode maps send failures onto the API error taxonomy.
func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, chat.ErrBlankMessage):
		return ErrCodeBadRequest
	case errors.Is(err, chat.ErrNotReady), errors.Is(err, chat.ErrClosed):
		return ErrCodeConflict
	default:
		return ErrCodeSendFailed
	}
}

// marshalError builds an error frame; marshalling a flat struct cannot fail.
func marshalError(code string, err error) []byte {
	raw, _ := json.Marshal(wsServerFrame{Type: "error", Code: code, Error: err.Error()})
	return raw
}
