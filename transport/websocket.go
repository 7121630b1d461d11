package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var errMissingCursor = errors.New("message has no lastUserIndex")

// CursorMessage is the only message a WebSocket client sends
type CursorMessage struct {
	LastUserIndex int `json:"lastUserIndex"`
}

// parseCursorMessage accepts numeric or string cursors and normalizes them
// the same way as the query parameter of the HTTP adapters.
func parseCursorMessage(data []byte) (int, error) {
	var msg struct {
		LastUserIndex json.RawMessage `json:"lastUserIndex"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		return 0, err
	}
	if len(msg.LastUserIndex) == 0 || string(msg.LastUserIndex) == "null" {
		return 0, errMissingCursor
	}
	return ParseCursor(strings.Trim(string(msg.LastUserIndex), `"`)), nil
}

// WebSocket upgrades the connection and pushes `{users,last}` on every
// broadcast. The client may reset its cursor at any time by sending
// `{lastUserIndex}`; the last message received wins. When the URL carries no
// cursor, pushes wait for the first client message (or the handshake
// timeout, after which the cursor is 0).
func (h *Handlers) WebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	sub := h.notifier.Subscribe()
	defer sub.Close()
	telemetry.SubscriptionsOpenedTotal.With(telemetry.TransportBidiPush).Inc()

	query := r.URL.Query()
	var cursor atomic.Int64
	cursor.Store(int64(ParseCursor(query.Get(CursorParam))))

	logger := log.With().Str("transport", telemetry.TransportBidiPush).Str("remote", r.RemoteAddr).Logger()
	logger.Debug().Msg("WebSocket connected")

	// The request context is detached from hijacked connections on server
	// shutdown, so the connection gets its own.
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	hello := make(chan struct{})
	readerDone := make(chan struct{})
	go func() {
		defer close(readerDone)
		defer cancel()
		h.readCursors(ctx, conn, &cursor, hello, logger)
	}()

	// Broadcasts during the handshake stay pending on the subscription
	signals := sub.C()
	var greeted <-chan struct{}
	var handshake <-chan time.Time
	if !query.Has(CursorParam) {
		timer := time.NewTimer(h.handshakeTimeout)
		defer timer.Stop()
		signals, greeted, handshake = nil, hello, timer.C
	}

	for {
		select {
		case <-ctx.Done():
			logger.Debug().Int64("cursor", cursor.Load()).Msg("WebSocket disconnected")
			<-readerDone
			return
		case <-h.shutdown:
			conn.Close(websocket.StatusGoingAway, "server shutting down")
			<-readerDone
			return
		case <-greeted:
			signals, greeted, handshake = sub.C(), nil, nil
			continue
		case <-handshake:
			logger.Debug().Msg("No cursor message received, pushing from 0")
			signals, greeted, handshake = sub.C(), nil, nil
			continue
		case <-signals:
		}

		from := cursor.Load()
		delta := h.log.SliceFrom(int(from))
		body, err := h.cache.encode(delta)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode delta")
			conn.Close(websocket.StatusInternalError, "encode failure")
			<-readerDone
			return
		}

		wctx, wcancel := context.WithTimeout(ctx, h.writeTimeout)
		err = conn.Write(wctx, websocket.MessageText, body)
		wcancel()
		if err != nil {
			logger.Debug().Err(err).Int64("cursor", from).Msg("WebSocket write failed")
			cancel()
			<-readerDone
			return
		}

		telemetry.RecordDelivery(telemetry.TransportBidiPush, len(delta.Users))
		// A cursor sent by the client during the write takes precedence
		cursor.CompareAndSwap(from, int64(delta.Last))
	}
}

// readCursors applies client cursor messages until the connection ends.
// hello is closed once the first message, valid or not, has been handled.
func (h *Handlers) readCursors(ctx context.Context, conn *websocket.Conn, cursor *atomic.Int64, hello chan<- struct{}, logger zerolog.Logger) {
	greet := sync.OnceFunc(func() { close(hello) })
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != -1 {
				logger.Debug().Int("status", int(status)).Msg("WebSocket closed by client")
			} else if ctx.Err() == nil {
				logger.Debug().Err(err).Msg("WebSocket read failed")
			}
			return
		}

		next, err := parseCursorMessage(data)
		if err != nil {
			telemetry.MalformedMessagesTotal.Inc()
			logger.Warn().Err(err).Int("size", len(data)).Msg("Ignoring malformed client message")
			greet()
			continue
		}

		cursor.Store(int64(next))
		greet()
		logger.Debug().Int("cursor", next).Msg("Client cursor updated")
	}
}
