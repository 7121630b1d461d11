package transport

import (
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultWriteTimeout bounds a single push frame write
	DefaultWriteTimeout = 5 * time.Second

	// DefaultHandshakeTimeout bounds the wait for a WebSocket client's first
	// cursor message
	DefaultHandshakeTimeout = time.Second
)

// Config configures the transport handlers
type Config struct {
	Log              *feed.Log
	Notifier         *notify.Notifier
	LongPollTimeout  time.Duration // 0 = hold until the next broadcast
	WriteTimeout     time.Duration // Per-frame deadline for push transports
	HandshakeTimeout time.Duration // Wait for the first WebSocket cursor message when the URL has none
	OriginPatterns   []string      // WebSocket Origin hosts accepted in addition to same-origin
	CacheEntries     int           // Encoded delta cache size (0 = disabled)
}

// Handlers serves every transport adapter against one log and notifier
type Handlers struct {
	log              *feed.Log
	notifier         *notify.Notifier
	cache            *deltaCache
	longPollTimeout  time.Duration
	writeTimeout     time.Duration
	handshakeTimeout time.Duration
	originPatterns   []string

	// shutdown is closed to end every open push connection
	shutdown     chan struct{}
	shutdownOnce sync.Once
}

// NewHandlers creates transport handlers
func NewHandlers(config Config) (*Handlers, error) {
	if config.Log == nil {
		return nil, errors.New("record log is required")
	}
	if config.Notifier == nil {
		return nil, errors.New("notifier is required")
	}
	if config.LongPollTimeout < 0 {
		return nil, errors.New("long-poll timeout must be >= 0")
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = DefaultWriteTimeout
	}
	if config.HandshakeTimeout <= 0 {
		config.HandshakeTimeout = DefaultHandshakeTimeout
	}

	cache, err := newDeltaCache(config.CacheEntries)
	if err != nil {
		return nil, err
	}

	return &Handlers{
		log:              config.Log,
		notifier:         config.Notifier,
		cache:            cache,
		longPollTimeout:  config.LongPollTimeout,
		writeTimeout:     config.WriteTimeout,
		handshakeTimeout: config.HandshakeTimeout,
		originPatterns:   config.OriginPatterns,
		shutdown:         make(chan struct{}),
	}, nil
}

// Routes registers the HTTP adapters and the WebSocket endpoint
func (h *Handlers) Routes(r chi.Router) {
	r.Get(PathIntervalPoll, h.IntervalPoll)
	r.Get(PathBlockingPoll, h.BlockingPoll)
	r.Get(PathServerSentEvents, h.ServerSentEvents)
	r.Get(PathWebSocket, h.WebSocket)
}

// Shutdown ends open push connections. Blocking polls are released by
// their request contexts when the HTTP server shuts down.
func (h *Handlers) Shutdown() {
	h.shutdownOnce.Do(func() {
		close(h.shutdown)
	})
}

// respond encodes d and writes it as a single JSON response
func (h *Handlers) respond(w http.ResponseWriter, transport string, d feed.Delta) {
	body, err := h.cache.encode(d)
	if err != nil {
		log.Error().Err(err).Str("transport", transport).Msg("Failed to encode delta")
		http.Error(w, "failed to encode delta", http.StatusInternalServerError)
		return
	}

	writeJSON(w, body)
	telemetry.RecordDelivery(transport, len(d.Users))
}
