package transport

import (
	"net/http"
	"time"

	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog/log"
)

var (
	sseDataPrefix = []byte("data: ")
	sseFrameEnd   = []byte("\n\n")
)

// ServerSentEvents keeps the response open and writes one
// `data: {users,last}` frame per broadcast, advancing its own cursor after
// each frame. No frame is sent on connect.
func (h *Handlers) ServerSentEvents(w http.ResponseWriter, r *http.Request) {
	cursor := ParseCursor(r.URL.Query().Get(CursorParam))
	rc := http.NewResponseController(w)

	sub := h.notifier.Subscribe()
	defer sub.Close()
	telemetry.SubscriptionsOpenedTotal.With(telemetry.TransportUniPush).Inc()

	header := w.Header()
	header.Set("Connection", "keep-alive")
	header.Set("Content-Type", "text/event-stream")
	header.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("Event stream does not support flushing")
		return
	}

	logger := log.With().Str("transport", telemetry.TransportUniPush).Str("remote", r.RemoteAddr).Logger()
	logger.Debug().Int("cursor", cursor).Msg("Event stream opened")

	for {
		select {
		case <-r.Context().Done():
			logger.Debug().Int("cursor", cursor).Msg("Event stream closed by client")
			return
		case <-h.shutdown:
			return
		case <-sub.C():
		}

		delta := h.log.SliceFrom(cursor)
		body, err := h.cache.encode(delta)
		if err != nil {
			logger.Error().Err(err).Msg("Failed to encode delta")
			return
		}

		// Deadline errors are ignored: not every writer supports them
		_ = rc.SetWriteDeadline(time.Now().Add(h.writeTimeout))
		if err := writeFrame(w, body); err != nil {
			logger.Debug().Err(err).Int("cursor", cursor).Msg("Event stream write failed")
			return
		}
		if err := rc.Flush(); err != nil {
			logger.Debug().Err(err).Int("cursor", cursor).Msg("Event stream flush failed")
			return
		}

		telemetry.RecordDelivery(telemetry.TransportUniPush, len(delta.Users))
		cursor = delta.Last
	}
}

func writeFrame(w http.ResponseWriter, body []byte) error {
	if _, err := w.Write(sseDataPrefix); err != nil {
		return err
	}
	if _, err := w.Write(body); err != nil {
		return err
	}
	_, err := w.Write(sseFrameEnd)
	return err
}
