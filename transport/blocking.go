package transport

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/maxpert/feedwire/telemetry"
	"github.com/rs/zerolog/log"
)

var errLongPollExpired = errors.New("long-poll timeout expired")

// BlockingPoll holds the request until the next broadcast and answers with
// the delta computed at that moment. Exactly one response is sent; the
// client re-issues the request to keep listening.
func (h *Handlers) BlockingPoll(w http.ResponseWriter, r *http.Request) {
	cursor := ParseCursor(r.URL.Query().Get(CursorParam))
	telemetry.SubscriptionsOpenedTotal.With(telemetry.TransportBlockingPoll).Inc()

	ctx := r.Context()
	if h.longPollTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, h.longPollTimeout, errLongPollExpired)
		defer cancel()
	}

	waiter := h.notifier.Once()
	defer waiter.Cancel(nil)

	start := time.Now()
	_, err := waiter.Wait(ctx)
	telemetry.BlockingPollWaitSeconds.Observe(time.Since(start).Seconds())

	if err != nil && !errors.Is(err, errLongPollExpired) {
		// Client went away or the server is stopping. A departed client
		// never sees this status.
		telemetry.BlockingPollAbandonedTotal.Inc()
		log.Debug().
			Err(err).
			Int("cursor", cursor).
			Str("remote", r.RemoteAddr).
			Msg("Long-poll request abandoned")
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	h.respond(w, telemetry.TransportBlockingPoll, h.log.SliceFrom(cursor))
}
