package transport

import (
	"net/http"

	"github.com/maxpert/feedwire/telemetry"
)

// IntervalPoll answers immediately with the delta since the request cursor.
// It keeps no server-side state; clients reschedule with the returned cursor.
func (h *Handlers) IntervalPoll(w http.ResponseWriter, r *http.Request) {
	cursor := ParseCursor(r.URL.Query().Get(CursorParam))
	telemetry.SubscriptionsOpenedTotal.With(telemetry.TransportIntervalPoll).Inc()

	h.respond(w, telemetry.TransportIntervalPoll, h.log.SliceFrom(cursor))
}
