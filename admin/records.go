package admin

import (
	"net/http"
	"strconv"

	"github.com/maxpert/feedwire/feed"
)

// recordEntry is a log record with its position
type recordEntry struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	LastName string `json:"lastName"`
}

// handleRecords pages through the log. last_key is the from value of the
// next page.
func (h *AdminHandlers) handleRecords(w http.ResponseWriter, r *http.Request) {
	from, err := parseFrom(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	limit, err := parseLimit(r)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	entries := make([]recordEntry, 0, limit)
	next := h.log.Range(from, limit, func(pos int, rec feed.Record) bool {
		entries = append(entries, recordEntry{Position: pos, Name: rec.Name, LastName: rec.LastName})
		return true
	})

	hasMore := next < h.log.Len()
	lastKey := ""
	if hasMore {
		lastKey = strconv.Itoa(next)
	}

	writeJSONResponse(w, entries, hasMore, lastKey)
}
