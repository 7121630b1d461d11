package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/maxpert/feedwire/feed"
	"github.com/maxpert/feedwire/notify"
	"github.com/rs/zerolog/log"
)

const (
	defaultLimit = 256
	maxLimit     = 1024
)

// AdminHandlers serves read-only introspection of the feed
type AdminHandlers struct {
	log        *feed.Log
	notifier   *notify.Notifier
	instanceID string
}

// NewAdminHandlers creates a new AdminHandlers instance
func NewAdminHandlers(l *feed.Log, n *notify.Notifier, instanceID string) *AdminHandlers {
	return &AdminHandlers{
		log:        l,
		notifier:   n,
		instanceID: instanceID,
	}
}

// writeJSONResponse writes a successful JSON response
func writeJSONResponse(w http.ResponseWriter, data interface{}, hasMore bool, lastKey string) {
	response := map[string]interface{}{
		"data": data,
	}

	if hasMore || lastKey != "" {
		response["has_more"] = hasMore
		if lastKey != "" {
			response["last_key"] = lastKey
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode JSON response")
	}
}

// writeErrorResponse writes an error JSON response
func writeErrorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	response := map[string]interface{}{
		"error": message,
	}
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().Err(err).Msg("Failed to encode error response")
	}
}

// parseLimit parses limit parameter with defaults
func parseLimit(r *http.Request) (int, error) {
	limitStr := r.URL.Query().Get("limit")
	if limitStr == "" {
		return defaultLimit, nil
	}

	limit, err := strconv.Atoi(limitStr)
	if err != nil {
		return 0, fmt.Errorf("invalid limit parameter: %w", err)
	}

	if limit < 1 {
		return 0, fmt.Errorf("limit must be positive")
	}

	if limit > maxLimit {
		return 0, fmt.Errorf("limit cannot exceed %d", maxLimit)
	}

	return limit, nil
}

// parseFrom parses the from position for pagination
func parseFrom(r *http.Request) (int, error) {
	fromStr := r.URL.Query().Get("from")
	if fromStr == "" {
		return 0, nil
	}

	from, err := strconv.Atoi(fromStr)
	if err != nil {
		return 0, fmt.Errorf("invalid from parameter: %w", err)
	}
	if from < 0 {
		return 0, fmt.Errorf("from must not be negative")
	}
	return from, nil
}
