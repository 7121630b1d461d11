package admin

import "net/http"

// handleStats returns log and notifier statistics
func (h *AdminHandlers) handleStats(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"log_length":  h.log.Len(),
		"listeners":   h.notifier.Len(),
		"broadcasts":  h.notifier.Generation(),
		"instance_id": h.instanceID,
	}

	writeJSONResponse(w, response, false, "")
}
