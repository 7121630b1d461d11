package admin

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// RegisterRoutes mounts the admin API under /admin
func RegisterRoutes(r chi.Router, handlers *AdminHandlers) {
	r.Route("/admin", func(r chi.Router) {
		r.Get("/stats", handlers.handleStats)
		r.Get("/records", handlers.handleRecords)
	})

	log.Info().Msg("Admin endpoints enabled at /admin/*")
}
