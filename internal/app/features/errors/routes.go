// internal/app/features/errors/routes.go
package errors

import "github.com/go-chi/chi/v5"

// Mount registers the error pages on r and makes NotFound the fallback.
func Mount(r chi.Router, h *Handler) {
	r.Get("/401", h.Unauthorized)
	r.Get("/403", h.Forbidden)
	r.Get("/404", h.NotFound)
	r.Get("/503", h.Unavailable)
	r.Get("/error", h.Error)
	r.NotFound(h.NotFound)
}
