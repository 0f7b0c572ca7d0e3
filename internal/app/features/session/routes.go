// internal/app/features/session/routes.go
package session

import "github.com/go-chi/chi/v5"

// Routes returns a subrouter mounted at /api/auth/session.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeCreate)
	r.Delete("/", h.ServeDelete)
	return r
}
