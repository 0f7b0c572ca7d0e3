// internal/app/features/authapi/routes.go
package authapi

import (
	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes returns a subrouter mounted at /api/auth. The session endpoint is
// mounted separately.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()

	r.Post("/register", h.ServeRegister)
	r.Post("/login", h.ServeLogin)
	r.Post("/forgot-password", h.ServeForgotPassword)
	r.Post("/logout", h.ServeLogout)

	r.Get("/providers/{provider}", h.ServeProviderBegin)
	r.Get("/providers/{provider}/callback", h.ServeProviderCallback)

	r.Get("/config", h.ServeConfig)
	r.With(auth.RequireSignedIn).Get("/me", h.ServeMe)

	return r
}
