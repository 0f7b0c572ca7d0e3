package home

import (
	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.With(auth.RequireSignedIn).Get("/", h.ServeRoot)
	return r
}
