// internal/app/features/authapi/me.go
package authapi

import (
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/authstate"
)

// ServeMe handles GET /api/auth/me. It runs behind auth.RequireSignedIn and
// reports the caller in the observer's snapshot shape.
func (h *Handler) ServeMe(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	writeJSON(w, http.StatusOK, authstate.FromSession(u))
}

// ServeConfig handles GET /api/auth/config.
func (h *Handler) ServeConfig(w http.ResponseWriter, r *http.Request) {
	cfg := h.Public
	cfg.Providers = []string{}
	for _, p := range h.Providers.Configured() {
		cfg.Providers = append(cfg.Providers, p.String())
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, cfg)
}
