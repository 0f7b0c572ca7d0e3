// internal/app/features/home/handler.go
package home

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/authstate"
	"go.uber.org/zap"
)

// Handler serves the portal root.
type Handler struct {
	Log *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET / – portal root                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// ServeRoot reports the caller's auth snapshot. It runs behind
// auth.RequireSignedIn.
func (h *Handler) ServeRoot(w http.ResponseWriter, r *http.Request) {
	u, _ := auth.CurrentUser(r)
	snap := authstate.FromSession(u)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		h.Log.Warn("home: encode snapshot", zap.Error(err))
	}
}
