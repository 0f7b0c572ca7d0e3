// internal/app/features/session/handler.go
package session

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"go.uber.org/zap"
)

// Handler serves the session endpoint that turns an ID token into the
// server session cookie.
type Handler struct {
	Issuer *session.Issuer
	Log    *zap.Logger
}

// NewHandler constructs a session Handler.
func NewHandler(iss *session.Issuer, logger *zap.Logger) *Handler {
	return &Handler{Issuer: iss, Log: logger}
}

type createRequest struct {
	IDToken  string `json:"idToken"`
	Remember *bool  `json:"remember,omitempty"`
}

type result struct {
	Success bool   `json:"success,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ServeCreate handles POST /api/auth/session.
//
//	200 {"success":true}             cookie set
//	400 {"error":"ID token is required"}
//	401 {"error":"Invalid ID token"}
//	500 {"error":"Failed to create session"}
func (h *Handler) ServeCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(&req); err != nil || req.IDToken == "" {
		writeJSON(w, http.StatusBadRequest, result{Error: "ID token is required"})
		return
	}

	p := identity.Durable
	if req.Remember != nil && !*req.Remember {
		p = identity.SessionOnly
	}

	tok, err := h.Issuer.Issue(r.Context(), w, req.IDToken, p)
	switch {
	case err == nil:
		h.Log.Debug("session created", zap.String("uid", tok.UID), zap.String("persistence", p.String()))
		writeJSON(w, http.StatusOK, result{Success: true})
	case errors.Is(err, session.ErrMissingToken):
		writeJSON(w, http.StatusBadRequest, result{Error: "ID token is required"})
	case errors.Is(err, session.ErrInvalidToken):
		h.Log.Info("session: rejected ID token", zap.Error(err))
		writeJSON(w, http.StatusUnauthorized, result{Error: "Invalid ID token"})
	default:
		h.Log.Error("session: mint failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, result{Error: "Failed to create session"})
	}
}

// ServeDelete handles DELETE /api/auth/session.
func (h *Handler) ServeDelete(w http.ResponseWriter, r *http.Request) {
	h.Issuer.Cookies.Clear(w)
	writeJSON(w, http.StatusOK, result{Success: true})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
