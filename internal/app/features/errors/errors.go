// internal/app/features/errors/errors.go
package errors

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
)

// pageData is the body of every error page.
type pageData struct {
	Status     int    `json:"status"`
	Title      string `json:"title"`
	Message    string `json:"message"`
	BackURL    string `json:"backURL"`
	IsLoggedIn bool   `json:"isLoggedIn"`
	UserName   string `json:"userName,omitempty"`
}

// Handler is the errors feature handler.
// No DB needed; it only writes JSON.
type Handler struct{}

// NewHandler constructs an errors Handler.
func NewHandler() *Handler {
	return &Handler{}
}

// Unauthorized handles GET /401.
func (h *Handler) Unauthorized(w http.ResponseWriter, r *http.Request) {
	render(w, r, pageData{
		Status:  http.StatusUnauthorized,
		Title:   "Sign in required",
		Message: "Please sign in to continue.",
		BackURL: routes.LoginPath,
	})
}

// Forbidden handles GET /403.
func (h *Handler) Forbidden(w http.ResponseWriter, r *http.Request) {
	render(w, r, pageData{
		Status:  http.StatusForbidden,
		Title:   "Access denied",
		Message: "You don't have permission to view this page.",
		BackURL: routes.DefaultHome,
	})
}

// NotFound handles GET /404 and is the router's fallback.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	render(w, r, pageData{
		Status:  http.StatusNotFound,
		Title:   "Page not found",
		Message: "The page you are looking for does not exist.",
		BackURL: routes.DefaultHome,
	})
}

// Unavailable handles GET /503.
func (h *Handler) Unavailable(w http.ResponseWriter, r *http.Request) {
	render(w, r, pageData{
		Status:  http.StatusServiceUnavailable,
		Title:   "Service unavailable",
		Message: "The portal is temporarily unavailable. Please try again shortly.",
		BackURL: routes.DefaultHome,
	})
}

// Error handles GET /error.
func (h *Handler) Error(w http.ResponseWriter, r *http.Request) {
	render(w, r, pageData{
		Status:  http.StatusInternalServerError,
		Title:   "Something went wrong",
		Message: "An error occurred. Please try again",
		BackURL: routes.DefaultHome,
	})
}

func render(w http.ResponseWriter, r *http.Request, data pageData) {
	if u, ok := auth.CurrentUser(r); ok && u != nil {
		data.IsLoggedIn = true
		data.UserName = u.Name
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(data.Status)
	_ = json.NewEncoder(w).Encode(data)
}
