// internal/app/features/authapi/password.go
package authapi

import (
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/auth"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/ratelimit"
	"github.com/dalemusser/venturecamp/internal/domain/models"
	"go.uber.org/zap"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember *bool  `json:"remember,omitempty"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type userResponse struct {
	User    *identity.User  `json:"user"`
	Profile *models.Profile `json:"profile"`
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/register                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decode(r, &req); err != nil {
		h.writeAuthError(w, identity.NewError("signUp", identity.CodeInvalidEmail, err))
		return
	}

	c := h.client(w)
	u, err := c.SignUp(r.Context(), req.Email, req.Password, req.DisplayName)
	h.Audit.SignUp(r, req.Email, u, err)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	h.Log.Info("account created", zap.String("uid", u.UID))
	writeJSON(w, http.StatusOK, userResponse{User: u, Profile: c.GetUserProfile(r.Context(), u.UID)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/login                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	ip := ratelimit.ClientIP(r)
	if h.Limiter != nil && !h.Limiter.Allow(ip) {
		h.Metrics.RecordRateLimited("login")
		h.Audit.RateLimited(r, "login")
		h.writeAuthError(w, identity.NewError("signIn", identity.CodeTooManyRequests, nil))
		return
	}

	var req loginRequest
	if err := decode(r, &req); err != nil {
		h.writeAuthError(w, identity.NewError("signIn", identity.CodeInvalidEmail, err))
		return
	}
	remember := req.Remember == nil || *req.Remember

	c := h.client(w)
	u, err := c.SignIn(r.Context(), req.Email, req.Password, remember)
	h.Audit.SignIn(r, req.Email, u, err)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	if h.Limiter != nil {
		// Only failed attempts count against the caller.
		h.Limiter.Reset(ip)
	}

	writeJSON(w, http.StatusOK, userResponse{User: u, Profile: c.GetUserProfile(r.Context(), u.UID)})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/forgot-password                                               |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req emailRequest
	if err := decode(r, &req); err != nil {
		h.writeAuthError(w, identity.NewError("resetPassword", identity.CodeInvalidEmail, err))
		return
	}

	err := h.client(w).ResetPassword(r.Context(), req.Email)
	h.Audit.PasswordReset(r, req.Email, err)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /api/auth/logout                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	var uid string
	if su, ok := auth.CurrentUser(r); ok {
		uid = su.UID
	}
	h.client(w).Logout(r.Context())
	h.Audit.Logout(r, uid)
	writeJSON(w, http.StatusOK, successResponse{Success: true})
}
