// internal/app/features/authapi/providers.go
package authapi

import (
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/store/oauthstate"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/navigation"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const (
	stateCookieName = "vc_oauth_state"
	stateCookiePath = "/api/auth/providers"
	stateCookieTTL  = oauthstate.TTL
)

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/providers/{provider}                                           |
| Records a pending sign-in and redirects to the provider's consent page.      |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeProviderBegin(w http.ResponseWriter, r *http.Request) {
	p, err := identity.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown provider"})
		return
	}

	returnTo := navigation.ReturnTo(r, h.Routes)
	remember := query.Get(r, "remember") != "false"

	pr, err := h.client(w).BeginProviderSignIn(r.Context(), p, returnTo, remember)
	if err != nil {
		h.writeAuthError(w, err)
		return
	}

	encoded, err := h.stateCookie.Encode(stateCookieName, pr.State)
	if err != nil {
		h.Log.Error("encode oauth state cookie", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: identity.GenericMessage, Code: identity.CodeInternal})
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    encoded,
		Path:     stateCookiePath,
		MaxAge:   int(stateCookieTTL / time.Second),
		HttpOnly: true,
		Secure:   h.secure(),
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, pr.URL, http.StatusFound)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /api/auth/providers/{provider}/callback                                  |
| Completes the sign-in and sends the browser on to its destination. Failures |
| land on /login?error=<code>.                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeProviderCallback(w http.ResponseWriter, r *http.Request) {
	p, err := identity.ParseProvider(chi.URLParam(r, "provider"))
	if err != nil {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "unknown provider"})
		return
	}

	state := query.Get(r, "state")
	bound := h.boundState(r)
	h.clearStateCookie(w)

	if bound == "" || bound != state {
		h.Log.Warn("oauth callback state not bound to this browser", zap.String("provider", p.String()))
		h.Metrics.RecordSignIn(p.String(), identity.CodeInvalidState)
		h.Audit.ProviderSignIn(r, p, nil, identity.NewError("completeProviderSignIn", identity.CodeInvalidState, nil))
		h.redirectToLogin(w, r, identity.CodeInvalidState)
		return
	}

	res, err := h.client(w).CompleteProviderSignIn(r.Context(), p, state, query.Get(r, "code"), query.Get(r, "error"))
	if err != nil {
		h.Audit.ProviderSignIn(r, p, nil, err)
		h.Log.Info("federated sign-in failed", zap.String("provider", p.String()), zap.Error(err))
		h.redirectToLogin(w, r, identity.Code(err))
		return
	}

	h.Audit.ProviderSignIn(r, p, res.User, nil)
	dest := navigation.SafeReturnTo(res.ReturnTo, h.Routes, routes.DefaultHome)
	http.Redirect(w, r, dest, http.StatusSeeOther)
}

// boundState returns the state recorded in the binding cookie, or "".
func (h *Handler) boundState(r *http.Request) string {
	ck, err := r.Cookie(stateCookieName)
	if err != nil {
		return ""
	}
	var state string
	if err := h.stateCookie.Decode(stateCookieName, ck.Value, &state); err != nil {
		h.Log.Debug("oauth state cookie rejected", zap.Error(err))
		return ""
	}
	return state
}

func (h *Handler) clearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    "",
		Path:     stateCookiePath,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.secure(),
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *Handler) redirectToLogin(w http.ResponseWriter, r *http.Request, code string) {
	if code == "" {
		code = identity.CodeInternal
	}
	http.Redirect(w, r, routes.LoginPath+"?error="+url.QueryEscape(code), http.StatusSeeOther)
}

func (h *Handler) secure() bool {
	return h.Issuer != nil && h.Issuer.Cookies.Secure
}
