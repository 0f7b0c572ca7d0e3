// internal/app/features/authapi/handler.go

// Package authapi is the JSON surface a front end uses to sign up, sign in,
// reset a password, sign out and run federated sign-in. Every request gets
// its own identity client whose session sync writes the cookie onto the
// response being served.
package authapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/auditlog"
	"github.com/dalemusser/venturecamp/internal/app/system/authclient"
	"github.com/dalemusser/venturecamp/internal/app/system/federated"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/metrics"
	"github.com/dalemusser/venturecamp/internal/app/system/ratelimit"
	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
)

// PublicConfig is the identity client configuration a browser needs. None of
// it is secret.
type PublicConfig struct {
	APIKey            string   `json:"apiKey"`
	AuthDomain        string   `json:"authDomain"`
	ProjectID         string   `json:"projectId"`
	StorageBucket     string   `json:"storageBucket,omitempty"`
	MessagingSenderID string   `json:"messagingSenderId,omitempty"`
	AppID             string   `json:"appId,omitempty"`
	EmulatorHost      string   `json:"emulatorHost,omitempty"`
	Providers         []string `json:"providers"`
}

// Config wires a Handler.
type Config struct {
	Backend   identity.Backend
	Profiles  authclient.ProfileStore
	States    authclient.StateStore
	Providers *federated.Registry
	Issuer    *session.Issuer
	Policy    authclient.SessionPolicy
	Routes    *routes.Table      // nil means routes.Default()
	Limiter   *ratelimit.Limiter // nil disables sign-in rate limiting
	Public    PublicConfig
	Metrics   metrics.Recorder
	Audit     *auditlog.Logger // nil records nothing
	Log       *zap.Logger

	// StateKey signs the federated state binding cookie. Empty means a
	// random per-process key.
	StateKey []byte
}

// Handler serves /api/auth.
type Handler struct {
	Config

	// stateCookie binds a federated sign-in to the browser that began it.
	stateCookie *securecookie.SecureCookie
}

// NewHandler constructs the auth API handler.
func NewHandler(cfg Config) *Handler {
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Nop{}
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	if cfg.Routes == nil {
		cfg.Routes = routes.Default()
	}
	key := cfg.StateKey
	if len(key) == 0 {
		key = securecookie.GenerateRandomKey(32)
	}
	sc := securecookie.New(key, nil)
	sc.MaxAge(int(stateCookieTTL.Seconds()))
	return &Handler{Config: cfg, stateCookie: sc}
}

// client builds the identity client for one request.
func (h *Handler) client(w http.ResponseWriter) *authclient.Client {
	return authclient.New(authclient.Config{
		Backend:   h.Backend,
		Profiles:  h.Profiles,
		States:    h.States,
		Providers: h.Providers,
		Session:   session.ResponseSync{Issuer: h.Issuer, W: w},
		Policy:    h.Policy,
		Metrics:   h.Metrics,
		Log:       h.Log,
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| JSON helpers                                                                 |
*─────────────────────────────────────────────────────────────────────────────*/

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type successResponse struct {
	Success bool `json:"success"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decode reads a JSON body of at most 64 KiB.
func decode(r *http.Request, v any) error {
	return json.NewDecoder(io.LimitReader(r.Body, 64<<10)).Decode(v)
}

// writeAuthError maps err onto a status and the {"error","code"} body.
func (h *Handler) writeAuthError(w http.ResponseWriter, err error) {
	var ae *identity.AuthError
	if !errors.As(err, &ae) {
		h.Log.Error("auth api: unexpected error", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: identity.GenericMessage, Code: identity.CodeInternal})
		return
	}

	status := StatusFor(ae.Code)
	if status >= http.StatusInternalServerError {
		h.Log.Error("auth api: request failed", zap.String("code", ae.Code), zap.Error(err))
	} else {
		h.Log.Debug("auth api: request rejected", zap.String("code", ae.Code), zap.Error(err))
	}
	writeJSON(w, status, errorResponse{Error: ae.Message(), Code: ae.Code})
}

// StatusFor is the HTTP status for an auth error code.
func StatusFor(code string) int {
	switch code {
	case identity.CodeInvalidEmail,
		identity.CodeWeakPassword,
		identity.CodeInvalidDisplayName,
		identity.CodeOperationNotAllowed,
		identity.CodeInvalidState,
		identity.CodePopupClosed,
		identity.CodeRequiresRecentLogin:
		return http.StatusBadRequest
	case identity.CodeInvalidCredential,
		identity.CodeWrongPassword,
		identity.CodeUserNotFound,
		identity.CodeInvalidIDToken:
		return http.StatusUnauthorized
	case identity.CodeUserDisabled:
		return http.StatusForbidden
	case identity.CodeEmailInUse, identity.CodeAccountExists:
		return http.StatusConflict
	case identity.CodeTooManyRequests:
		return http.StatusTooManyRequests
	case identity.CodeNetworkFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
