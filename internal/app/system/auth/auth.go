// internal/app/system/auth/auth.go

// Package auth resolves the signed-in user of a request from the session
// cookie and guards handlers by sign-in state and role.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/dalemusser/venturecamp/internal/app/system/navigation"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
	"github.com/dalemusser/venturecamp/internal/domain/models"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Current-User helper                                                        |
*─────────────────────────────────────────────────────────────────────────────*/

// SessionUser is what we inject into r.Context() once the session cookie has
// been verified.
type SessionUser struct {
	UID   string
	Name  string
	Email string
	Role  string

	// Profile is nil when none exists or it could not be loaded;
	// ProfileLoadFailed tells the two apart.
	Profile           *models.Profile
	ProfileLoadFailed bool
}

type ctxKey string

const currentUserKey ctxKey = "currentUser"

// CurrentUser returns the user & “found?” flag.
func CurrentUser(r *http.Request) (*SessionUser, bool) {
	u, ok := r.Context().Value(currentUserKey).(*SessionUser)
	return u, ok
}

// WithTestUser injects u directly, bypassing cookie verification.
func WithTestUser(r *http.Request, u *SessionUser) *http.Request {
	return withUser(r, u)
}

/*─────────────────────────────────────────────────────────────────────────────*
| Sessions                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

// ProfileGetter loads the profile for a UID. (nil, nil) means none exists.
type ProfileGetter interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
}

// Sessions verifies session cookies and loads the matching profile.
type Sessions struct {
	Issuer   *session.Issuer
	Profiles ProfileGetter
	Log      *zap.Logger
}

// NewSessions constructs Sessions. profiles may be nil.
func NewSessions(iss *session.Issuer, profiles ProfileGetter, logger *zap.Logger) *Sessions {
	return &Sessions{Issuer: iss, Profiles: profiles, Log: logger}
}

// LoadSessionUser injects the user into context if the request carries a
// valid session cookie. The profile is loaded best effort: a store failure
// still yields a signed-in user with the participant role.
func (s *Sessions) LoadSessionUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := s.Issuer.Verify(r.Context(), r)
		if err != nil {
			if !errors.Is(err, session.ErrNoSession) {
				s.Log.Debug("session cookie rejected", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}

		u := &SessionUser{
			UID:   tok.UID,
			Email: tok.Email,
			Role:  string(models.RoleParticipant),
		}
		if name, ok := tok.Claims["name"].(string); ok {
			u.Name = name
		}

		if s.Profiles != nil {
			ctx, cancel := context.WithTimeout(r.Context(), timeouts.Store())
			p, err := s.Profiles.Get(ctx, tok.UID)
			cancel()
			switch {
			case err != nil:
				u.ProfileLoadFailed = true
				s.Log.Warn("profile load failed", zap.String("uid", tok.UID), zap.Error(err))
			case p != nil:
				u.Profile = p
				if p.DisplayName != "" {
					u.Name = p.DisplayName
				}
				if p.Email != "" && u.Email == "" {
					u.Email = p.Email
				}
				if p.Role.Valid() {
					u.Role = string(p.Role)
				}
			}
		}

		next.ServeHTTP(w, withUser(r, u))
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| Guards                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// RequireSignedIn ensures there is a user in context (set by LoadSessionUser).
// If not signed in:
//   - HTMX: sends HX-Redirect to /login?from=...
//   - HTML: 303 redirect to /login?from=...
//   - API:  401 with {"error":"unauthorized"}.
func RequireSignedIn(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := CurrentUser(r); ok {
			next.ServeHTTP(w, r)
			return
		}
		unauthorized(w, r)
	})
}

// RequireRole ensures there is a user with one of the allowed roles.
func RequireRole(allowed ...string) func(http.Handler) http.Handler {
	set := make(map[string]struct{}, len(allowed))
	for _, role := range allowed {
		set[strings.ToLower(strings.TrimSpace(role))] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u, ok := CurrentUser(r)

			// 1) Not signed in → 401 semantics
			if !ok {
				unauthorized(w, r)
				return
			}

			// 2) Signed in but wrong role → 403 semantics
			if _, has := set[strings.ToLower(u.Role)]; !has {
				if r.Header.Get("HX-Request") == "true" {
					w.Header().Set("HX-Redirect", "/403")
					w.WriteHeader(http.StatusForbidden)
					return
				}
				if wantsHTML(r) {
					http.Redirect(w, r, "/403", http.StatusSeeOther)
					return
				}
				jsonError(w, http.StatusForbidden, "forbidden")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// helpers

func unauthorized(w http.ResponseWriter, r *http.Request) {
	dest := navigation.LoginURL(currentURI(r))

	// HTMX: full-page client redirect (no partial swap)
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	if wantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	jsonError(w, http.StatusUnauthorized, "unauthorized")
}

func jsonError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(`{"error":"` + msg + `"}` + "\n"))
}

func withUser(r *http.Request, u *SessionUser) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), currentUserKey, u))
}

func wantsHTML(r *http.Request) bool {
	// Very light heuristic: treat it as HTML if it's HTMX or Accepts text/html.
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

func currentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
