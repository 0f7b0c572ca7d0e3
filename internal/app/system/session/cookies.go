// internal/app/system/session/cookies.go

// Package session mints, sets and reads the server session cookie.
package session

import (
	"net/http"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

const (
	// DefaultCookieName is the cookie name hosting platforms forward to the app.
	DefaultCookieName = "__session"
	// MaxAge is the session lifetime, both for the cookie and for the
	// provider-side session.
	MaxAge = 5 * 24 * time.Hour
)

// Cookies describes the session cookie.
type Cookies struct {
	Name   string
	Domain string
	Secure bool
}

func (c Cookies) name() string {
	if c.Name == "" {
		return DefaultCookieName
	}
	return c.Name
}

// Set writes the session cookie. SessionOnly omits Max-Age so the browser
// drops the cookie when it closes.
func (c Cookies) Set(w http.ResponseWriter, value string, p identity.Persistence) {
	ck := &http.Cookie{
		Name:     c.name(),
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	}
	if p == identity.Durable {
		ck.MaxAge = int(MaxAge / time.Second)
	}
	http.SetCookie(w, ck)
}

// Clear expires the session cookie.
func (c Cookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		Domain:   c.Domain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// Read returns the cookie value and whether a non-empty one was present.
func (c Cookies) Read(r *http.Request) (string, bool) {
	ck, err := r.Cookie(c.name())
	if err != nil || ck.Value == "" {
		return "", false
	}
	return ck.Value, true
}
