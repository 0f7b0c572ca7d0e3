// internal/app/system/routes/routes.go

// Package routes classifies request paths. The same Table drives the
// server-side guard and the auth state observer so the two never disagree
// about which paths are public.
package routes

import (
	"path"
	"strings"
)

// Kind is the access class of a path.
type Kind int

const (
	// Protected paths require a signed-in user.
	Protected Kind = iota
	// Public paths are reachable by anyone.
	Public
	// GuestOnly paths are public, but signed-in users are sent away from them.
	GuestOnly
	// Asset paths are static files and are never checked.
	Asset
)

func (k Kind) String() string {
	switch k {
	case Public:
		return "public"
	case GuestOnly:
		return "guest-only"
	case Asset:
		return "asset"
	}
	return "protected"
}

// Well-known destinations.
const (
	LoginPath   = "/login"
	DefaultHome = "/"
	FromParam   = "from"
)

// Table holds the prefix lists. The zero value treats everything as Protected.
type Table struct {
	GuestOnly   []string
	Public      []string
	PublicAPI   []string
	AssetPrefix []string
}

// Default is the portal's route table.
func Default() *Table {
	return &Table{
		GuestOnly: []string{"/login", "/register", "/signup", "/forgot-password"},
		Public:    []string{"/401", "/403", "/404", "/503", "/error", "/health", "/metrics"},
		PublicAPI: []string{
			"/api/auth/login",
			"/api/auth/register",
			"/api/auth/forgot-password",
			"/api/auth/session",
			"/api/auth/config",
			"/api/auth/providers",
		},
		AssetPrefix: []string{"/static/", "/favicon.ico"},
	}
}

// Classify returns the Kind of p. p may carry a query string.
func (t *Table) Classify(p string) Kind {
	p = clean(p)

	for _, prefix := range t.AssetPrefix {
		if strings.HasPrefix(p, prefix) {
			return Asset
		}
	}
	if strings.Contains(path.Base(p), ".") {
		return Asset
	}
	if matchAny(p, t.GuestOnly) {
		return GuestOnly
	}
	if matchAny(p, t.Public) || matchAny(p, t.PublicAPI) {
		return Public
	}
	return Protected
}

// IsPublic reports whether p is reachable without a session.
func (t *Table) IsPublic(p string) bool {
	return t.Classify(p) != Protected
}

// IsAPI reports whether p addresses the JSON API rather than a page.
func IsAPI(p string) bool {
	return hasSegmentPrefix(clean(p), "/api")
}

func clean(p string) string {
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func matchAny(p string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if hasSegmentPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// hasSegmentPrefix matches whole path segments: "/login" matches "/login"
// and "/login/help" but not "/loginx".
func hasSegmentPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	return len(p) == len(prefix) || p[len(prefix)] == '/'
}
