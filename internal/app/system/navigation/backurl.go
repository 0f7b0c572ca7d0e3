// Package navigation provides helpers for safe URL navigation and redirects.
package navigation

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/venturecamp/internal/app/system/routes"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
)

// SafeReturnTo validates a post-sign-in destination. Only same-origin paths
// are kept, and guest-only pages are replaced with the home page so a signed
// in user is never sent back to /login. Anything else yields fallback.
func SafeReturnTo(raw string, table *routes.Table, fallback string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return fallback
	}
	ret := urlutil.SafeReturn(raw, "", "")
	if ret == "" {
		return fallback
	}
	if table != nil && table.Classify(ret) == routes.GuestOnly {
		return fallback
	}
	return ret
}

// ReturnTo reads the destination from the request's "from" (or "return")
// query parameter and validates it.
func ReturnTo(r *http.Request, table *routes.Table) string {
	raw := query.Get(r, routes.FromParam)
	if raw == "" {
		raw = query.Get(r, "return")
	}
	return SafeReturnTo(raw, table, routes.DefaultHome)
}

// LoginURL is the login page with the original destination attached.
func LoginURL(from string) string {
	if from == "" {
		return routes.LoginPath
	}
	return routes.LoginPath + "?" + routes.FromParam + "=" + url.QueryEscape(from)
}
