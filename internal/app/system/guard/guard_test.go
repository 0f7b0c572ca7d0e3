package guard_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/venturecamp/internal/app/system/guard"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/identity/local"
	"github.com/dalemusser/venturecamp/internal/app/system/session"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusTeapot)
})

func serve(g *guard.Guard, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	g.Middleware(ok).ServeHTTP(rec, req)
	return rec
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    guard.Mode
		wantErr bool
	}{
		{"", guard.ModeCookie, false},
		{"cookie", guard.ModeCookie, false},
		{" Client ", guard.ModeClientOnly, false},
		{"strict", guard.ModeCookie, true},
	}
	for _, tt := range tests {
		got, err := guard.ParseMode(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseMode(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestMiddleware_PassesNonProtected(t *testing.T) {
	g := guard.New(guard.ModeCookie, nil, session.Cookies{}, nil, nil)

	for _, p := range []string{"/login", "/register", "/404", "/health", "/static/app.css", "/logo.png", "/api/auth/session"} {
		rec := serve(g, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("%s: status = %d, want pass-through", p, rec.Code)
		}
	}
}

func TestMiddleware_RedirectsAnonymousNavigation(t *testing.T) {
	g := guard.New(guard.ModeCookie, nil, session.Cookies{}, nil, nil)

	tests := []struct {
		path, want string
	}{
		{"/dashboard", "/login?from=%2Fdashboard"},
		{"/", "/login?from=%2F"},
		{"/loginx", "/login?from=%2Floginx"},
	}
	for _, tt := range tests {
		rec := serve(g, httptest.NewRequest(http.MethodGet, tt.path, nil))
		if rec.Code != http.StatusTemporaryRedirect {
			t.Errorf("%s: status = %d, want 307", tt.path, rec.Code)
			continue
		}
		if loc := rec.Header().Get("Location"); loc != tt.want {
			t.Errorf("%s: Location = %q, want %q", tt.path, loc, tt.want)
		}
	}
}

func TestMiddleware_DeniesAnonymousAPI(t *testing.T) {
	g := guard.New(guard.ModeCookie, nil, session.Cookies{}, nil, nil)

	rec := serve(g, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error":"unauthorized"`) {
		t.Errorf("body = %q", rec.Body.String())
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestMiddleware_ClientOnlyPassesEverything(t *testing.T) {
	g := guard.New(guard.ModeClientOnly, nil, session.Cookies{}, nil, nil)

	for _, p := range []string{"/dashboard", "/api/auth/me"} {
		rec := serve(g, httptest.NewRequest(http.MethodGet, p, nil))
		if rec.Code != http.StatusTeapot {
			t.Errorf("%s: status = %d, want pass-through", p, rec.Code)
		}
	}
}

func TestMiddleware_CustomCookieName(t *testing.T) {
	g := guard.New(guard.ModeCookie, nil, session.Cookies{Name: "vc_session"}, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "__session", Value: "x"})
	if rec := serve(g, req); rec.Code != http.StatusTemporaryRedirect {
		t.Errorf("default-named cookie accepted: status %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: "vc_session", Value: "x"})
	if rec := serve(g, req); rec.Code != http.StatusTeapot {
		t.Errorf("configured cookie rejected: status %d", rec.Code)
	}
}

// A cookie minted by the issuer gets the request through the guard.
func TestMiddleware_CookieRoundTrip(t *testing.T) {
	b, err := local.New([]byte("guard-test-signing-key"))
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	ctx := context.Background()
	res, err := b.SignUp(ctx, "camper@example.com", "secret1")
	if err != nil {
		t.Fatalf("SignUp: %v", err)
	}

	cookies := session.Cookies{}
	iss := session.NewIssuer(b, cookies, nil)
	w := httptest.NewRecorder()
	if _, err := iss.Issue(ctx, w, res.IDToken, identity.Durable); err != nil {
		t.Fatalf("Issue: %v", err)
	}

	g := guard.New(guard.ModeCookie, nil, cookies, nil, nil)
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range w.Result().Cookies() {
		req.AddCookie(c)
	}
	if rec := serve(g, req); rec.Code != http.StatusTeapot {
		t.Fatalf("with minted cookie: status = %d, want pass-through", rec.Code)
	}

	cw := httptest.NewRecorder()
	cookies.Clear(cw)
	req = httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range cw.Result().Cookies() {
		if c.MaxAge > 0 {
			req.AddCookie(c)
		}
	}
	if rec := serve(g, req); rec.Code != http.StatusTemporaryRedirect {
		t.Errorf("after clear: status = %d, want 307", rec.Code)
	}
}
