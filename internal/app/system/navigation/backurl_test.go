package navigation

import (
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/venturecamp/internal/app/system/routes"
)

func TestSafeReturnTo(t *testing.T) {
	table := routes.Default()
	tests := []struct {
		raw  string
		want string
	}{
		{"/projects", "/projects"},
		{"", "/"},
		{"https://evil.example.com/", "/"},
		{"//evil.example.com", "/"},
		{`/\evil.example.com`, "/"},
		{"/login", "/"},
		{"/register?x=1", "/"},
		{"javascript:alert(1)", "/"},
	}
	for _, tt := range tests {
		if got := SafeReturnTo(tt.raw, table, "/"); got != tt.want {
			t.Errorf("SafeReturnTo(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestReturnTo_ReadsFromParam(t *testing.T) {
	req := httptest.NewRequest("GET", "/api/auth/providers/google?from=%2Fteam", nil)
	if got := ReturnTo(req, routes.Default()); got != "/team" {
		t.Errorf("ReturnTo() = %q, want /team", got)
	}
}

func TestLoginURL(t *testing.T) {
	if got := LoginURL("/projects/42"); got != "/login?from=%2Fprojects%2F42" {
		t.Errorf("LoginURL() = %q", got)
	}
	if got := LoginURL("/"); got != "/login?from=%2F" {
		t.Errorf("LoginURL(/) = %q", got)
	}
	if got := LoginURL(""); got != "/login" {
		t.Errorf("LoginURL(\"\") = %q", got)
	}
}
