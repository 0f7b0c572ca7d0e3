package federated

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"golang.org/x/oauth2"
)

func TestNewRegistry_SkipsUnconfigured(t *testing.T) {
	r := NewRegistry("https://camp.example.org/", map[identity.Provider]Credentials{
		identity.Google:   {ClientID: "id", ClientSecret: "secret"},
		identity.GitHub:   {ClientID: "id"},
		identity.Facebook: {},
	})

	got := r.Configured()
	if len(got) != 1 || got[0] != identity.Google {
		t.Fatalf("Configured() = %v, want [google]", got)
	}

	if _, err := r.Flow(identity.GitHub); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("Flow(github) err = %v, want ErrNotConfigured", err)
	}

	f, err := r.Flow(identity.Google)
	if err != nil {
		t.Fatalf("Flow(google): %v", err)
	}
	u, _ := url.Parse(f.AuthCodeURL("abc"))
	if u.Query().Get("state") != "abc" {
		t.Errorf("state = %q", u.Query().Get("state"))
	}
	if want := "https://camp.example.org/api/auth/providers/google/callback"; u.Query().Get("redirect_uri") != want {
		t.Errorf("redirect_uri = %q, want %q", u.Query().Get("redirect_uri"), want)
	}
}

func TestNilRegistry(t *testing.T) {
	var r *Registry
	if _, err := r.Flow(identity.Google); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("err = %v", err)
	}
	if len(r.Configured()) != 0 {
		t.Error("nil registry should have no providers")
	}
}

func TestOAuthFlow_Exchange(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code") != "the-code" {
			t.Errorf("token request form = %v", r.Form)
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "gh-access",
			"token_type":   "bearer",
		})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer gh-access" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		json.NewEncoder(w).Encode(map[string]any{
			"id":         12345,
			"login":      "octocat",
			"email":      "octo@example.com",
			"avatar_url": "https://avatars.example.com/u/12345",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &OAuthFlow{
		Provider: identity.GitHub,
		Config: &oauth2.Config{
			ClientID:     "id",
			ClientSecret: "secret",
			Endpoint:     oauth2.Endpoint{AuthURL: srv.URL + "/auth", TokenURL: srv.URL + "/token"},
		},
		UserInfoURL: srv.URL + "/user",
	}

	cred, err := f.Exchange(context.Background(), "the-code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if cred.Subject != "12345" {
		t.Errorf("Subject = %q", cred.Subject)
	}
	if cred.DisplayName != "octocat" {
		t.Errorf("DisplayName = %q, want login fallback", cred.DisplayName)
	}
	if cred.PhotoURL != "https://avatars.example.com/u/12345" {
		t.Errorf("PhotoURL = %q", cred.PhotoURL)
	}
	if cred.AccessToken != "gh-access" {
		t.Errorf("AccessToken = %q", cred.AccessToken)
	}
}

func TestOAuthFlow_GitHubEmailVerification(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "gh-access", "token_type": "bearer"})
	})
	mux.HandleFunc("/user", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"id": 7, "login": "octocat"})
	})
	mux.HandleFunc("/user/emails", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]map[string]any{
			{"email": "old@example.com", "primary": false, "verified": false},
			{"email": "octo@example.com", "primary": true, "verified": true},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &OAuthFlow{
		Provider:    identity.GitHub,
		Config:      &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token"}},
		UserInfoURL: srv.URL + "/user",
		EmailsURL:   srv.URL + "/user/emails",
	}
	cred, err := f.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if cred.Email != "octo@example.com" || !cred.EmailVerified {
		t.Errorf("email = %q verified = %v, want primary verified address", cred.Email, cred.EmailVerified)
	}
}

func TestPickEmail(t *testing.T) {
	emails := []providerEmail{
		{Email: "work@example.com", Verified: false},
		{Email: "home@example.com", Primary: true, Verified: true},
	}
	tests := []struct {
		profile      string
		wantEmail    string
		wantVerified bool
	}{
		{"Work@example.com", "work@example.com", false},
		{"", "home@example.com", true},
		{"gone@example.com", "home@example.com", true},
	}
	for _, tt := range tests {
		email, verified := pickEmail(tt.profile, emails)
		if email != tt.wantEmail || verified != tt.wantVerified {
			t.Errorf("pickEmail(%q) = %q, %v; want %q, %v", tt.profile, email, verified, tt.wantEmail, tt.wantVerified)
		}
	}
	if email, verified := pickEmail("a@b.co", nil); email != "a@b.co" || verified {
		t.Errorf("no list: %q, %v", email, verified)
	}
}

func TestOAuthFlow_GoogleVerifiedEmail(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"access_token": "g-access", "token_type": "bearer"})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"id": "g-1", "email": "grace@example.com", "verified_email": true, "name": "Grace",
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	f := &OAuthFlow{
		Provider:    identity.Google,
		Config:      &oauth2.Config{Endpoint: oauth2.Endpoint{TokenURL: srv.URL + "/token"}},
		UserInfoURL: srv.URL + "/userinfo",
	}
	cred, err := f.Exchange(context.Background(), "code")
	if err != nil {
		t.Fatalf("Exchange: %v", err)
	}
	if !cred.EmailVerified {
		t.Error("google verified_email should carry through")
	}
}

func TestPictureURL(t *testing.T) {
	if got := pictureURL(json.RawMessage(`"https://x/p.png"`)); got != "https://x/p.png" {
		t.Errorf("string picture = %q", got)
	}
	if got := pictureURL(json.RawMessage(`{"data":{"url":"https://fb/p.jpg"}}`)); got != "https://fb/p.jpg" {
		t.Errorf("facebook picture = %q", got)
	}
}
