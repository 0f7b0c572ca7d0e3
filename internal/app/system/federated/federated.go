// internal/app/system/federated/federated.go

// Package federated runs the OAuth2 authorization code flow against the
// supported third-party providers and turns the result into an
// identity.FederatedCredential.
package federated

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/github"
	"golang.org/x/oauth2/google"
)

// ErrNotConfigured is returned for a provider without client credentials.
var ErrNotConfigured = errors.New("federated: provider not configured")

// CallbackPath returns the redirect path registered with provider p.
func CallbackPath(p identity.Provider) string {
	return "/api/auth/providers/" + p.String() + "/callback"
}

// Flow is one provider's authorization code flow.
type Flow interface {
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (identity.FederatedCredential, error)
}

// Credentials are the OAuth client id and secret for one provider.
type Credentials struct {
	ClientID     string
	ClientSecret string
}

// Configured reports whether both halves are present.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Registry maps providers to flows.
type Registry struct {
	mu    sync.RWMutex
	flows map[identity.Provider]Flow
}

// NewRegistry builds OAuth flows for every provider with credentials.
// baseURL is the externally visible origin used for redirect URLs.
func NewRegistry(baseURL string, creds map[identity.Provider]Credentials) *Registry {
	r := &Registry{flows: make(map[identity.Provider]Flow)}
	baseURL = strings.TrimSuffix(baseURL, "/")
	for p, c := range creds {
		if !p.Valid() || !c.Configured() {
			continue
		}
		r.flows[p] = NewOAuthFlow(p, c, baseURL+CallbackPath(p))
	}
	return r
}

// Register installs or replaces the flow for p.
func (r *Registry) Register(p identity.Provider, f Flow) {
	r.mu.Lock()
	r.flows[p] = f
	r.mu.Unlock()
}

// Flow returns the flow for p or ErrNotConfigured.
func (r *Registry) Flow(p identity.Provider) (Flow, error) {
	if r == nil {
		return nil, ErrNotConfigured
	}
	r.mu.RLock()
	f, ok := r.flows[p]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotConfigured, p)
	}
	return f, nil
}

// Configured lists providers that have a flow, in display order.
func (r *Registry) Configured() []identity.Provider {
	var out []identity.Provider
	if r == nil {
		return out
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range identity.Providers() {
		if _, ok := r.flows[p]; ok {
			out = append(out, p)
		}
	}
	return out
}

/*─────────────────────────────────────────────────────────────────────────────*
| OAuthFlow                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// OAuthFlow is a Flow backed by golang.org/x/oauth2 plus a userinfo fetch.
type OAuthFlow struct {
	Provider    identity.Provider
	Config      *oauth2.Config
	UserInfoURL string
	// EmailsURL lists the account's addresses with their verification
	// state (GitHub only). Blank leaves EmailVerified to the userinfo reply.
	EmailsURL string
}

// NewOAuthFlow returns the standard flow for p.
func NewOAuthFlow(p identity.Provider, c Credentials, redirectURL string) *OAuthFlow {
	f := &OAuthFlow{
		Provider: p,
		Config: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  redirectURL,
		},
	}
	switch p {
	case identity.Google:
		f.Config.Endpoint = google.Endpoint
		f.Config.Scopes = []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
			"https://www.googleapis.com/auth/userinfo.profile",
		}
		f.UserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	case identity.GitHub:
		f.Config.Endpoint = github.Endpoint
		f.Config.Scopes = []string{"read:user", "user:email"}
		f.UserInfoURL = "https://api.github.com/user"
		f.EmailsURL = "https://api.github.com/user/emails"
	case identity.Facebook:
		f.Config.Endpoint = facebook.Endpoint
		f.Config.Scopes = []string{"email", "public_profile"}
		f.UserInfoURL = "https://graph.facebook.com/me?fields=id,name,email,picture"
	}
	return f
}

func (f *OAuthFlow) AuthCodeURL(state string) string {
	return f.Config.AuthCodeURL(state)
}

// Exchange trades code for a token and fetches the provider's profile.
func (f *OAuthFlow) Exchange(ctx context.Context, code string) (identity.FederatedCredential, error) {
	tok, err := f.Config.Exchange(ctx, code)
	if err != nil {
		return identity.FederatedCredential{}, fmt.Errorf("exchange %s code: %w", f.Provider, err)
	}

	cred := identity.FederatedCredential{Provider: f.Provider, AccessToken: tok.AccessToken}
	if idt, ok := tok.Extra("id_token").(string); ok {
		cred.IDToken = idt
	}

	if err := f.fetchUserInfo(ctx, tok, &cred); err != nil {
		return identity.FederatedCredential{}, err
	}
	return cred, nil
}

type userInfo struct {
	ID        json.RawMessage `json:"id"`
	Email     string          `json:"email"`
	// Google v2 userinfo and OpenID Connect spellings.
	VerifiedEmail bool `json:"verified_email"`
	EmailVerified bool `json:"email_verified"`

	Name      string          `json:"name"`
	Login     string          `json:"login"`
	Picture   json.RawMessage `json:"picture"`
	AvatarURL string          `json:"avatar_url"`
}

func (f *OAuthFlow) fetchUserInfo(ctx context.Context, tok *oauth2.Token, cred *identity.FederatedCredential) error {
	client := f.Config.Client(ctx, tok)

	var info userInfo
	if err := f.getJSON(client, f.UserInfoURL, "user info", &info); err != nil {
		return err
	}

	cred.Subject = rawID(info.ID)
	cred.Email = info.Email
	cred.DisplayName = info.Name
	if cred.DisplayName == "" {
		cred.DisplayName = info.Login
	}
	cred.PhotoURL = pictureURL(info.Picture)
	if cred.PhotoURL == "" {
		cred.PhotoURL = info.AvatarURL
	}
	if cred.Subject == "" {
		return fmt.Errorf("%s user info: missing id", f.Provider)
	}

	// Facebook never asserts ownership; its emails stay unverified.
	if f.Provider == identity.Google {
		cred.EmailVerified = cred.Email != "" && (info.VerifiedEmail || info.EmailVerified)
	}
	if f.EmailsURL != "" {
		var emails []providerEmail
		if err := f.getJSON(client, f.EmailsURL, "emails", &emails); err != nil {
			return err
		}
		cred.Email, cred.EmailVerified = pickEmail(cred.Email, emails)
	}
	return nil
}

func (f *OAuthFlow) getJSON(client *http.Client, endpoint, what string, out any) error {
	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("fetch %s %s: %w", f.Provider, what, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch %s %s: unexpected status %d", f.Provider, what, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", f.Provider, what, err)
	}
	return nil
}

type providerEmail struct {
	Email    string `json:"email"`
	Primary  bool   `json:"primary"`
	Verified bool   `json:"verified"`
}

// pickEmail keeps the profile email when it is listed, otherwise takes the
// primary address. GitHub profiles may hide the email entirely.
func pickEmail(profile string, emails []providerEmail) (string, bool) {
	for _, e := range emails {
		if profile != "" && strings.EqualFold(e.Email, profile) {
			return e.Email, e.Verified
		}
	}
	for _, e := range emails {
		if e.Primary {
			return e.Email, e.Verified
		}
	}
	return profile, false
}

// rawID accepts both string ids (Google, Facebook) and numeric ids (GitHub).
func rawID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatInt(n, 10)
	}
	return ""
}

// pictureURL accepts Google's plain string and Facebook's {data:{url}}.
func pictureURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var fb struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &fb); err == nil {
		return fb.Data.URL
	}
	return ""
}
