// Package identity defines the contract between the portal and the managed
// identity provider: the user projection, verified tokens, and the two
// backend roles (end-user sign-in and admin verification).
package identity

import (
	"context"
	"time"
)

// User is the read-only projection of an identity record.
type User struct {
	UID         string   `json:"uid"`
	Email       string   `json:"email"`
	DisplayName string   `json:"displayName"`
	PhotoURL    string   `json:"photoURL"`
	Providers   []string `json:"providers,omitempty"`
}

// SignInResult is what the backend hands back after any successful sign-in.
type SignInResult struct {
	User         User
	IDToken      string
	RefreshToken string
	ExpiresIn    time.Duration
}

// Token is a verified ID token or session cookie.
type Token struct {
	UID            string
	Email          string
	SignInProvider string
	IssuedAt       time.Time
	ExpiresAt      time.Time
	Claims         map[string]any
}

// Persistence controls how long the browser keeps the session cookie.
type Persistence int

const (
	// Durable keeps the cookie for its full lifetime ("remember me").
	Durable Persistence = iota
	// SessionOnly drops the cookie when the browser closes.
	SessionOnly
)

func (p Persistence) String() string {
	if p == SessionOnly {
		return "session"
	}
	return "local"
}

// FederatedCredential is the result of a completed third-party handshake.
type FederatedCredential struct {
	Provider    Provider
	AccessToken string
	IDToken     string

	// Profile data reported by the provider's userinfo endpoint.
	Subject     string
	Email       string
	DisplayName string
	PhotoURL    string

	// EmailVerified is true only when the provider asserts it owns Email.
	// Backends never link an existing account on an unverified email.
	EmailVerified bool
}

// Backend performs end-user operations against the identity provider.
type Backend interface {
	SignUp(ctx context.Context, email, password string) (*SignInResult, error)
	SignInWithPassword(ctx context.Context, email, password string) (*SignInResult, error)
	SignInWithIdp(ctx context.Context, cred FederatedCredential) (*SignInResult, error)
	UpdateDisplayName(ctx context.Context, idToken, displayName string) (*User, error)
	SendPasswordReset(ctx context.Context, email string) error
}

// Verifier is the admin side: it checks tokens and mints session cookies.
type Verifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*Token, error)
	SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error)
	VerifySessionCookie(ctx context.Context, cookie string) (*Token, error)
}
