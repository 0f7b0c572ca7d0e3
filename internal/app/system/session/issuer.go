package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/metrics"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
)

var (
	// ErrMissingToken means no ID token was supplied.
	ErrMissingToken = errors.New("session: ID token is required")
	// ErrInvalidToken means the ID token failed verification.
	ErrInvalidToken = errors.New("session: invalid ID token")
	// ErrMint means the token was not checked or the cookie could not be
	// minted, usually because the admin verifier is unavailable.
	ErrMint = errors.New("session: failed to create session")
	// ErrNoSession means the request carries no session cookie.
	ErrNoSession = errors.New("session: no session cookie")
)

// Issuer verifies ID tokens and turns them into session cookies.
type Issuer struct {
	Verifier identity.Verifier
	Cookies  Cookies
	Metrics  metrics.Recorder
}

// NewIssuer returns an Issuer. rec may be nil.
func NewIssuer(v identity.Verifier, c Cookies, rec metrics.Recorder) *Issuer {
	if rec == nil {
		rec = metrics.Nop{}
	}
	return &Issuer{Verifier: v, Cookies: c, Metrics: rec}
}

// Issue verifies idToken, mints a session cookie and writes it to w.
// The error wraps ErrMissingToken, ErrInvalidToken or ErrMint.
func (i *Issuer) Issue(ctx context.Context, w http.ResponseWriter, idToken string, p identity.Persistence) (*identity.Token, error) {
	if idToken == "" {
		return nil, ErrMissingToken
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	defer cancel()

	tok, err := i.Verifier.VerifyIDToken(ctx, idToken)
	if err != nil {
		if !rejected(err) {
			i.Metrics.RecordSessionMint(metrics.Failed)
			return nil, fmt.Errorf("%w: %w", ErrMint, err)
		}
		i.Metrics.RecordSessionMint(metrics.Blocked)
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	value, err := i.Verifier.SessionCookie(ctx, idToken, MaxAge)
	if err != nil {
		i.Metrics.RecordSessionMint(metrics.Failed)
		return nil, fmt.Errorf("%w: %w", ErrMint, err)
	}

	i.Cookies.Set(w, value, p)
	i.Metrics.RecordSessionMint(metrics.OK)
	return tok, nil
}

// rejected reports whether the verifier looked at the token and refused it.
// Every other failure (unavailable verifier, certificate fetch) is ours.
func rejected(err error) bool {
	switch identity.Code(err) {
	case identity.CodeInvalidIDToken, identity.CodeUserDisabled:
		return true
	}
	return false
}

// Verify checks the request's session cookie.
func (i *Issuer) Verify(ctx context.Context, r *http.Request) (*identity.Token, error) {
	value, ok := i.Cookies.Read(r)
	if !ok {
		return nil, ErrNoSession
	}
	ctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	defer cancel()
	return i.Verifier.VerifySessionCookie(ctx, value)
}

// ResponseSync is the SessionSync used while serving a request: it sets or
// clears the cookie on the response being written.
type ResponseSync struct {
	Issuer *Issuer
	W      http.ResponseWriter
}

func (s ResponseSync) Create(ctx context.Context, idToken string, p identity.Persistence) error {
	_, err := s.Issuer.Issue(ctx, s.W, idToken, p)
	return err
}

func (s ResponseSync) Clear(ctx context.Context) error {
	s.Issuer.Cookies.Clear(s.W)
	return nil
}
