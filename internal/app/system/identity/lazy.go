package identity

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// ErrUnavailable marks a verifier that could not be initialized, typically
// because admin credentials are missing or malformed.
var ErrUnavailable = errors.New("identity: admin verifier unavailable")

// Lazy is a Verifier initialized on first use. A successful init is kept for
// the life of the process; a failed init is retried on the next call.
type Lazy struct {
	mu   sync.Mutex
	init func(ctx context.Context) (Verifier, error)
	v    Verifier
}

// NewLazy wraps an initializer.
func NewLazy(init func(ctx context.Context) (Verifier, error)) *Lazy {
	return &Lazy{init: init}
}

// Get returns the verifier, initializing it if needed.
func (l *Lazy) Get(ctx context.Context) (Verifier, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.v != nil {
		return l.v, nil
	}
	v, err := l.init(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	l.v = v
	return v, nil
}

func (l *Lazy) VerifyIDToken(ctx context.Context, idToken string) (*Token, error) {
	v, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return v.VerifyIDToken(ctx, idToken)
}

func (l *Lazy) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	v, err := l.Get(ctx)
	if err != nil {
		return "", err
	}
	return v.SessionCookie(ctx, idToken, expiresIn)
}

func (l *Lazy) VerifySessionCookie(ctx context.Context, cookie string) (*Token, error) {
	v, err := l.Get(ctx)
	if err != nil {
		return nil, err
	}
	return v.VerifySessionCookie(ctx, cookie)
}
