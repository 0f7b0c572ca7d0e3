package authclient

import (
	"context"
	"fmt"
	"strings"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
)

// SessionSync mirrors the identity state into the server session cookie.
type SessionSync interface {
	// Create exchanges idToken for a session cookie.
	Create(ctx context.Context, idToken string, p identity.Persistence) error
	// Clear removes the session cookie.
	Clear(ctx context.Context) error
}

// SessionPolicy decides what a failed Create means for the sign-in.
type SessionPolicy int

const (
	// WarnAndContinue logs the failure and keeps the sign-in.
	WarnAndContinue SessionPolicy = iota
	// Block fails the sign-in with auth/session-sync-failed.
	Block
)

func (p SessionPolicy) String() string {
	if p == Block {
		return "block"
	}
	return "warn"
}

// ParseSessionPolicy accepts "warn" (or "") and "block".
func ParseSessionPolicy(s string) (SessionPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "warn":
		return WarnAndContinue, nil
	case "block":
		return Block, nil
	}
	return 0, fmt.Errorf("unknown session policy %q (want warn or block)", s)
}
