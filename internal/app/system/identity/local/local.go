// internal/app/system/identity/local/local.go

// Package local is an in-process identity backend. It keeps accounts in
// memory, hashes passwords with bcrypt and issues HS256 tokens, which makes
// it a stand-in for the managed provider in development and tests.
package local

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/inputval"
	"github.com/dalemusser/venturecamp/internal/app/system/normalize"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const (
	issuer = "venturecamp-local"

	purposeID      = "id"
	purposeSession = "session"

	providerPassword = "password"

	// DefaultIDTokenTTL matches the managed provider's one hour ID tokens.
	DefaultIDTokenTTL = time.Hour

	minSessionTTL = 5 * time.Minute
	maxSessionTTL = 14 * 24 * time.Hour
)

var errBadPurpose = errors.New("token purpose mismatch")

var (
	_ identity.Backend  = (*Backend)(nil)
	_ identity.Verifier = (*Backend)(nil)
)

type account struct {
	user     identity.User
	hash     []byte
	disabled bool
}

type claims struct {
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	Purpose        string `json:"purpose"`
	SignInProvider string `json:"sign_in_provider,omitempty"`
	jwt.RegisteredClaims
}

// Backend implements identity.Backend and identity.Verifier.
type Backend struct {
	mu        sync.Mutex
	key       []byte
	byUID     map[string]*account
	byEmail   map[string]string // email -> uid
	federated map[string]string // providerID|subject -> uid
	resets    []string

	idTTL time.Duration
	now   func() time.Time
}

// New returns an empty backend signing tokens with key.
func New(key []byte) (*Backend, error) {
	if len(key) < 16 {
		return nil, errors.New("local identity: signing key must be at least 16 bytes")
	}
	return &Backend{
		key:       key,
		byUID:     make(map[string]*account),
		byEmail:   make(map[string]string),
		federated: make(map[string]string),
		idTTL:     DefaultIDTokenTTL,
		now:       time.Now,
	}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| end-user operations                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

func (b *Backend) SignUp(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	const op = "signUp"
	if err := ctx.Err(); err != nil {
		return nil, identity.NewError(op, identity.CodeNetworkFailed, err)
	}
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return nil, identity.NewError(op, identity.CodeInvalidEmail, nil)
	}
	if !inputval.IsValidPassword(password) {
		return nil, identity.NewError(op, identity.CodeWeakPassword, nil)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, identity.NewError(op, identity.CodeInternal, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, exists := b.byEmail[email]; exists {
		return nil, identity.NewError(op, identity.CodeEmailInUse, nil)
	}
	acct := &account{
		user: identity.User{UID: uuid.NewString(), Email: email, Providers: []string{providerPassword}},
		hash: hash,
	}
	b.byUID[acct.user.UID] = acct
	b.byEmail[email] = acct.user.UID

	return b.signInLocked(op, acct, providerPassword)
}

func (b *Backend) SignInWithPassword(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	const op = "signIn"
	if err := ctx.Err(); err != nil {
		return nil, identity.NewError(op, identity.CodeNetworkFailed, err)
	}
	email = normalize.Email(email)

	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.byEmail[email]
	if !ok {
		return nil, identity.NewError(op, identity.CodeInvalidCredential, nil)
	}
	acct := b.byUID[uid]
	if acct.hash == nil || bcrypt.CompareHashAndPassword(acct.hash, []byte(password)) != nil {
		return nil, identity.NewError(op, identity.CodeInvalidCredential, nil)
	}
	if acct.disabled {
		return nil, identity.NewError(op, identity.CodeUserDisabled, nil)
	}
	return b.signInLocked(op, acct, providerPassword)
}

// SignInWithIdp signs in with a federated credential. An unseen subject is
// linked to an existing account with the same email when the provider
// verified that email, or gets a new account.
func (b *Backend) SignInWithIdp(ctx context.Context, cred identity.FederatedCredential) (*identity.SignInResult, error) {
	const op = "signInWithIdp"
	if err := ctx.Err(); err != nil {
		return nil, identity.NewError(op, identity.CodeNetworkFailed, err)
	}
	if !cred.Provider.Valid() || cred.Subject == "" {
		return nil, identity.NewError(op, identity.CodeInvalidCredential, nil)
	}
	providerID := cred.Provider.ProviderID()
	fedKey := providerID + "|" + cred.Subject
	email := normalize.Email(cred.Email)

	b.mu.Lock()
	defer b.mu.Unlock()

	var acct *account
	if uid, ok := b.federated[fedKey]; ok {
		acct = b.byUID[uid]
	} else if uid, ok := b.byEmail[email]; ok && email != "" {
		if !cred.EmailVerified {
			return nil, identity.NewError(op, identity.CodeAccountExists, nil)
		}
		acct = b.byUID[uid]
	}
	if acct == nil {
		acct = &account{user: identity.User{
			UID:         uuid.NewString(),
			Email:       email,
			DisplayName: cred.DisplayName,
			PhotoURL:    cred.PhotoURL,
		}}
		b.byUID[acct.user.UID] = acct
		if email != "" {
			b.byEmail[email] = acct.user.UID
		}
	}
	if acct.disabled {
		return nil, identity.NewError(op, identity.CodeUserDisabled, nil)
	}
	b.federated[fedKey] = acct.user.UID
	if !hasProvider(acct.user.Providers, providerID) {
		acct.user.Providers = append(acct.user.Providers, providerID)
	}
	if acct.user.DisplayName == "" {
		acct.user.DisplayName = cred.DisplayName
	}
	if acct.user.PhotoURL == "" {
		acct.user.PhotoURL = cred.PhotoURL
	}
	return b.signInLocked(op, acct, providerID)
}

func (b *Backend) UpdateDisplayName(ctx context.Context, idToken, displayName string) (*identity.User, error) {
	const op = "updateProfile"
	c, err := b.parse(idToken, purposeID)
	if err != nil {
		return nil, identity.NewError(op, identity.CodeRequiresRecentLogin, err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acct, ok := b.byUID[c.Subject]
	if !ok {
		return nil, identity.NewError(op, identity.CodeUserNotFound, nil)
	}
	acct.user.DisplayName = displayName
	u := copyUser(acct.user)
	return &u, nil
}

// SendPasswordReset records the request; Resets lists recorded addresses.
func (b *Backend) SendPasswordReset(ctx context.Context, email string) error {
	const op = "resetPassword"
	if err := ctx.Err(); err != nil {
		return identity.NewError(op, identity.CodeNetworkFailed, err)
	}
	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return identity.NewError(op, identity.CodeInvalidEmail, nil)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.byEmail[email]; !ok {
		return identity.NewError(op, identity.CodeUserNotFound, nil)
	}
	b.resets = append(b.resets, email)
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| admin operations                                                             |
*─────────────────────────────────────────────────────────────────────────────*/

func (b *Backend) VerifyIDToken(ctx context.Context, idToken string) (*identity.Token, error) {
	c, err := b.parse(idToken, purposeID)
	if err != nil {
		return nil, identity.NewError("verifyIdToken", identity.CodeInvalidIDToken, err)
	}
	return toToken(c), nil
}

// SessionCookie exchanges a valid ID token for a session cookie value.
func (b *Backend) SessionCookie(ctx context.Context, idToken string, expiresIn time.Duration) (string, error) {
	const op = "createSessionCookie"
	if expiresIn < minSessionTTL || expiresIn > maxSessionTTL {
		return "", identity.NewError(op, identity.CodeInternal,
			fmt.Errorf("session duration %s outside [%s, %s]", expiresIn, minSessionTTL, maxSessionTTL))
	}
	c, err := b.parse(idToken, purposeID)
	if err != nil {
		return "", identity.NewError(op, identity.CodeInvalidIDToken, err)
	}
	now := b.now()
	sc := claims{
		Email:          c.Email,
		Name:           c.Name,
		Purpose:        purposeSession,
		SignInProvider: c.SignInProvider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   c.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiresIn)),
		},
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, sc).SignedString(b.key)
	if err != nil {
		return "", identity.NewError(op, identity.CodeInternal, err)
	}
	return s, nil
}

func (b *Backend) VerifySessionCookie(ctx context.Context, cookie string) (*identity.Token, error) {
	c, err := b.parse(cookie, purposeSession)
	if err != nil {
		return nil, identity.NewError("verifySessionCookie", identity.CodeInvalidIDToken, err)
	}
	// Accounts unknown to this process are accepted: another process holding
	// the same key minted the cookie.
	b.mu.Lock()
	acct, ok := b.byUID[c.Subject]
	disabled := ok && acct.disabled
	b.mu.Unlock()
	if disabled {
		return nil, identity.NewError("verifySessionCookie", identity.CodeUserDisabled, nil)
	}
	return toToken(c), nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| test and dev helpers                                                         |
*─────────────────────────────────────────────────────────────────────────────*/

// Disable marks the account for email as disabled.
func (b *Backend) Disable(email string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	uid, ok := b.byEmail[normalize.Email(email)]
	if ok {
		b.byUID[uid].disabled = true
	}
	return ok
}

// Count returns the number of accounts.
func (b *Backend) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.byUID)
}

// Resets returns the addresses that were sent a reset email.
func (b *Backend) Resets() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.resets...)
}

// SetClock replaces the time source.
func (b *Backend) SetClock(now func() time.Time) {
	b.mu.Lock()
	b.now = now
	b.mu.Unlock()
}

/*─────────────────────────────────────────────────────────────────────────────*
| internals                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (b *Backend) signInLocked(op string, acct *account, provider string) (*identity.SignInResult, error) {
	now := b.now()
	c := claims{
		Email:          acct.user.Email,
		Name:           acct.user.DisplayName,
		Purpose:        purposeID,
		SignInProvider: provider,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   acct.user.UID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(b.idTTL)),
		},
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(b.key)
	if err != nil {
		return nil, identity.NewError(op, identity.CodeInternal, err)
	}
	return &identity.SignInResult{
		User:         copyUser(acct.user),
		IDToken:      tok,
		RefreshToken: uuid.NewString(),
		ExpiresIn:    b.idTTL,
	}, nil
}

func (b *Backend) parse(raw, purpose string) (*claims, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, errors.New("empty token")
	}
	b.mu.Lock()
	now := b.now
	b.mu.Unlock()

	tok, err := jwt.ParseWithClaims(raw, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return b.key, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(now))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	c, ok := tok.Claims.(*claims)
	if !ok || !tok.Valid {
		return nil, errors.New("invalid token claims")
	}
	if c.Purpose != purpose {
		return nil, errBadPurpose
	}
	return c, nil
}

func toToken(c *claims) *identity.Token {
	t := &identity.Token{
		UID:            c.Subject,
		Email:          c.Email,
		SignInProvider: c.SignInProvider,
		Claims: map[string]any{
			"email": c.Email,
			"name":  c.Name,
		},
	}
	if c.IssuedAt != nil {
		t.IssuedAt = c.IssuedAt.Time
	}
	if c.ExpiresAt != nil {
		t.ExpiresAt = c.ExpiresAt.Time
	}
	return t
}

func copyUser(u identity.User) identity.User {
	u.Providers = append([]string(nil), u.Providers...)
	return u
}

func hasProvider(list []string, id string) bool {
	for _, p := range list {
		if p == id {
			return true
		}
	}
	return false
}
