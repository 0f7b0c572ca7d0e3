// internal/app/system/authclient/client.go

// Package authclient is the single point of contact between the portal and
// the identity provider. It runs every sign-in flow, keeps the profile
// document in step, mirrors the result into the session cookie and tells
// listeners about auth state changes.
package authclient

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/dalemusser/venturecamp/internal/app/store/oauthstate"
	profilestore "github.com/dalemusser/venturecamp/internal/app/store/profiles"
	"github.com/dalemusser/venturecamp/internal/app/system/federated"
	"github.com/dalemusser/venturecamp/internal/app/system/htmlsanitize"
	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/inputval"
	"github.com/dalemusser/venturecamp/internal/app/system/metrics"
	"github.com/dalemusser/venturecamp/internal/app/system/normalize"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
	"github.com/dalemusser/venturecamp/internal/domain/models"
	"go.uber.org/zap"
)

// ProfileStore is the subset of the profile store the client needs.
type ProfileStore interface {
	Get(ctx context.Context, uid string) (*models.Profile, error)
	Ensure(ctx context.Context, u identity.User, extras profilestore.Extras) (*models.Profile, error)
}

// StateStore persists pending federated sign-ins.
type StateStore interface {
	Save(ctx context.Context, st oauthstate.State) error
	Consume(ctx context.Context, state string) (*oauthstate.State, error)
}

// Listener receives the current user, nil when signed out.
type Listener func(u *identity.User)

// Config wires a Client. Backend is required; everything else is optional.
type Config struct {
	Backend   identity.Backend
	Profiles  ProfileStore
	States    StateStore
	Providers *federated.Registry
	Session   SessionSync
	Policy    SessionPolicy
	Metrics   metrics.Recorder
	Log       *zap.Logger
}

// Client holds one browser-equivalent auth session. The JSON auth API builds
// one per request; the dev CLI keeps one for its lifetime.
type Client struct {
	backend   identity.Backend
	profiles  ProfileStore
	states    StateStore
	providers *federated.Registry
	session   SessionSync
	policy    SessionPolicy
	metrics   metrics.Recorder
	log       *zap.Logger

	mu          sync.Mutex
	current     *identity.User
	idToken     string
	persistence identity.Persistence
	listeners   []listenerEntry
	nextID      int
}

type listenerEntry struct {
	id int
	fn Listener
}

// ProviderRedirect is the start of a federated sign-in.
type ProviderRedirect struct {
	URL   string // provider consent page
	State string // opaque state token echoed back on the callback
}

// ProviderResult is a completed federated sign-in.
type ProviderResult struct {
	User     *identity.User
	ReturnTo string
}

// New builds a Client from cfg.
func New(cfg Config) *Client {
	c := &Client{
		backend:   cfg.Backend,
		profiles:  cfg.Profiles,
		states:    cfg.States,
		providers: cfg.Providers,
		session:   cfg.Session,
		policy:    cfg.Policy,
		metrics:   cfg.Metrics,
		log:       cfg.Log,
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

/*─────────────────────────────────────────────────────────────────────────────*
| email and password                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// SignUp creates an account, sets its display name when given and creates the
// participant profile.
func (c *Client) SignUp(ctx context.Context, email, password, displayName string) (*identity.User, error) {
	const op = "signUp"

	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return nil, identity.NewError(op, identity.CodeInvalidEmail, nil)
	}
	if !inputval.IsValidPassword(password) {
		return nil, identity.NewError(op, identity.CodeWeakPassword, nil)
	}
	name := normalize.Name(htmlsanitize.PlainText(displayName))
	if !inputval.IsValidDisplayName(name) {
		return nil, identity.NewError(op, identity.CodeInvalidDisplayName, nil)
	}

	bctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	res, err := c.backend.SignUp(bctx, email, password)
	cancel()
	if err != nil {
		c.metrics.RecordSignIn("signup", identity.Code(err))
		return nil, err
	}

	if name != "" {
		uctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
		u, err := c.backend.UpdateDisplayName(uctx, res.IDToken, name)
		cancel()
		if err != nil {
			c.log.Warn("set display name failed", zap.String("uid", res.User.UID), zap.Error(err))
			res.User.DisplayName = name
		} else {
			res.User = *u
		}
	}

	c.ensureProfile(ctx, res.User, profilestore.Extras{DisplayName: name})
	if err := c.establish(ctx, op, res, identity.Durable); err != nil {
		return nil, err
	}
	c.metrics.RecordSignIn("signup", "")
	return c.CurrentUser(), nil
}

// SignIn authenticates with email and password. rememberMe selects durable
// persistence; it is applied before the attempt.
func (c *Client) SignIn(ctx context.Context, email, password string, rememberMe bool) (*identity.User, error) {
	const op = "signIn"

	persistence := identity.SessionOnly
	if rememberMe {
		persistence = identity.Durable
	}
	c.setPersistence(persistence)

	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return nil, identity.NewError(op, identity.CodeInvalidEmail, nil)
	}

	bctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	res, err := c.backend.SignInWithPassword(bctx, email, password)
	cancel()
	if err != nil {
		c.metrics.RecordSignIn("password", identity.Code(err))
		return nil, err
	}

	c.ensureProfile(ctx, res.User, profilestore.Extras{})
	if err := c.establish(ctx, op, res, persistence); err != nil {
		return nil, err
	}
	c.metrics.RecordSignIn("password", "")
	return c.CurrentUser(), nil
}

// ResetPassword requests a reset email. An unknown address is not reported,
// so the call cannot be used to probe for accounts.
func (c *Client) ResetPassword(ctx context.Context, email string) error {
	const op = "resetPassword"

	email = normalize.Email(email)
	if !inputval.IsValidEmail(email) {
		return identity.NewError(op, identity.CodeInvalidEmail, nil)
	}

	bctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	defer cancel()
	err := c.backend.SendPasswordReset(bctx, email)
	if identity.Code(err) == identity.CodeUserNotFound {
		return nil
	}
	return err
}

/*─────────────────────────────────────────────────────────────────────────────*
| federated providers                                                          |
*─────────────────────────────────────────────────────────────────────────────*/

// BeginProviderSignIn records a pending sign-in and returns the consent URL.
func (c *Client) BeginProviderSignIn(ctx context.Context, p identity.Provider, returnTo string, rememberMe bool) (*ProviderRedirect, error) {
	const op = "signInWithProvider"

	flow, err := c.providers.Flow(p)
	if err != nil {
		return nil, identity.NewError(op, identity.CodeOperationNotAllowed, err)
	}
	if c.states == nil {
		return nil, identity.NewError(op, identity.CodeOperationNotAllowed, errors.New("no state store"))
	}

	state, err := generateState()
	if err != nil {
		return nil, identity.NewError(op, identity.CodeInternal, err)
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	if err := c.states.Save(sctx, oauthstate.State{
		State:     state,
		Provider:  p.String(),
		ReturnURL: returnTo,
		Remember:  rememberMe,
	}); err != nil {
		return nil, identity.NewError(op, identity.CodeInternal, fmt.Errorf("save oauth state: %w", err))
	}

	return &ProviderRedirect{URL: flow.AuthCodeURL(state), State: state}, nil
}

// CompleteProviderSignIn finishes a federated sign-in from the provider's
// callback parameters. providerError is the callback's "error" parameter.
func (c *Client) CompleteProviderSignIn(ctx context.Context, p identity.Provider, state, code, providerError string) (*ProviderResult, error) {
	const op = "signInWithProvider"
	method := p.String()

	if providerError != "" {
		ac := identity.CodeInternal
		if providerError == "access_denied" {
			ac = identity.CodePopupClosed
		}
		c.metrics.RecordSignIn(method, ac)
		return nil, identity.NewError(op, ac, fmt.Errorf("provider error %q", providerError))
	}

	flow, err := c.providers.Flow(p)
	if err != nil {
		return nil, identity.NewError(op, identity.CodeOperationNotAllowed, err)
	}
	if c.states == nil || state == "" {
		return nil, identity.NewError(op, identity.CodeInvalidState, nil)
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	st, err := c.states.Consume(sctx, state)
	cancel()
	if err != nil {
		return nil, identity.NewError(op, identity.CodeInternal, fmt.Errorf("consume oauth state: %w", err))
	}
	if st == nil || st.Provider != p.String() {
		c.metrics.RecordSignIn(method, identity.CodeInvalidState)
		return nil, identity.NewError(op, identity.CodeInvalidState, nil)
	}
	if code == "" {
		return nil, identity.NewError(op, identity.CodeInvalidCredential, errors.New("missing authorization code"))
	}

	xctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	cred, err := flow.Exchange(xctx, code)
	cancel()
	if err != nil {
		c.metrics.RecordSignIn(method, identity.CodeInvalidCredential)
		return nil, identity.NewError(op, identity.CodeInvalidCredential, err)
	}

	bctx, cancel := context.WithTimeout(ctx, timeouts.Identity())
	res, err := c.backend.SignInWithIdp(bctx, cred)
	cancel()
	if err != nil {
		c.metrics.RecordSignIn(method, identity.Code(err))
		return nil, err
	}

	persistence := identity.SessionOnly
	if st.Remember {
		persistence = identity.Durable
	}
	c.setPersistence(persistence)

	c.ensureProfile(ctx, res.User, profilestore.Extras{})
	if err := c.establish(ctx, op, res, persistence); err != nil {
		return nil, err
	}
	c.metrics.RecordSignIn(method, "")
	return &ProviderResult{User: c.CurrentUser(), ReturnTo: st.ReturnURL}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| sign-out and state                                                           |
*─────────────────────────────────────────────────────────────────────────────*/

// Logout clears the current user, notifies listeners, then clears the
// session cookie. A cookie failure is logged only.
func (c *Client) Logout(ctx context.Context) {
	c.mu.Lock()
	prev := c.current
	c.current = nil
	c.idToken = ""
	c.mu.Unlock()

	c.notify(nil)

	if c.session == nil {
		return
	}
	if err := c.session.Clear(ctx); err != nil {
		fields := []zap.Field{zap.Error(err)}
		if prev != nil {
			fields = append(fields, zap.String("uid", prev.UID))
		}
		c.log.Warn("clear session cookie failed", fields...)
	}
}

// OnAuthStateChanged registers fn. It is called at once with the current
// user and then after every change. The returned func unsubscribes.
func (c *Client) OnAuthStateChanged(fn Listener) func() {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	cur := copyUser(c.current)
	c.mu.Unlock()

	fn(cur)

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, l := range c.listeners {
				if l.id == id {
					c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
					return
				}
			}
		})
	}
}

// CurrentUser returns a copy of the signed-in user, or nil.
func (c *Client) CurrentUser() *identity.User {
	c.mu.Lock()
	defer c.mu.Unlock()
	return copyUser(c.current)
}

// IsAuthenticated reports whether a user is signed in.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current != nil
}

// IDToken returns the current user's ID token, "" when signed out.
func (c *Client) IDToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.idToken
}

// Persistence returns the persistence chosen for the current session.
func (c *Client) Persistence() identity.Persistence {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.persistence
}

// UserRole returns the signed-in user's role, "" when signed out or when the
// profile cannot be read.
func (c *Client) UserRole(ctx context.Context) models.Role {
	u := c.CurrentUser()
	if u == nil {
		return ""
	}
	p := c.GetUserProfile(ctx, u.UID)
	if p == nil {
		return ""
	}
	return p.Role
}

/*─────────────────────────────────────────────────────────────────────────────*
| profiles                                                                     |
*─────────────────────────────────────────────────────────────────────────────*/

// GetUserProfile returns the profile for uid. It returns nil when the profile
// does not exist, the store is not configured or the read fails.
func (c *Client) GetUserProfile(ctx context.Context, uid string) *models.Profile {
	p, err := c.FetchProfile(ctx, uid)
	if err != nil {
		c.log.Warn("get user profile failed", zap.String("uid", uid), zap.Error(err))
		return nil
	}
	return p
}

// FetchProfile is GetUserProfile with store errors reported.
func (c *Client) FetchProfile(ctx context.Context, uid string) (*models.Profile, error) {
	if c.profiles == nil {
		return nil, nil
	}
	sctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	return c.profiles.Get(sctx, uid)
}

func (c *Client) ensureProfile(ctx context.Context, u identity.User, extras profilestore.Extras) {
	if c.profiles == nil {
		c.log.Warn("profile store not configured, skipping profile upsert", zap.String("uid", u.UID))
		return
	}
	sctx, cancel := context.WithTimeout(ctx, timeouts.Store())
	defer cancel()
	if _, err := c.profiles.Ensure(sctx, u, extras); err != nil {
		c.log.Error("ensure profile failed", zap.String("uid", u.UID), zap.Error(err))
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| internals                                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

// establish syncs the session cookie, then publishes the user. Under Block a
// failed sync leaves the previous state in place.
func (c *Client) establish(ctx context.Context, op string, res *identity.SignInResult, p identity.Persistence) error {
	if c.session != nil {
		if err := c.session.Create(ctx, res.IDToken, p); err != nil {
			c.metrics.RecordSessionMint(metrics.Failed)
			if c.policy == Block {
				return identity.NewError(op, identity.CodeSessionSyncFailed, err)
			}
			c.log.Warn("session cookie sync failed, continuing",
				zap.String("uid", res.User.UID), zap.Error(err))
		}
	}

	u := copyUser(&res.User)
	c.mu.Lock()
	c.current = u
	c.idToken = res.IDToken
	c.persistence = p
	c.mu.Unlock()

	c.notify(copyUser(u))
	return nil
}

func (c *Client) setPersistence(p identity.Persistence) {
	c.mu.Lock()
	c.persistence = p
	c.mu.Unlock()
}

// notify calls listeners outside the lock, in registration order.
func (c *Client) notify(u *identity.User) {
	c.mu.Lock()
	fns := make([]Listener, len(c.listeners))
	for i, l := range c.listeners {
		fns[i] = l.fn
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(copyUser(u))
	}
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(b), nil
}

func copyUser(u *identity.User) *identity.User {
	if u == nil {
		return nil
	}
	cp := *u
	cp.Providers = append([]string(nil), u.Providers...)
	return &cp
}
