// internal/app/system/identity/firebase/rest.go

// Package firebase binds the portal to Firebase Authentication. End-user
// operations go through the generated Identity Toolkit client keyed with the
// web API key; token verification and session cookies go through the admin
// SDK.
package firebase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dalemusser/venturecamp/internal/app/system/identity"
	"github.com/dalemusser/venturecamp/internal/app/system/timeouts"
	"google.golang.org/api/googleapi"
	toolkit "google.golang.org/api/identitytoolkit/v1"
	"google.golang.org/api/option"
)

const defaultEndpoint = "https://identitytoolkit.googleapis.com/"

// Client calls the Identity Toolkit accounts API with the web API key.
type Client struct {
	accounts   *toolkit.AccountsService
	endpoint   string
	requestURI string
	timeout    time.Duration
}

var _ identity.Backend = (*Client)(nil)

type clientConfig struct {
	endpoint   string
	requestURI string
	timeout    time.Duration
}

// Option configures a Client.
type Option func(*clientConfig)

// WithEmulator routes requests to a local auth emulator ("host:port").
func WithEmulator(host string) Option {
	return func(c *clientConfig) {
		if host != "" {
			c.endpoint = "http://" + strings.TrimSuffix(host, "/") + "/identitytoolkit.googleapis.com/"
		}
	}
}

// WithEndpoint overrides the API root. Method paths ("v1/accounts:signUp")
// are resolved against it.
func WithEndpoint(u string) Option {
	return func(c *clientConfig) { c.endpoint = strings.TrimSuffix(u, "/") + "/" }
}

// WithRequestURI sets the continue URI sent with federated sign-ins.
func WithRequestURI(u string) Option {
	return func(c *clientConfig) { c.requestURI = u }
}

// NewClient returns an Identity Toolkit client for apiKey.
func NewClient(ctx context.Context, apiKey string, opts ...Option) (*Client, error) {
	cfg := clientConfig{
		endpoint:   defaultEndpoint,
		requestURI: "http://localhost",
		timeout:    timeouts.Identity(),
	}
	for _, o := range opts {
		o(&cfg)
	}

	svc, err := toolkit.NewService(ctx, option.WithAPIKey(apiKey), option.WithEndpoint(cfg.endpoint))
	if err != nil {
		return nil, fmt.Errorf("identity toolkit: %w", err)
	}
	return &Client{
		accounts:   svc.Accounts,
		endpoint:   cfg.endpoint,
		requestURI: cfg.requestURI,
		timeout:    cfg.timeout,
	}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| operations                                                                   |
*─────────────────────────────────────────────────────────────────────────────*/

func (c *Client) SignUp(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.accounts.SignUp(&toolkit.GoogleCloudIdentitytoolkitV1SignUpRequest{
		Email:    email,
		Password: password,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitErr("signUp", err)
	}
	return account{
		uid:          out.LocalId,
		email:        out.Email,
		displayName:  out.DisplayName,
		idToken:      out.IdToken,
		refreshToken: out.RefreshToken,
		expiresIn:    out.ExpiresIn,
	}.result("password"), nil
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.SignInResult, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.accounts.SignInWithPassword(&toolkit.GoogleCloudIdentitytoolkitV1SignInWithPasswordRequest{
		Email:             email,
		Password:          password,
		ReturnSecureToken: true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitErr("signIn", err)
	}
	return account{
		uid:          out.LocalId,
		email:        out.Email,
		displayName:  out.DisplayName,
		photoURL:     out.ProfilePicture,
		idToken:      out.IdToken,
		refreshToken: out.RefreshToken,
		expiresIn:    out.ExpiresIn,
	}.result("password"), nil
}

func (c *Client) SignInWithIdp(ctx context.Context, cred identity.FederatedCredential) (*identity.SignInResult, error) {
	if !cred.Provider.Valid() {
		return nil, identity.NewError("signInWithIdp", identity.CodeOperationNotAllowed, nil)
	}
	post := url.Values{"providerId": {cred.Provider.ProviderID()}}
	switch {
	case cred.IDToken != "":
		post.Set("id_token", cred.IDToken)
	case cred.AccessToken != "":
		post.Set("access_token", cred.AccessToken)
	default:
		return nil, identity.NewError("signInWithIdp", identity.CodeInvalidCredential, errors.New("no provider token"))
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.accounts.SignInWithIdp(&toolkit.GoogleCloudIdentitytoolkitV1SignInWithIdpRequest{
		PostBody:            post.Encode(),
		RequestUri:          c.requestURI,
		ReturnIdpCredential: true,
		ReturnSecureToken:   true,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitErr("signInWithIdp", err)
	}

	res := account{
		uid:          out.LocalId,
		email:        out.Email,
		displayName:  out.DisplayName,
		photoURL:     out.PhotoUrl,
		idToken:      out.IdToken,
		refreshToken: out.RefreshToken,
		expiresIn:    out.ExpiresIn,
	}.result(cred.Provider.ProviderID())
	if res.User.DisplayName == "" {
		res.User.DisplayName = cred.DisplayName
	}
	if res.User.PhotoURL == "" {
		res.User.PhotoURL = cred.PhotoURL
	}
	return res, nil
}

func (c *Client) UpdateDisplayName(ctx context.Context, idToken, displayName string) (*identity.User, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	out, err := c.accounts.Update(&toolkit.GoogleCloudIdentitytoolkitV1SetAccountInfoRequest{
		IdToken:     idToken,
		DisplayName: displayName,
	}).Context(ctx).Do()
	if err != nil {
		return nil, toolkitErr("updateProfile", err)
	}
	a := account{
		uid:         out.LocalId,
		email:       out.Email,
		displayName: out.DisplayName,
		photoURL:    out.PhotoUrl,
	}
	for _, p := range out.ProviderUserInfo {
		a.providers = append(a.providers, p.ProviderId)
	}
	u := a.user("")
	return &u, nil
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	_, err := c.accounts.SendOobCode(&toolkit.GoogleCloudIdentitytoolkitV1GetOobCodeRequest{
		RequestType: "PASSWORD_RESET",
		Email:       email,
	}).Context(ctx).Do()
	if err != nil {
		return toolkitErr("resetPassword", err)
	}
	return nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| errors                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// toolkitErr maps a failed call to an AuthError. API errors carry a message
// like "EMAIL_EXISTS"; anything else never reached the API.
func toolkitErr(op string, err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Message != "" {
			return identity.NewError(op, MapError(apiErr.Message), errors.New(apiErr.Message))
		}
		return identity.NewError(op, statusCode(apiErr.Code), fmt.Errorf("identity toolkit: status %d", apiErr.Code))
	}
	return identity.NewError(op, identity.CodeNetworkFailed, err)
}

var restCodes = map[string]string{
	"EMAIL_EXISTS":                   identity.CodeEmailInUse,
	"EMAIL_NOT_FOUND":                identity.CodeUserNotFound,
	"INVALID_PASSWORD":               identity.CodeWrongPassword,
	"INVALID_LOGIN_CREDENTIALS":      identity.CodeInvalidCredential,
	"INVALID_IDP_RESPONSE":           identity.CodeInvalidCredential,
	"USER_DISABLED":                  identity.CodeUserDisabled,
	"TOO_MANY_ATTEMPTS_TRY_LATER":    identity.CodeTooManyRequests,
	"WEAK_PASSWORD":                  identity.CodeWeakPassword,
	"INVALID_EMAIL":                  identity.CodeInvalidEmail,
	"MISSING_EMAIL":                  identity.CodeInvalidEmail,
	"OPERATION_NOT_ALLOWED":          identity.CodeOperationNotAllowed,
	"PASSWORD_LOGIN_DISABLED":        identity.CodeOperationNotAllowed,
	"CREDENTIAL_TOO_OLD_LOGIN_AGAIN": identity.CodeRequiresRecentLogin,
	"TOKEN_EXPIRED":                  identity.CodeRequiresRecentLogin,
	"INVALID_ID_TOKEN":               identity.CodeRequiresRecentLogin,
	"USER_NOT_FOUND":                 identity.CodeUserNotFound,
}

// MapError converts a REST error message such as "WEAK_PASSWORD : Password
// should be at least 6 characters" to an auth code.
func MapError(msg string) string {
	key := msg
	if i := strings.IndexAny(key, " :"); i >= 0 {
		key = key[:i]
	}
	if code, ok := restCodes[key]; ok {
		return code
	}
	return identity.CodeInternal
}

func statusCode(status int) string {
	switch {
	case status == http.StatusTooManyRequests:
		return identity.CodeTooManyRequests
	case status >= 500:
		return identity.CodeNetworkFailed
	}
	return identity.CodeInternal
}

/*─────────────────────────────────────────────────────────────────────────────*
| results                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// account is the subset of the toolkit responses the portal reads.
type account struct {
	uid          string
	email        string
	displayName  string
	photoURL     string
	providers    []string
	idToken      string
	refreshToken string
	expiresIn    int64
}

func (a account) user(signInProvider string) identity.User {
	u := identity.User{
		UID:         a.uid,
		Email:       a.email,
		DisplayName: a.displayName,
		PhotoURL:    a.photoURL,
		Providers:   a.providers,
	}
	if len(u.Providers) == 0 && signInProvider != "" {
		u.Providers = []string{signInProvider}
	}
	return u
}

func (a account) result(signInProvider string) *identity.SignInResult {
	return &identity.SignInResult{
		User:         a.user(signInProvider),
		IDToken:      a.idToken,
		RefreshToken: a.refreshToken,
		ExpiresIn:    time.Duration(a.expiresIn) * time.Second,
	}
}
